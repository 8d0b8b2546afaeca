package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"parking-gate-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers that bill closed sessions: each job is
// a closed session id whose invoice is pushed to the card holder's
// subscriptions.
type WorkerPool struct {
	size        int
	jobs        chan int64
	db          *gorm.DB
	webpush     *webpush.Options
	sender      NotificationSender
	ratePerHour float64
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, ratePerHour float64) *WorkerPool {
	return &WorkerPool{
		size:        size,
		jobs:        make(chan int64, size*4),
		db:          db,
		webpush:     webpushOptions,
		sender:      &WebPushSender{},
		ratePerHour: ratePerHour,
	}
}

// SetSender overrides the push sender. Tests only.
func (wp *WorkerPool) SetSender(s NotificationSender) {
	wp.sender = s
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case sessionID := <-wp.jobs:
			wp.sendInvoiceForSession(ctx, sessionID)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// SessionClosed enqueues an invoice job for a closed session. Never blocks
// the caller; when the queue is full the invoice is dropped with a log line
// and the session itself stays closed.
func (wp *WorkerPool) SessionClosed(sessionID int64) {
	select {
	case wp.jobs <- sessionID:
	default:
		log.Printf("Notification queue full, dropping invoice for session %d", sessionID)
	}
}

// sendInvoiceForSession loads the closed session and pushes its invoice to
// every subscription of the owning user.
func (wp *WorkerPool) sendInvoiceForSession(ctx context.Context, sessionID int64) {
	var session model.ParkingSession
	if err := wp.db.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		log.Printf("Error fetching session %d: %v", sessionID, err)
		return
	}
	if session.Status != model.SessionClosed || session.ExitTime == nil {
		log.Printf("Session %d is not closed, skipping invoice", sessionID)
		return
	}

	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).
		Where("user_id = ?", session.UserID).
		Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching subscriptions for user %d: %v", session.UserID, err)
		return
	}
	if len(subscriptions) == 0 {
		log.Printf("No subscriptions for user %d, invoice for session %d not delivered", session.UserID, sessionID)
		return
	}

	invoice := NewInvoice(session.EntryTime, *session.ExitTime, wp.ratePerHour)
	payload, err := json.Marshal(map[string]any{
		"title":   fmt.Sprintf("Parking invoice %s", invoice.InvoiceNumber),
		"body":    fmt.Sprintf("Stay of %s, total %.2f", invoice.Duration, invoice.Amount),
		"invoice": invoice,
	})
	if err != nil {
		log.Printf("Error marshaling invoice for session %d: %v", sessionID, err)
		return
	}

	log.Printf("Sending %d invoice notifications for session %d", len(subscriptions), sessionID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
