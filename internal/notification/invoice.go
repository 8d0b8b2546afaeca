package notification

import (
	"fmt"
	"math"
	"time"
)

// Invoice is the billing payload pushed to the card holder when a session
// closes. Charging is by the minute at a fixed hourly rate, minutes rounded
// up.
type Invoice struct {
	InvoiceNumber string    `json:"invoiceNumber"`
	InvoiceDate   time.Time `json:"invoiceDate"`
	EntryTime     time.Time `json:"entryTime"`
	ExitTime      time.Time `json:"exitTime"`
	Minutes       int64     `json:"minutes"`
	Duration      string    `json:"duration"`
	RatePerHour   float64   `json:"ratePerHour"`
	Amount        float64   `json:"amount"`
}

// NewInvoice computes the charge for a stay.
func NewInvoice(entry, exit time.Time, ratePerHour float64) Invoice {
	elapsed := exit.Sub(entry)
	if elapsed < 0 {
		elapsed = 0
	}
	minutes := int64(math.Ceil(elapsed.Minutes()))
	perMinute := ratePerHour / 60
	amount := round2(float64(minutes) * perMinute)

	return Invoice{
		InvoiceNumber: fmt.Sprintf("INV-%d", exit.UnixMilli()),
		InvoiceDate:   exit,
		EntryTime:     entry,
		ExitTime:      exit,
		Minutes:       minutes,
		Duration:      formatDuration(elapsed),
		RatePerHour:   ratePerHour,
		Amount:        amount,
	}
}

func formatDuration(d time.Duration) string {
	totalMin := int64(math.Round(d.Minutes()))
	if totalMin < 0 {
		totalMin = 0
	}
	return fmt.Sprintf("%02dh %02dm", totalMin/60, totalMin%60)
}

func round2(n float64) float64 {
	return math.Round(n*100) / 100
}
