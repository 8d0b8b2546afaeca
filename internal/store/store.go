package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/state"
)

// Store defines the interface for all database operations. Session writes are
// durable before being considered committed; the snapshot upsert is
// best-effort (the in-memory copy stays authoritative).
type Store interface {
	DB() *gorm.DB

	FindActiveUserByCard(ctx context.Context, cardID string) (*model.User, error)

	OpenSession(ctx context.Context, user *model.User, slotID *int, entryTime time.Time) (*model.ParkingSession, error)
	FindOpenSessionByCard(ctx context.Context, cardID string) (*model.ParkingSession, error)
	FindOpenSessionBySlot(ctx context.Context, slotID int) (*model.ParkingSession, error)
	CloseSession(ctx context.Context, session *model.ParkingSession, exitTime time.Time, slotID *int) error

	SaveSnapshot(ctx context.Context, snap state.Snapshot) error
	LoadSnapshot(ctx context.Context) (*state.Snapshot, error)

	RecentSessions(ctx context.Context, limit int) ([]model.ParkingSession, error)
	ListUsers(ctx context.Context, limit int) ([]model.User, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// FindActiveUserByCard returns the active user owning cardID, or nil without
// error when no such user exists.
func (s *gormStore) FindActiveUserByCard(ctx context.Context, cardID string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("card_id = ? AND is_active = ?", cardID, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up card %s: %w", cardID, err)
	}
	return &user, nil
}

// OpenSession creates a new open session for the user's card. Any stale open
// sessions for the same card are force-closed first with a zero duration;
// that is a recovery heuristic for missed exits, not an accounting claim.
func (s *gormStore) OpenSession(ctx context.Context, user *model.User, slotID *int, entryTime time.Time) (*model.ParkingSession, error) {
	session := model.ParkingSession{
		UserID:        user.ID,
		CardID:        user.CardID,
		VehicleNumber: user.VehicleNumber,
		SlotID:        slotID,
		EntryTime:     entryTime,
		Status:        model.SessionOpen,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := map[string]any{
			"status":           model.SessionClosed,
			"exit_time":        entryTime,
			"duration_seconds": int64(0),
		}
		if err := tx.Model(&model.ParkingSession{}).
			Where("card_id = ? AND status = ?", user.CardID, model.SessionOpen).
			Updates(stale).Error; err != nil {
			return fmt.Errorf("failed to close stale sessions for card %s: %w", user.CardID, err)
		}
		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("failed to create session for card %s: %w", user.CardID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindOpenSessionByCard returns the oldest open session for a card, or nil.
func (s *gormStore) FindOpenSessionByCard(ctx context.Context, cardID string) (*model.ParkingSession, error) {
	return s.findOpen(ctx, "card_id = ? AND status = ?", cardID, model.SessionOpen)
}

// FindOpenSessionBySlot returns the oldest open session occupying a slot, or
// nil. This is the fallback path for exits that arrive without a card.
func (s *gormStore) FindOpenSessionBySlot(ctx context.Context, slotID int) (*model.ParkingSession, error) {
	return s.findOpen(ctx, "slot_id = ? AND status = ?", slotID, model.SessionOpen)
}

func (s *gormStore) findOpen(ctx context.Context, query string, args ...any) (*model.ParkingSession, error) {
	var session model.ParkingSession
	err := s.db.WithContext(ctx).
		Where(query, args...).
		Order("entry_time ASC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}
	return &session, nil
}

// CloseSession closes an open session at exitTime, computing and freezing its
// duration (clamped at zero against adversarial clocks) and backfilling the
// slot id if it was unset. The update is conditional on the session still
// being open, so two racing exits cannot close it twice.
func (s *gormStore) CloseSession(ctx context.Context, session *model.ParkingSession, exitTime time.Time, slotID *int) error {
	duration := exitTime.Sub(session.EntryTime) / time.Second
	if duration < 0 {
		duration = 0
	}
	d := int64(duration)

	updates := map[string]any{
		"status":           model.SessionClosed,
		"exit_time":        exitTime,
		"duration_seconds": d,
	}
	if session.SlotID == nil && slotID != nil {
		updates["slot_id"] = slotID
	}

	res := s.db.WithContext(ctx).Model(&model.ParkingSession{}).
		Where("id = ? AND status = ?", session.ID, model.SessionOpen).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to close session %d: %w", session.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("session %d is no longer open", session.ID)
	}

	session.Status = model.SessionClosed
	session.ExitTime = &exitTime
	session.DurationSeconds = &d
	if session.SlotID == nil && slotID != nil {
		session.SlotID = slotID
	}
	return nil
}

// stateRecordID pins the snapshot to a single row.
const stateRecordID = 1

// SaveSnapshot upserts the serialized snapshot into its single row.
func (s *gormStore) SaveSnapshot(ctx context.Context, snap state.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	record := model.StateRecord{ID: stateRecordID, Data: string(data)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the persisted snapshot, or nil when none was saved yet.
func (s *gormStore) LoadSnapshot(ctx context.Context) (*state.Snapshot, error) {
	var record model.StateRecord
	err := s.db.WithContext(ctx).First(&record, stateRecordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	var snap state.Snapshot
	if err := json.Unmarshal([]byte(record.Data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// RecentSessions returns sessions ordered newest first.
func (s *gormStore) RecentSessions(ctx context.Context, limit int) ([]model.ParkingSession, error) {
	var sessions []model.ParkingSession
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// ListUsers returns users ordered newest first.
func (s *gormStore) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
