package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/state"
)

// newTestStore opens an isolated in-memory sqlite database.
func newTestStore(t *testing.T) Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.ParkingSession{},
		&model.PushSubscription{},
		&model.StateRecord{},
	))
	return NewGormStore(db)
}

func seedUser(t *testing.T, s Store, cardID string, active bool) *model.User {
	t.Helper()
	user := model.User{
		Email:         cardID + "@example.com",
		Username:      "user-" + cardID,
		Password:      "hashed",
		CardID:        cardID,
		VehicleNumber: "KA-1234",
		Role:          model.RoleUser,
		IsActive:      active,
	}
	require.NoError(t, s.DB().Create(&user).Error)
	return &user
}

func TestFindActiveUserByCard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "AA11", true)
	seedUser(t, s, "BB22", false)

	user, err := s.FindActiveUserByCard(ctx, "AA11")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "AA11", user.CardID)

	inactive, err := s.FindActiveUserByCard(ctx, "BB22")
	require.NoError(t, err)
	assert.Nil(t, inactive)

	missing, err := s.FindActiveUserByCard(ctx, "ZZ99")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOpenSessionClosesStaleOpens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "AA11", true)

	slot1 := 1
	first, err := s.OpenSession(ctx, user, &slot1, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	slot2 := 2
	second, err := s.OpenSession(ctx, user, &slot2, time.Now().UTC())
	require.NoError(t, err)

	var open []model.ParkingSession
	require.NoError(t, s.DB().Where("card_id = ? AND status = ?", "AA11", model.SessionOpen).Find(&open).Error)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)

	// Zero-rated stale close.
	var stale model.ParkingSession
	require.NoError(t, s.DB().First(&stale, first.ID).Error)
	assert.Equal(t, model.SessionClosed, stale.Status)
	require.NotNil(t, stale.DurationSeconds)
	assert.Equal(t, int64(0), *stale.DurationSeconds)
}

func TestFindOpenSessionOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "AA11", true)

	// Two open sessions can only coexist via direct writes, which is exactly
	// the recovery situation the oldest-first rule is for.
	older := model.ParkingSession{
		UserID: user.ID, CardID: user.CardID, Status: model.SessionOpen,
		EntryTime: time.Now().UTC().Add(-2 * time.Hour),
	}
	newer := model.ParkingSession{
		UserID: user.ID, CardID: user.CardID, Status: model.SessionOpen,
		EntryTime: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, s.DB().Create(&older).Error)
	require.NoError(t, s.DB().Create(&newer).Error)

	found, err := s.FindOpenSessionByCard(ctx, "AA11")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, older.ID, found.ID)
}

func TestFindOpenSessionBySlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "AA11", true)

	slot := 3
	_, err := s.OpenSession(ctx, user, &slot, time.Now().UTC())
	require.NoError(t, err)

	found, err := s.FindOpenSessionBySlot(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "AA11", found.CardID)

	none, err := s.FindOpenSessionBySlot(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCloseSessionFreezesDuration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "AA11", true)

	entry := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	session, err := s.OpenSession(ctx, user, nil, entry)
	require.NoError(t, err)

	exit := entry.Add(45 * time.Minute)
	slot := 5
	require.NoError(t, s.CloseSession(ctx, session, exit, &slot))

	var stored model.ParkingSession
	require.NoError(t, s.DB().First(&stored, session.ID).Error)
	assert.Equal(t, model.SessionClosed, stored.Status)
	require.NotNil(t, stored.DurationSeconds)
	assert.Equal(t, int64(45*60), *stored.DurationSeconds)
	require.NotNil(t, stored.SlotID)
	assert.Equal(t, 5, *stored.SlotID)
	require.NotNil(t, stored.ExitTime)
	assert.True(t, stored.ExitTime.After(stored.EntryTime))
}

func TestCloseSessionClampsNegativeDuration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "AA11", true)

	entry := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	session, err := s.OpenSession(ctx, user, nil, entry)
	require.NoError(t, err)

	require.NoError(t, s.CloseSession(ctx, session, entry.Add(-time.Minute), nil))
	require.NotNil(t, session.DurationSeconds)
	assert.Equal(t, int64(0), *session.DurationSeconds)
}

func TestCloseSessionIsConditionalOnOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "AA11", true)

	session, err := s.OpenSession(ctx, user, nil, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.CloseSession(ctx, session, time.Now().UTC(), nil))

	// A second close must not touch the frozen record.
	reload := *session
	reload.Status = model.SessionOpen
	err = s.CloseSession(ctx, &reload, time.Now().UTC().Add(time.Hour), nil)
	assert.Error(t, err)
}

func TestCloseSessionKeepsExistingSlot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "AA11", true)

	slot := 2
	session, err := s.OpenSession(ctx, user, &slot, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)

	other := 7
	require.NoError(t, s.CloseSession(ctx, session, time.Now().UTC(), &other))

	var stored model.ParkingSession
	require.NoError(t, s.DB().First(&stored, session.ID).Error)
	require.NotNil(t, stored.SlotID)
	assert.Equal(t, 2, *stored.SlotID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Nothing saved yet.
	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	saved := state.Snapshot{
		TotalSpaces:     5,
		AvailableSpaces: 4,
		OccupancyRate:   20,
		Slots: []state.Slot{
			{SlotID: 1, Occupied: true, Status: "occupied"},
			{SlotID: 2, Occupied: false, Status: "available"},
		},
	}
	require.NoError(t, s.SaveSnapshot(ctx, saved))

	// Upsert replaces the single row.
	saved.AvailableSpaces = 3
	require.NoError(t, s.SaveSnapshot(ctx, saved))

	loaded, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 3, loaded.AvailableSpaces)
	assert.Equal(t, saved.Slots, loaded.Slots)

	var count int64
	require.NoError(t, s.DB().Model(&model.StateRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecentSessionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "AA11", true)

	for i := 0; i < 3; i++ {
		session := model.ParkingSession{
			UserID: user.ID, CardID: user.CardID, Status: model.SessionClosed,
			EntryTime: time.Now().UTC(),
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.DB().Create(&session).Error)
	}

	sessions, err := s.RecentSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].CreatedAt.After(sessions[1].CreatedAt))
}
