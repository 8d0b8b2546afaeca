package state

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccupancyRate(t *testing.T) {
	testCases := []struct {
		name      string
		total     int
		available int
		expected  int
	}{
		{"zero total is defined as zero", 0, 0, 0},
		{"empty lot", 10, 10, 0},
		{"full lot", 10, 0, 100},
		{"half full", 10, 5, 50},
		{"rounds to nearest", 3, 2, 33},
		{"rounds up", 3, 1, 67},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, OccupancyRate(tc.total, tc.available))
		})
	}
}

func TestEnsureSlotExists(t *testing.T) {
	var snap Snapshot
	snap.EnsureSlotExists(3)

	require.Len(t, snap.Slots, 3)
	for i, sl := range snap.Slots {
		assert.Equal(t, i+1, sl.SlotID)
		assert.False(t, sl.Occupied)
		assert.Equal(t, "available", sl.Status)
	}

	// The sequence never shrinks.
	snap.EnsureSlotExists(1)
	assert.Len(t, snap.Slots, 3)
}

func TestSetSlotDerivesStatus(t *testing.T) {
	var snap Snapshot
	snap.SetSlot(2, true)

	require.Len(t, snap.Slots, 2)
	assert.Equal(t, Slot{SlotID: 2, Occupied: true, Status: "occupied"}, snap.Slots[1])

	snap.SetSlot(2, false)
	assert.Equal(t, Slot{SlotID: 2, Occupied: false, Status: "available"}, snap.Slots[1])
}

// Applying random slot deltas, AvailableSpaces after every recompute must
// equal the count of free slots in the sequence.
func TestRecomputeInvariantUnderRandomDeltas(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var snap Snapshot

	for i := 0; i < 500; i++ {
		id := rng.Intn(20) + 1
		occupied := rng.Intn(2) == 0
		snap.SetSlot(id, occupied)
		snap.RecomputeFromSlots()

		free := 0
		for _, sl := range snap.Slots {
			if !sl.Occupied {
				free++
			}
		}
		require.Equal(t, free, snap.AvailableSpaces, "iteration %d", i)
		require.GreaterOrEqual(t, snap.TotalSpaces, len(snap.Slots))
	}
}

func TestRecomputeKeepsExplicitTotal(t *testing.T) {
	snap := Snapshot{TotalSpaces: 10}
	snap.SetSlot(4, true)
	snap.RecomputeFromSlots()

	assert.Equal(t, 10, snap.TotalSpaces)
	assert.Equal(t, 3, snap.AvailableSpaces)
	assert.Equal(t, 70, snap.OccupancyRate)
}

func TestPushEventBoundedNewestFirst(t *testing.T) {
	var snap Snapshot
	now := time.Now()
	for i := 0; i < 150; i++ {
		snap.PushEvent(Event{Type: "rfid_scan", Timestamp: now, Data: map[string]any{"seq": i}})
	}

	require.Len(t, snap.RecentEvents, 100)
	assert.Equal(t, 149, snap.RecentEvents[0].Data["seq"])
	assert.Equal(t, 50, snap.RecentEvents[99].Data["seq"])
}

func TestGetReturnsDeepCopy(t *testing.T) {
	st := New()
	st.Update(func(snap *Snapshot) {
		snap.SetSlot(1, true)
		snap.RecomputeFromSlots()
	})

	snap := st.Get()
	snap.Slots[0].Occupied = false
	snap.TotalSpaces = 99

	fresh := st.Get()
	assert.True(t, fresh.Slots[0].Occupied)
	assert.Equal(t, 1, fresh.TotalSpaces)
}

func TestUpdateReturnsResultingSnapshot(t *testing.T) {
	st := New()
	out := st.Update(func(snap *Snapshot) {
		snap.SetSlot(2, true)
		snap.RecomputeFromSlots()
	})

	assert.Equal(t, 2, out.TotalSpaces)
	assert.Equal(t, 1, out.AvailableSpaces)
	assert.Equal(t, 50, out.OccupancyRate)
}
