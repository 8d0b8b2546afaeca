package state

import (
	"math"
	"sync"
	"time"
)

// maxRecentEvents bounds the in-memory event log.
const maxRecentEvents = 100

// Slot is one physical parking bay. Status is always derived from Occupied.
type Slot struct {
	SlotID   int    `json:"slotId"`
	Occupied bool   `json:"occupied"`
	Status   string `json:"status"`
}

// Event is one entry of the bounded recent-event log.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Snapshot is the full in-memory occupancy state of the lot.
type Snapshot struct {
	AvailableSpaces int        `json:"availableSpaces"`
	TotalSpaces     int        `json:"totalSpaces"`
	TotalEntries    int64      `json:"totalEntries"`
	TotalExits      int64      `json:"totalExits"`
	OccupancyRate   int        `json:"occupancyRate"`
	BarrierOpen     bool       `json:"barrierOpen"`
	WifiConnected   bool       `json:"wifiConnected"`
	Uptime          int64      `json:"uptime"`
	LastUpdate      *time.Time `json:"lastUpdate"`
	Slots           []Slot     `json:"slots"`
	RecentEvents    []Event    `json:"recentEvents"`
}

// Store owns the one snapshot for the process. All mutation goes through its
// methods; the slot-expansion, recompute and log-truncate sequences are not
// individually atomic, so a single mutex guards everything.
type Store struct {
	mu   sync.Mutex
	snap Snapshot
}

// New creates an empty store.
func New() *Store {
	return &Store{snap: Snapshot{Slots: []Slot{}, RecentEvents: []Event{}}}
}

func slotStatus(occupied bool) string {
	if occupied {
		return "occupied"
	}
	return "available"
}

// Get returns a deep copy of the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneLocked()
}

func (s *Store) cloneLocked() Snapshot {
	out := s.snap
	out.Slots = make([]Slot, len(s.snap.Slots))
	copy(out.Slots, s.snap.Slots)
	out.RecentEvents = make([]Event, len(s.snap.RecentEvents))
	copy(out.RecentEvents, s.snap.RecentEvents)
	if s.snap.LastUpdate != nil {
		t := *s.snap.LastUpdate
		out.LastUpdate = &t
	}
	return out
}

// Update runs fn with exclusive access to the mutable snapshot and returns a
// deep copy of the result, so callers can persist and broadcast a stable view.
func (s *Store) Update(fn func(snap *Snapshot)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	return s.cloneLocked()
}

// EnsureSlotExists extends the slot sequence so that slot id exists, filling
// the gap with free slots. The sequence never shrinks.
func (snap *Snapshot) EnsureSlotExists(id int) {
	for len(snap.Slots) < id {
		next := len(snap.Slots) + 1
		snap.Slots = append(snap.Slots, Slot{SlotID: next, Occupied: false, Status: "available"})
	}
}

// SetSlot records the occupancy of a single slot, extending the sequence if
// the id is beyond the current length.
func (snap *Snapshot) SetSlot(id int, occupied bool) {
	snap.EnsureSlotExists(id)
	snap.Slots[id-1] = Slot{SlotID: id, Occupied: occupied, Status: slotStatus(occupied)}
}

// RecomputeFromSlots derives AvailableSpaces and OccupancyRate from the slot
// sequence. It is the single source of truth for those fields and must be
// called after every slot mutation.
func (snap *Snapshot) RecomputeFromSlots() {
	free := 0
	for _, sl := range snap.Slots {
		if !sl.Occupied {
			free++
		}
	}
	snap.AvailableSpaces = free
	if snap.TotalSpaces < len(snap.Slots) {
		snap.TotalSpaces = len(snap.Slots)
	}
	snap.OccupancyRate = OccupancyRate(snap.TotalSpaces, snap.AvailableSpaces)
}

// OccupancyRate is the occupied percentage, rounded, 0 when total is 0.
func OccupancyRate(total, available int) int {
	if total <= 0 {
		return 0
	}
	occupied := total - available
	return int(math.Round(float64(occupied) / float64(total) * 100))
}

// PushEvent inserts an event at the head of the recent-event log and truncates
// it to the bound.
func (snap *Snapshot) PushEvent(e Event) {
	snap.RecentEvents = append([]Event{e}, snap.RecentEvents...)
	if len(snap.RecentEvents) > maxRecentEvents {
		snap.RecentEvents = snap.RecentEvents[:maxRecentEvents]
	}
}

// Touch stamps the snapshot's last-update time.
func (snap *Snapshot) Touch(now time.Time) {
	snap.LastUpdate = &now
}
