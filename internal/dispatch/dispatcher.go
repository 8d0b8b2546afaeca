// Package dispatch turns inbound gate-controller and observer events into
// occupancy state, billable sessions, actuator commands and observer
// broadcasts.
package dispatch

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"parking-gate-backend/internal/arming"
	"parking-gate-backend/internal/gateway"
	"parking-gate-backend/internal/model"
	"parking-gate-backend/internal/state"
	"parking-gate-backend/internal/store"
)

// ErrNoActuator is returned when a command cannot be delivered because no
// actuator is connected.
var ErrNoActuator = errors.New("no actuator connected")

// Notifier triggers a billing notification for a closed session. Calls are
// fire-and-forget; a failure never reverses the session close.
type Notifier interface {
	SessionClosed(sessionID int64)
}

// Dispatcher is the single entry point for inbound events. Handle is
// serialized by a mutex so every event runs to completion before the next,
// giving linearizable updates to the occupancy state.
type Dispatcher struct {
	mu       sync.Mutex
	state    *state.Store
	store    store.Store
	arming   *arming.Cache
	gateway  gateway.Gateway
	notifier Notifier
	clock    func() time.Time
}

// New creates a dispatcher over its collaborators.
func New(st *state.Store, s store.Store, cache *arming.Cache, gw gateway.Gateway, n Notifier) *Dispatcher {
	return &Dispatcher{
		state:    st,
		store:    s,
		arming:   cache,
		gateway:  gw,
		notifier: n,
		clock:    time.Now,
	}
}

// SetClock overrides the dispatcher's time source. Tests only.
func (d *Dispatcher) SetClock(clock func() time.Time) {
	d.clock = clock
}

// Handle decodes and processes one inbound event. Undecodable payloads and
// undeliverable commands are returned to the caller; everything else is
// absorbed here (logged, state kept consistent).
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) error {
	ev, err := Decode(raw)
	if err != nil {
		log.Printf("dispatch: malformed event: %v", err)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock().UTC()
	switch ev.Type {
	case TypeStatusUpdate:
		d.handleStatusUpdate(ev, now)
	case TypeParkingStatusUpdate:
		d.handleParkingStatusUpdate(ev, now)
	case TypeRFIDScan:
		d.handleRFIDScan(ctx, ev, now)
	case TypeVehicleEvent:
		d.handleVehicleEvent(ctx, ev, now)
	case TypeGateMode:
		d.handleGateMode(ev, now)
	case TypeBarrierStatus:
		d.handleBarrierStatus(ev, now)
	case TypeCommand:
		return d.handleCommand(ev)
	default:
		log.Printf("dispatch: unknown event type %q", ev.Type)
	}
	return nil
}

// handleStatusUpdate merges a device batch snapshot: present scalars
// overwrite, absent ones keep prior values, and a slot array, when present,
// is authoritative for the derived counters.
func (d *Dispatcher) handleStatusUpdate(ev *Envelope, now time.Time) {
	snap := d.state.Update(func(snap *state.Snapshot) {
		if ev.AvailableSpaces != nil {
			snap.AvailableSpaces = *ev.AvailableSpaces
		}
		if ev.TotalSpaces != nil {
			snap.TotalSpaces = *ev.TotalSpaces
		}
		if ev.TotalEntries != nil {
			snap.TotalEntries = *ev.TotalEntries
		}
		if ev.TotalExits != nil {
			snap.TotalExits = *ev.TotalExits
		}
		if ev.BarrierOpen != nil {
			snap.BarrierOpen = *ev.BarrierOpen
		}
		if ev.WifiConnected != nil {
			snap.WifiConnected = *ev.WifiConnected
		}
		if ev.Uptime != nil {
			snap.Uptime = *ev.Uptime
		}

		for _, arr := range [][]SlotUpdate{ev.Slots, ev.Spaces} {
			maxID := 0
			for _, su := range arr {
				if id := su.slotID(); id > maxID {
					maxID = id
				}
			}
			if maxID > 0 {
				snap.EnsureSlotExists(maxID)
			}
			for _, su := range arr {
				if id := su.slotID(); id > 0 {
					snap.SetSlot(id, su.Occupied)
				}
			}
		}

		if len(snap.Slots) > 0 {
			snap.RecomputeFromSlots()
		} else {
			snap.OccupancyRate = state.OccupancyRate(snap.TotalSpaces, snap.AvailableSpaces)
		}
		snap.Touch(now)
	})

	d.persist(snap)
	d.gateway.Broadcast(snapshotMsg(snap))
}

// handleParkingStatusUpdate applies a per-slot delta. Events without a usable
// slot id are dropped. Replays are idempotent.
func (d *Dispatcher) handleParkingStatusUpdate(ev *Envelope, now time.Time) {
	id := ev.slotID()
	if id == 0 {
		log.Printf("dispatch: parking_status_update without a positive slot id, ignoring")
		return
	}
	occupied := ev.Occupied != nil && *ev.Occupied

	snap := d.state.Update(func(snap *state.Snapshot) {
		snap.SetSlot(id, occupied)
		snap.RecomputeFromSlots()
		snap.Touch(now)
	})

	d.persist(snap)
	d.gateway.Broadcast(snapshotMsg(snap))
}

// handleRFIDScan authenticates a raw card presentation, arms the card with
// its intended mode and commands the actuator. Occupancy is not touched.
// Mode policy: entry while any slot is free, else exit; the capacity check
// happens at scan time, not entry confirmation, which is an accepted race.
func (d *Dispatcher) handleRFIDScan(ctx context.Context, ev *Envelope, now time.Time) {
	cardID := normCardID(ev.CardUID)
	if cardID == "" {
		log.Printf("dispatch: rfid_scan without card_uid, ignoring")
		return
	}

	user, err := d.store.FindActiveUserByCard(ctx, cardID)
	if err != nil {
		log.Printf("dispatch: card lookup failed for %s: %v", cardID, err)
	}
	auth := user != nil

	mode := arming.ModeExit
	if d.state.Get().AvailableSpaces > 0 {
		mode = arming.ModeEntry
	}

	if auth {
		d.arming.Arm(cardID, mode)
		gateMode := "exit_auth"
		if mode == arming.ModeEntry {
			gateMode = "entry_auth"
		}
		d.gateway.SendToActuator(map[string]any{"type": "gate_mode", "mode": gateMode, "card_uid": cardID})
	} else {
		d.gateway.SendToActuator(map[string]any{"command": "close_barrier"})
	}

	eventData := map[string]any{"cardUid": cardID, "auth": auth, "mode": mode}
	if user != nil {
		eventData["userId"] = user.ID
	}
	snap := d.state.Update(func(snap *state.Snapshot) {
		snap.PushEvent(state.Event{Type: "rfid_scan", Timestamp: now, Data: eventData})
		snap.Touch(now)
	})

	d.persist(snap)
	d.gateway.Broadcast(map[string]any{
		"type": "rfid_scan",
		"data": map[string]any{"card_uid": cardID, "auth": auth, "mode": mode},
	})
}

// handleVehicleEvent processes a device-confirmed physical entry or exit:
// sessions open and close here, counters move here, and the slot mirror is
// updated best-effort. The armed hint is consumed unconditionally at the end;
// it is never the trust boundary, the card is re-validated every time.
func (d *Dispatcher) handleVehicleEvent(ctx context.Context, ev *Envelope, now time.Time) {
	action := "entry"
	if ev.Action == "exit" {
		action = "exit"
	}
	id := ev.slotID()
	var slotPtr *int
	if id > 0 {
		slotPtr = &id
	}
	cardID := normCardID(ev.CardUID)

	var user *model.User
	if cardID != "" {
		u, err := d.store.FindActiveUserByCard(ctx, cardID)
		if err != nil {
			log.Printf("dispatch: card lookup failed for %s: %v", cardID, err)
		}
		user = u
	}

	var logged state.Event
	entries, exits := int64(0), int64(0)

	if action == "entry" {
		if user == nil {
			logged = state.Event{Type: "vehicle_entry_denied", Timestamp: now, Data: map[string]any{"cardUid": cardID}}
		} else {
			session, err := d.store.OpenSession(ctx, user, slotPtr, now)
			if err != nil {
				// Persistence failure for a valid card, not a denial.
				log.Printf("dispatch: failed to open session for card %s: %v", cardID, err)
				logged = state.Event{Type: "vehicle_entry_failed", Timestamp: now, Data: map[string]any{
					"slotId": slotPtr, "cardUid": cardID, "userId": user.ID,
				}}
			} else {
				entries = 1
				logged = state.Event{Type: "vehicle_entry", Timestamp: now, Data: map[string]any{
					"slotId": slotPtr, "cardUid": cardID, "userId": user.ID, "sessionId": session.ID,
				}}
			}
		}
	} else {
		session := d.resolveExitSession(ctx, cardID, id)
		if session != nil {
			if err := d.store.CloseSession(ctx, session, now, slotPtr); err != nil {
				log.Printf("dispatch: failed to close session %d: %v", session.ID, err)
				logged = state.Event{Type: "vehicle_exit_unmatched", Timestamp: now, Data: map[string]any{
					"slotId": slotPtr, "cardUid": cardID,
				}}
			} else {
				exits = 1
				logged = state.Event{Type: "vehicle_exit", Timestamp: now, Data: map[string]any{
					"slotId": session.SlotID, "cardUid": session.CardID, "userId": session.UserID,
				}}
				if d.notifier != nil {
					d.notifier.SessionClosed(session.ID)
				}
			}
		} else {
			logged = state.Event{Type: "vehicle_exit_unmatched", Timestamp: now, Data: map[string]any{
				"slotId": slotPtr, "cardUid": cardID,
			}}
		}
	}

	snap := d.state.Update(func(snap *state.Snapshot) {
		snap.TotalEntries += entries
		snap.TotalExits += exits
		snap.PushEvent(logged)
		if id > 0 {
			snap.SetSlot(id, action == "entry")
		}
		snap.RecomputeFromSlots()
		snap.Touch(now)
	})

	d.persist(snap)
	d.gateway.Broadcast(map[string]any{
		"type": "vehicle_event",
		"data": map[string]any{"action": action, "slot": id, "card_uid": cardID},
	})
	d.gateway.Broadcast(snapshotMsg(snap))

	if cardID != "" {
		d.arming.Consume(cardID)
	}
}

// resolveExitSession finds the session an exit should close: the oldest open
// session for the card, falling back to the oldest open session on the slot.
func (d *Dispatcher) resolveExitSession(ctx context.Context, cardID string, slotID int) *model.ParkingSession {
	if cardID != "" {
		s, err := d.store.FindOpenSessionByCard(ctx, cardID)
		if err != nil {
			log.Printf("dispatch: open-session lookup by card %s failed: %v", cardID, err)
		}
		if s != nil {
			return s
		}
	}
	if slotID > 0 {
		s, err := d.store.FindOpenSessionBySlot(ctx, slotID)
		if err != nil {
			log.Printf("dispatch: open-session lookup by slot %d failed: %v", slotID, err)
		}
		if s != nil {
			return s
		}
	}
	return nil
}

// handleGateMode records the device's arm confirmation. No occupancy or
// session change.
func (d *Dispatcher) handleGateMode(ev *Envelope, now time.Time) {
	var cardUID any
	if c := normCardID(ev.CardUID); c != "" {
		cardUID = c
	}
	snap := d.state.Update(func(snap *state.Snapshot) {
		snap.PushEvent(state.Event{Type: "gate_mode", Timestamp: now, Data: map[string]any{
			"mode": ev.Mode, "cardUid": cardUID,
		}})
		snap.Touch(now)
	})

	d.persist(snap)
	d.gateway.Broadcast(map[string]any{
		"type": "gate_mode",
		"data": map[string]any{"mode": ev.Mode, "card_uid": ev.CardUID},
	})
}

func (d *Dispatcher) handleBarrierStatus(ev *Envelope, now time.Time) {
	snap := d.state.Update(func(snap *state.Snapshot) {
		snap.BarrierOpen = ev.Status == "OPEN"
		snap.Touch(now)
	})

	d.persist(snap)
	d.gateway.Broadcast(map[string]any{"type": "barrier_status", "status": ev.Status})
}

// handleCommand forwards an observer command verbatim to the actuator. The
// failure to deliver is surfaced to the caller, not retried.
func (d *Dispatcher) handleCommand(ev *Envelope) error {
	msg := map[string]any{"command": ev.Command}
	for k, v := range ev.Payload {
		msg[k] = v
	}
	if !d.gateway.SendToActuator(msg) {
		log.Printf("dispatch: no actuator connected to send command %q", ev.Command)
		return ErrNoActuator
	}
	return nil
}

// persist writes the snapshot copy to the durable store off the critical
// path. Failures leave the durable copy stale; the in-memory snapshot stays
// the source of truth for observers.
func (d *Dispatcher) persist(snap state.Snapshot) {
	go func() {
		if err := d.store.SaveSnapshot(context.Background(), snap); err != nil {
			log.Printf("dispatch: failed to persist snapshot: %v", err)
		}
	}()
}

func snapshotMsg(snap state.Snapshot) map[string]any {
	return map[string]any{"type": "parking_data_update", "data": snap}
}

func normCardID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
