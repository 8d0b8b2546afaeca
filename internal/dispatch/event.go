package dispatch

import (
	"encoding/json"
	"errors"
)

// Event types accepted from the device and observer channels.
const (
	TypeStatusUpdate        = "status_update"
	TypeParkingStatusUpdate = "parking_status_update"
	TypeRFIDScan            = "rfid_scan"
	TypeVehicleEvent        = "vehicle_event"
	TypeGateMode            = "gate_mode"
	TypeBarrierStatus       = "barrier_status"
	TypeCommand             = "command"
)

// Envelope is the decoded inbound event. Optional scalars are pointers so an
// absent field is distinguishable from a zero value; absent fields keep the
// prior state.
type Envelope struct {
	Type string `json:"type"`

	// status_update batch fields
	AvailableSpaces *int         `json:"available_spaces"`
	TotalSpaces     *int         `json:"total_spaces"`
	TotalEntries    *int64       `json:"total_entries"`
	TotalExits      *int64       `json:"total_exits"`
	BarrierOpen     *bool        `json:"barrier_open"`
	WifiConnected   *bool        `json:"wifi_connected"`
	Uptime          *int64       `json:"uptime"`
	Slots           []SlotUpdate `json:"slots"`
	Spaces          []SlotUpdate `json:"spaces"`

	// slot identifier under any of its accepted names
	ID       *int  `json:"id"`
	Slot     *int  `json:"slot"`
	SlotID   *int  `json:"slotId"`
	Occupied *bool `json:"occupied"`

	CardUID string `json:"card_uid"`
	Action  string `json:"action"`
	Mode    string `json:"mode"`
	Status  string `json:"status"`

	// observer command passthrough
	Command string         `json:"command"`
	Payload map[string]any `json:"payload"`
}

// SlotUpdate is one element of a slots/spaces array.
type SlotUpdate struct {
	ID       *int `json:"id"`
	Slot     *int `json:"slot"`
	SlotID   *int `json:"slotId"`
	Occupied bool `json:"occupied"`
}

// Decode parses a raw inbound message into an Envelope. A wrong-typed field
// is skipped rather than failing the event: Unmarshal fills every other field
// and reports the mismatch, so the partial envelope is still usable and the
// untouched fields default to keep-prior-state. Only syntactically invalid
// JSON rejects the whole message.
func Decode(raw []byte) (*Envelope, error) {
	var ev Envelope
	if err := json.Unmarshal(raw, &ev); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, err
		}
	}
	return &ev, nil
}

// slotID extracts a positive slot id from the event's id/slot/slotId fields,
// in that order. Returns 0 when none is usable.
func (ev *Envelope) slotID() int {
	return normSlotID(ev.ID, ev.Slot, ev.SlotID)
}

func (su SlotUpdate) slotID() int {
	return normSlotID(su.ID, su.Slot, su.SlotID)
}

func normSlotID(candidates ...*int) int {
	for _, c := range candidates {
		if c != nil && *c > 0 {
			return *c
		}
	}
	return 0
}
