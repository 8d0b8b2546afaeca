package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestSlotIDNormalization(t *testing.T) {
	testCases := []struct {
		name     string
		ev       Envelope
		expected int
	}{
		{"id field", Envelope{ID: intp(3)}, 3},
		{"slot field", Envelope{Slot: intp(4)}, 4},
		{"slotId field", Envelope{SlotID: intp(5)}, 5},
		{"id wins over slot", Envelope{ID: intp(1), Slot: intp(2)}, 1},
		{"zero id falls through", Envelope{ID: intp(0), Slot: intp(2)}, 2},
		{"negative rejected", Envelope{ID: intp(-1)}, 0},
		{"absent", Envelope{}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.ev.slotID())
		})
	}
}

func TestDecodeAcceptsUnknownFields(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"status_update","firmware":"v2.1","uptime":7}`))
	require.NoError(t, err)
	assert.Equal(t, TypeStatusUpdate, ev.Type)
	require.NotNil(t, ev.Uptime)
	assert.Equal(t, int64(7), *ev.Uptime)
}

func TestDecodeSkipsWrongTypedFields(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"status_update","total_spaces":"lots","available_spaces":4,"barrier_open":true}`))
	require.NoError(t, err)
	assert.Equal(t, TypeStatusUpdate, ev.Type)
	assert.Nil(t, ev.TotalSpaces)
	require.NotNil(t, ev.AvailableSpaces)
	assert.Equal(t, 4, *ev.AvailableSpaces)
	require.NotNil(t, ev.BarrierOpen)
	assert.True(t, *ev.BarrierOpen)
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	assert.Error(t, err)
}
