package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan []byte) map[string]any {
	t.Helper()
	select {
	case data := <-ch:
		var out map[string]any
		require.NoError(t, json.Unmarshal(data, &out))
		return out
	default:
		t.Fatal("expected a message")
		return nil
	}
}

func TestBroadcastReachesAllObservers(t *testing.T) {
	h := NewHub()
	_, ch1 := h.Subscribe()
	_, ch2 := h.Subscribe()

	h.Broadcast(map[string]any{"type": "barrier_status", "status": "OPEN"})

	assert.Equal(t, "barrier_status", recv(t, ch1)["type"])
	assert.Equal(t, "barrier_status", recv(t, ch2)["type"])
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe()
	h.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.ObserverCount())
}

func TestSlowObserverDoesNotBlockBroadcast(t *testing.T) {
	h := NewHub()
	_, slow := h.Subscribe()

	for i := 0; i < observerBuffer+10; i++ {
		h.Broadcast(map[string]any{"seq": i})
	}

	// The buffer holds the first messages; the rest were dropped.
	assert.Len(t, slow, observerBuffer)
}

func TestSendToActuatorWithoutAttachFails(t *testing.T) {
	h := NewHub()
	assert.False(t, h.SendToActuator(map[string]any{"command": "open_barrier"}))
}

func TestSendToActuatorDelivers(t *testing.T) {
	h := NewHub()
	ch := h.AttachActuator()

	require.True(t, h.SendToActuator(map[string]any{"command": "open_barrier"}))
	assert.Equal(t, "open_barrier", recv(t, ch)["command"])
}

func TestReconnectSupersedesActuator(t *testing.T) {
	h := NewHub()
	old := h.AttachActuator()
	replacement := h.AttachActuator()

	// The superseded channel is closed.
	_, open := <-old
	assert.False(t, open)

	require.True(t, h.SendToActuator(map[string]any{"command": "get_status"}))
	assert.Equal(t, "get_status", recv(t, replacement)["command"])

	// Detaching the stale channel must not knock out the replacement.
	h.DetachActuator(old)
	assert.True(t, h.ActuatorConnected())

	h.DetachActuator(replacement)
	assert.False(t, h.ActuatorConnected())
}

func TestActuatorChangeCallback(t *testing.T) {
	h := NewHub()
	var states []bool
	h.OnActuatorChange(func(connected bool) { states = append(states, connected) })

	ch := h.AttachActuator()
	h.DetachActuator(ch)

	assert.Equal(t, []bool{true, false}, states)
}
