// Package gateway fans engine output out to connected clients: broadcasts to
// every observer, single-target commands to the one actuator (the physical
// barrier + reader device).
package gateway

import (
	"encoding/json"
	"log"
	"sync"
)

// Gateway is the transport boundary the dispatcher depends on.
type Gateway interface {
	Broadcast(msg any)
	SendToActuator(msg any) bool
}

// observerBuffer is the per-observer channel depth. A slow observer that
// falls this far behind starts losing messages rather than blocking the
// engine.
const observerBuffer = 16

// Hub is an in-process Gateway implementation. Observers and the actuator
// attach as buffered byte channels; the API layer drains them onto whatever
// wire it serves (SSE streams).
type Hub struct {
	mu        sync.Mutex
	nextID    int64
	observers map[int64]chan []byte
	actuator  chan []byte

	// onActuatorChange, if set, is invoked outside the lock with the new
	// connection state whenever the actuator attaches or detaches.
	onActuatorChange func(connected bool)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{observers: make(map[int64]chan []byte)}
}

// OnActuatorChange registers the callback fired when the actuator attaches or
// detaches. Must be called before clients connect.
func (h *Hub) OnActuatorChange(fn func(connected bool)) {
	h.onActuatorChange = fn
}

// Subscribe registers a new observer and returns its id and receive channel.
func (h *Hub) Subscribe() (int64, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	ch := make(chan []byte, observerBuffer)
	h.observers[id] = ch
	return id, ch
}

// Unsubscribe removes an observer.
func (h *Hub) Unsubscribe(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.observers[id]; ok {
		delete(h.observers, id)
		close(ch)
	}
}

// AttachActuator registers the actuator command channel. A reconnect
// supersedes the previous channel; the old one is closed.
func (h *Hub) AttachActuator() <-chan []byte {
	h.mu.Lock()
	if h.actuator != nil {
		close(h.actuator)
	}
	ch := make(chan []byte, observerBuffer)
	h.actuator = ch
	h.mu.Unlock()

	if h.onActuatorChange != nil {
		h.onActuatorChange(true)
	}
	return ch
}

// DetachActuator drops the actuator channel, but only if it is still the one
// handed out to the detaching client (a superseded channel must not knock out
// its replacement).
func (h *Hub) DetachActuator(ch <-chan []byte) {
	h.mu.Lock()
	current := h.actuator != nil && ch == (<-chan []byte)(h.actuator)
	if current {
		close(h.actuator)
		h.actuator = nil
	}
	h.mu.Unlock()

	if current && h.onActuatorChange != nil {
		h.onActuatorChange(false)
	}
}

// ActuatorConnected reports whether an actuator channel is attached.
func (h *Hub) ActuatorConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.actuator != nil
}

// ObserverCount returns the number of attached observers.
func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Broadcast marshals msg once and hands it to every observer. Observers whose
// buffers are full lose the message; the engine never blocks on a client.
func (h *Hub) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("gateway: failed to marshal broadcast: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.observers {
		select {
		case ch <- data:
		default:
			log.Printf("gateway: observer %d buffer full, dropping message", id)
		}
	}
}

// SendToActuator delivers a command to the attached actuator. Returns false
// when no actuator is connected or its buffer is full.
func (h *Hub) SendToActuator(msg any) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("gateway: failed to marshal actuator command: %v", err)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.actuator == nil {
		return false
	}
	select {
	case h.actuator <- data:
		return true
	default:
		log.Printf("gateway: actuator buffer full, dropping command")
		return false
	}
}
