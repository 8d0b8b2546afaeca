package api

import (
	"encoding/json"
	"io"
	"log"

	"github.com/gin-gonic/gin"
)

// ObserverStream handles GET /api/stream: a Server-Sent Events channel that
// opens with the full snapshot and then mirrors every engine broadcast.
func (h *Handler) ObserverStream(c *gin.Context) {
	id, ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(id)
	log.Printf("observer %d connected from %s", id, c.ClientIP())

	initial, err := json.Marshal(gin.H{"type": "initial_data", "data": h.state.Get()})
	if err != nil {
		log.Printf("observer %d: failed to marshal initial snapshot: %v", id, err)
		return
	}

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.SSEvent("message", string(initial))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
	log.Printf("observer %d disconnected", id)
}

// ActuatorStream handles GET /api/actuator/stream: the single actuator's
// command channel. A reconnect supersedes any previous actuator. The engine
// greets the device with a get_status command, as it would on a fresh
// connection, so the device pushes a full snapshot back.
func (h *Handler) ActuatorStream(c *gin.Context) {
	ch := h.hub.AttachActuator()
	defer h.hub.DetachActuator(ch)
	log.Printf("actuator connected from %s", c.ClientIP())

	h.hub.SendToActuator(map[string]any{"command": "get_status"})

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
	log.Printf("actuator disconnected")
}
