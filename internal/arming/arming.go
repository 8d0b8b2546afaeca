// Package arming keeps short-lived card→mode hints between an RFID scan and
// the device-confirmed vehicle event. Entries are advisory UX state, not an
// authorization cache: every consumer re-validates the card against the
// system of record.
package arming

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Modes a scanned card can be armed for.
const (
	ModeEntry = "entry"
	ModeExit  = "exit"
)

// ArmedAuth records what a scanned card is expected to do next.
type ArmedAuth struct {
	Mode    string
	ArmedAt time.Time
}

// Cache maps cardID to its armed hint with a fixed expiry window.
type Cache struct {
	window time.Duration
	items  *gocache.Cache
}

// NewCache creates a cache whose entries expire after window.
func NewCache(window time.Duration) *Cache {
	return &Cache{
		window: window,
		items:  gocache.New(window, 2*window),
	}
}

// Arm stores (or replaces) the hint for a card.
func (c *Cache) Arm(cardID, mode string) {
	c.items.Set(cardID, ArmedAuth{Mode: mode, ArmedAt: time.Now()}, c.window)
}

// Consume returns the hint for a card and deletes it, expired or not.
func (c *Cache) Consume(cardID string) (ArmedAuth, bool) {
	v, found := c.items.Get(cardID)
	c.items.Delete(cardID)
	if !found {
		return ArmedAuth{}, false
	}
	return v.(ArmedAuth), true
}

// Peek returns the hint without deleting it. Diagnostics only.
func (c *Cache) Peek(cardID string) (ArmedAuth, bool) {
	v, found := c.items.Get(cardID)
	if !found {
		return ArmedAuth{}, false
	}
	return v.(ArmedAuth), true
}
