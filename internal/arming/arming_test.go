package arming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeReturnsAndDeletes(t *testing.T) {
	c := NewCache(time.Minute)
	c.Arm("AA11", ModeEntry)

	auth, ok := c.Consume("AA11")
	require.True(t, ok)
	assert.Equal(t, ModeEntry, auth.Mode)
	assert.WithinDuration(t, time.Now(), auth.ArmedAt, time.Second)

	_, ok = c.Consume("AA11")
	assert.False(t, ok)
}

func TestConsumeUnknownCard(t *testing.T) {
	c := NewCache(time.Minute)
	_, ok := c.Consume("ZZ99")
	assert.False(t, ok)
}

func TestPeekDoesNotDelete(t *testing.T) {
	c := NewCache(time.Minute)
	c.Arm("AA11", ModeExit)

	_, ok := c.Peek("AA11")
	require.True(t, ok)
	_, ok = c.Peek("AA11")
	assert.True(t, ok)
}

func TestEntriesExpireAfterWindow(t *testing.T) {
	c := NewCache(20 * time.Millisecond)
	c.Arm("AA11", ModeEntry)

	time.Sleep(40 * time.Millisecond)

	_, ok := c.Consume("AA11")
	assert.False(t, ok)
}

func TestRearmReplacesMode(t *testing.T) {
	c := NewCache(time.Minute)
	c.Arm("AA11", ModeEntry)
	c.Arm("AA11", ModeExit)

	auth, ok := c.Consume("AA11")
	require.True(t, ok)
	assert.Equal(t, ModeExit, auth.Mode)
}
