package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
)

func cmd(setpoint float64) *model.UserCommand {
	return &model.UserCommand{ID: uuid.New(), Enabled: true, Setpoint: &setpoint}
}

func TestCommandCache_PutGet(t *testing.T) {
	c := NewCommandCache(4, time.Minute)

	want := cmd(68)
	c.Put("warren", "fancoil-1", want)

	got, ok := c.Get("warren", "fancoil-1")
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = c.Get("warren", "fancoil-2")
	assert.False(t, ok)
}

func TestCommandCache_NilCommandIsCached(t *testing.T) {
	c := NewCommandCache(4, time.Minute)

	c.Put("warren", "fancoil-1", nil)

	got, ok := c.Get("warren", "fancoil-1")
	require.True(t, ok, "a nil command is a valid cached answer")
	assert.Nil(t, got)
}

func TestCommandCache_TTLExpiry(t *testing.T) {
	c := NewCommandCache(4, time.Minute)
	now := time.Now()
	c.nowFn = func() time.Time { return now }

	c.Put("warren", "fancoil-1", cmd(68))

	now = now.Add(30 * time.Second)
	_, ok := c.Get("warren", "fancoil-1")
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	_, ok = c.Get("warren", "fancoil-1")
	assert.False(t, ok, "entry past TTL must not be served")
	assert.Equal(t, 0, c.Len())
}

func TestCommandCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCommandCache(2, time.Minute)

	c.Put("loc", "a", cmd(1))
	c.Put("loc", "b", cmd(2))

	// Touch a so b becomes the eviction candidate.
	_, ok := c.Get("loc", "a")
	require.True(t, ok)

	c.Put("loc", "c", cmd(3))

	_, ok = c.Get("loc", "b")
	assert.False(t, ok)
	_, ok = c.Get("loc", "a")
	assert.True(t, ok)
	_, ok = c.Get("loc", "c")
	assert.True(t, ok)
}

func TestCommandCache_UpdateRefreshesTTL(t *testing.T) {
	c := NewCommandCache(4, time.Minute)
	now := time.Now()
	c.nowFn = func() time.Time { return now }

	c.Put("loc", "a", cmd(1))
	now = now.Add(45 * time.Second)
	c.Put("loc", "a", cmd(2))

	now = now.Add(45 * time.Second)
	got, ok := c.Get("loc", "a")
	require.True(t, ok, "update should have reset the TTL clock")
	assert.Equal(t, 2.0, *got.Setpoint)
}

func TestCommandCache_DefaultsOnZeroConfig(t *testing.T) {
	c := NewCommandCache(0, 0)
	assert.Equal(t, 256, c.capacity)
	assert.Equal(t, 15*time.Minute, c.ttl)
}
