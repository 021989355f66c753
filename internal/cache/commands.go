// Package cache holds the processor's last-known operator commands. The
// command store is polled every tick; when it is unreachable the processor
// falls back to the cached command instead of dropping to defaults, bounded
// by a TTL so a dead database cannot pin a stale override forever.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/AutomataControls/nexus-engine/internal/domain/model"
	"github.com/AutomataControls/nexus-engine/internal/metrics"
)

// CommandCache is an LRU with per-entry TTL keyed by (location, equipment).
type CommandCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List
	nowFn    func() time.Time
}

type commandEntry struct {
	key       string
	cmd       *model.UserCommand
	expiresAt time.Time
}

func NewCommandCache(capacity int, ttl time.Duration) *CommandCache {
	if capacity <= 0 {
		capacity = 256
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CommandCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		nowFn:    time.Now,
	}
}

func commandKey(locationID, equipmentID string) string {
	return locationID + "/" + equipmentID
}

// Get returns the cached command, or nil and false when absent or expired.
func (c *CommandCache) Get(locationID, equipmentID string) (*model.UserCommand, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[commandKey(locationID, equipmentID)]
	if !ok {
		metrics.CommandCacheMisses.Inc()
		return nil, false
	}

	e := elem.Value.(*commandEntry)
	if c.nowFn().After(e.expiresAt) {
		c.removeElement(elem)
		metrics.CommandCacheMisses.Inc()
		return nil, false
	}

	c.order.MoveToFront(elem)
	metrics.CommandCacheHits.Inc()
	return e.cmd, true
}

// Put stores the latest command for a unit. A nil command is cached too: it
// records that the store returned "no operator override" so a later outage
// does not resurrect an older cached override.
func (c *CommandCache) Put(locationID, equipmentID string, cmd *model.UserCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := commandKey(locationID, equipmentID)
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		e := elem.Value.(*commandEntry)
		e.cmd = cmd
		e.expiresAt = c.nowFn().Add(c.ttl)
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	elem := c.order.PushFront(&commandEntry{
		key:       key,
		cmd:       cmd,
		expiresAt: c.nowFn().Add(c.ttl),
	})
	c.items[key] = elem
}

func (c *CommandCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CommandCache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*commandEntry).key)
}
