package cache

import (
	"sync"
	"time"

	"user-profile/internal/domain"
	"user-profile/internal/live"
)

type entry struct {
	data     *live.Data[*domain.User]
	storedAt time.Time
}

// UserCache keeps the live user containers handed out by the service so that
// concurrent callers asking for the same id share one fetch.
type UserCache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

// NewUserCache builds a cache whose entries expire after ttl. A ttl of zero
// keeps entries until they are removed. When maxEntries is positive, storing
// into a full cache drops expired entries first and then the oldest one.
func NewUserCache(ttl time.Duration, maxEntries int) *UserCache {
	return &UserCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    make(map[string]entry),
	}
}

func (c *UserCache) Load(id string) (*live.Data[*domain.User], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if c.expired(e, c.now()) {
		delete(c.entries, id)
		return nil, false
	}
	return e.data, true
}

func (c *UserCache) Put(id string, data *live.Data[*domain.User]) {
	c.mu.Lock()
	c.store(id, data)
	c.mu.Unlock()
}

// LoadOrStore returns the cached container for id, or stores and returns
// the one built by create. loaded is true when the cached one was returned.
func (c *UserCache) LoadOrStore(id string, create func() *live.Data[*domain.User]) (data *live.Data[*domain.User], loaded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok && !c.expired(e, c.now()) {
		return e.data, true
	}
	data = create()
	c.store(id, data)
	return data, false
}

// RemoveIf drops id only while it still maps to data.
func (c *UserCache) RemoveIf(id string, data *live.Data[*domain.User]) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok && e.data == data {
		delete(c.entries, id)
	}
	c.mu.Unlock()
}

func (c *UserCache) Remove(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// DeleteExpired removes every expired entry and returns how many went.
func (c *UserCache) DeleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteExpired(c.now())
}

func (c *UserCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// store must be called with mu held.
func (c *UserCache) store(id string, data *live.Data[*domain.User]) {
	now := c.now()
	if _, exists := c.entries[id]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.deleteExpired(now)
		if len(c.entries) >= c.maxEntries {
			c.evictOldest()
		}
	}
	c.entries[id] = entry{data: data, storedAt: now}
}

func (c *UserCache) deleteExpired(now time.Time) int {
	if c.ttl <= 0 {
		return 0
	}
	removed := 0
	for id, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

func (c *UserCache) evictOldest() {
	var (
		oldestID string
		oldestAt time.Time
		found    bool
	)
	for id, e := range c.entries {
		if !found || e.storedAt.Before(oldestAt) {
			oldestID, oldestAt, found = id, e.storedAt, true
		}
	}
	if found {
		delete(c.entries, oldestID)
	}
}

func (c *UserCache) expired(e entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.storedAt) >= c.ttl
}
