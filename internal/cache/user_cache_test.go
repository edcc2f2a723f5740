package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"user-profile/internal/domain"
	"user-profile/internal/live"
)

func TestUserCachePutLoad(t *testing.T) {
	c := NewUserCache(time.Hour, 0)
	data := live.NewData[*domain.User]()

	_, ok := c.Load("u1")
	assert.False(t, ok)

	c.Put("u1", data)
	got, ok := c.Load("u1")
	assert.True(t, ok)
	assert.Same(t, data, got)
	assert.Equal(t, 1, c.Len())

	c.Remove("u1")
	_, ok = c.Load("u1")
	assert.False(t, ok)
}

func TestUserCacheExpires(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	c := NewUserCache(time.Hour, 0)
	c.now = func() time.Time { return now }

	c.Put("u1", live.NewData[*domain.User]())

	now = now.Add(59 * time.Minute)
	_, ok := c.Load("u1")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Load("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestUserCacheDeleteExpired(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	c := NewUserCache(time.Hour, 0)
	c.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		c.Put(fmt.Sprintf("old-%d", i), live.NewData[*domain.User]())
	}
	now = now.Add(30 * time.Minute)
	c.Put("recent", live.NewData[*domain.User]())

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 100, c.DeleteExpired())
	assert.Equal(t, 1, c.Len())

	_, ok := c.Load("recent")
	assert.True(t, ok)
	assert.Equal(t, 0, c.DeleteExpired())
}

func TestUserCacheDeleteExpiredWithoutTTL(t *testing.T) {
	c := NewUserCache(0, 0)
	c.Put("u1", live.NewData[*domain.User]())

	assert.Equal(t, 0, c.DeleteExpired())
	assert.Equal(t, 1, c.Len())
}

func TestUserCacheMaxEntries(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	c := NewUserCache(time.Hour, 3)
	c.now = func() time.Time { return now }

	for _, id := range []string{"a", "b", "c"} {
		c.Put(id, live.NewData[*domain.User]())
		now = now.Add(time.Second)
	}

	c.Put("d", live.NewData[*domain.User]())
	assert.Equal(t, 3, c.Len())
	_, ok := c.Load("a")
	assert.False(t, ok, "oldest entry should be evicted")

	// replacing an existing id does not evict anything
	c.Put("b", live.NewData[*domain.User]())
	assert.Equal(t, 3, c.Len())
	_, ok = c.Load("c")
	assert.True(t, ok)
}

func TestUserCacheMaxEntriesPrefersExpired(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	c := NewUserCache(time.Hour, 2)
	c.now = func() time.Time { return now }

	c.Put("expired", live.NewData[*domain.User]())
	now = now.Add(50 * time.Minute)
	c.Put("young", live.NewData[*domain.User]())
	now = now.Add(15 * time.Minute)

	_, loaded := c.LoadOrStore("new", live.NewData[*domain.User])
	assert.False(t, loaded)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Load("young")
	assert.True(t, ok)
}

func TestUserCacheLoadOrStore(t *testing.T) {
	c := NewUserCache(0, 0)

	first, loaded := c.LoadOrStore("u1", live.NewData[*domain.User])
	assert.False(t, loaded)

	second, loaded := c.LoadOrStore("u1", live.NewData[*domain.User])
	assert.True(t, loaded)
	assert.Same(t, first, second)
}

func TestUserCacheRemoveIf(t *testing.T) {
	c := NewUserCache(0, 0)
	old := live.NewData[*domain.User]()
	current := live.NewData[*domain.User]()

	c.Put("u1", current)
	c.RemoveIf("u1", old)
	got, ok := c.Load("u1")
	assert.True(t, ok)
	assert.Same(t, current, got)

	c.RemoveIf("u1", current)
	_, ok = c.Load("u1")
	assert.False(t, ok)
}
