package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewResponseCache(2, time.Hour)
	c.Add("a", []byte("1"))
	c.Add("b", []byte("2"))

	_, ok := c.Get("a") // a becomes most recent
	assert.True(t, ok)

	c.Add("c", []byte("3"))
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", string(v))
}

func TestResponseCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewResponseCache(10, time.Minute)
	c.now = func() time.Time { return now }

	c.Add("k", []byte("v"))
	now = now.Add(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	hits, misses := c.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
}

func TestResponseCacheUpdateAndClear(t *testing.T) {
	c := NewResponseCache(0, 0)
	c.Add("k", []byte("v1"))
	c.Add("k", []byte("v2"))
	v, _ := c.Get("k")
	assert.Equal(t, "v2", string(v))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("k")
	assert.False(t, ok)
}
