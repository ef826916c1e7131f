package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenCacheAddAndContains(t *testing.T) {
	cache := NewSeenCache(10, 5)

	assert.False(t, cache.Contains("a@example.com"))
	cache.Add("a@example.com")
	assert.True(t, cache.Contains("a@example.com"))
	assert.Equal(t, 1, cache.Len())

	// Repeats do not grow the cache.
	cache.Add("a@example.com")
	assert.Equal(t, 1, cache.Len())
}

func TestSeenCacheIgnoresEmptyID(t *testing.T) {
	cache := NewSeenCache(10, 5)
	cache.Add("")
	assert.False(t, cache.Contains(""))
	assert.Equal(t, 0, cache.Len())
}

func TestSeenCacheEnforceBelowHighWaterIsNoop(t *testing.T) {
	cache := NewSeenCache(10, 5)
	for i := 0; i < 10; i++ {
		cache.Add(fmt.Sprintf("id-%d", i))
	}
	cache.Enforce()
	assert.Equal(t, 10, cache.Len())
	assert.True(t, cache.Contains("id-0"))
}

func TestSeenCacheEnforceEvictsOldestFirst(t *testing.T) {
	cache := NewSeenCache(10, 5)
	for i := 0; i < 11; i++ {
		cache.Add(fmt.Sprintf("id-%d", i))
	}
	assert.Equal(t, 11, cache.Len())

	cache.Enforce()
	assert.Equal(t, 5, cache.Len())

	for i := 0; i < 6; i++ {
		assert.False(t, cache.Contains(fmt.Sprintf("id-%d", i)), "id-%d should be evicted", i)
	}
	for i := 6; i < 11; i++ {
		assert.True(t, cache.Contains(fmt.Sprintf("id-%d", i)), "id-%d should remain", i)
	}
}

func TestSeenCacheDefaultWatermarks(t *testing.T) {
	cache := NewSeenCache(0, 0)
	assert.Equal(t, 1000, cache.highWater)
	assert.Equal(t, 500, cache.lowWater)
}
