package engine

import (
	"github.com/adaoss/Mail2printer/internal/constants"
)

// SeenCache is the process-wide dedup set of Message-Id values. It keeps
// insertion order so that enforcement evicts the oldest entries first,
// giving deterministic least-recently-added semantics. Never persisted;
// a restart relies on the mailbox's own read flags for dedup.
//
// The cache is owned exclusively by the polling loop and needs no lock.
type SeenCache struct {
	highWater int
	lowWater  int
	ids       map[string]struct{}
	order     []string
}

func NewSeenCache(highWater, lowWater int) *SeenCache {
	if highWater <= 0 {
		highWater = constants.SeenCacheHighWater
	}
	if lowWater <= 0 || lowWater > highWater {
		lowWater = highWater / 2
	}
	return &SeenCache{
		highWater: highWater,
		lowWater:  lowWater,
		ids:       make(map[string]struct{}),
		order:     make([]string, 0, highWater),
	}
}

// Contains reports whether the id was seen before. Messages without a
// Message-Id are never deduplicated.
func (c *SeenCache) Contains(id string) bool {
	if id == "" {
		return false
	}
	_, ok := c.ids[id]
	return ok
}

// Add records an id. Empty ids and repeats are ignored.
func (c *SeenCache) Add(id string) {
	if id == "" || c.Contains(id) {
		return
	}
	c.ids[id] = struct{}{}
	c.order = append(c.order, id)
}

// Enforce truncates the cache to the low-water mark once it grows past
// the high-water mark, dropping oldest entries first. Called once per
// poll cycle rather than per insert.
func (c *SeenCache) Enforce() {
	if len(c.order) <= c.highWater {
		return
	}
	drop := len(c.order) - c.lowWater
	for _, id := range c.order[:drop] {
		delete(c.ids, id)
	}
	c.order = append(c.order[:0], c.order[drop:]...)
}

func (c *SeenCache) Len() int {
	return len(c.order)
}
