package ptw

import "github.com/suhaskvittal/frost/emu/cache"

// LevelCache is a small direct-mapped-or-better cache of one page table
// level's entries, letting a walker skip a memory access for directories
// it has already traversed recently.
type LevelCache struct {
	array *cache.Array
}

// NewLevelCache builds a cache for one non-leaf page table level.
func NewLevelCache(sets, ways int, seed int64) *LevelCache {
	return &LevelCache{array: cache.NewArray(sets, ways, cache.LRU, seed)}
}

// Probe reports whether tableAddr (a table PFN line address) is cached.
func (c *LevelCache) Probe(tableAddr uint64) bool { return c.array.Probe(tableAddr) }

// Fill installs tableAddr, evicting per the array's LRU policy.
func (c *LevelCache) Fill(tableAddr uint64) { c.array.Fill(tableAddr, false, 1) }
