package index

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/region"
	"github.com/MrSnakeDoc/teslahub/internal/sources/defaults"
)

// DefaultsIndex keeps the loaded default set in memory.
// It is swapped wholesale by the reloader and read by the HTTP handlers and
// by server-side tabs.
type DefaultsIndex struct {
	mu         sync.RWMutex
	entries    []defaults.Bookmark
	byRegion   map[region.Code]int // region -> entry count
	lastReload time.Time           // Timestamp of last successful reload
}

// NewDefaultsIndex creates an empty index
func NewDefaultsIndex() *DefaultsIndex {
	return &DefaultsIndex{
		byRegion: make(map[region.Code]int),
	}
}

// Update replaces all entries in the index
func (idx *DefaultsIndex) Update(entries []defaults.Bookmark) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Clear and rebuild
	idx.entries = make([]defaults.Bookmark, len(entries))
	copy(idx.entries, entries)
	idx.byRegion = make(map[region.Code]int)
	for _, e := range entries {
		idx.byRegion[e.Region]++
	}
	idx.lastReload = time.Now()
}

// ForRegion returns the set shown to a profile in code: the region's own
// entries, then the Global ones.
func (idx *DefaultsIndex) ForRegion(code region.Code) domain.BookmarkList {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return defaults.ForRegion(idx.entries, code)
}

// Defaults makes the index usable as a tab's defaults source.
func (idx *DefaultsIndex) Defaults(_ context.Context, r region.Code) (domain.BookmarkList, error) {
	return idx.ForRegion(r), nil
}

// Count returns the number of entries in the index
func (idx *DefaultsIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.entries)
}

// RegionCounts returns the number of entries per region
func (idx *DefaultsIndex) RegionCounts() map[region.Code]int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[region.Code]int, len(idx.byRegion))
	for k, v := range idx.byRegion {
		out[k] = v
	}
	return out
}

// GetLastReload returns the timestamp of the last reload
func (idx *DefaultsIndex) GetLastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}
