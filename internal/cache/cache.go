package cache

import (
	"sync"

	"FinVision/internal/model"
)

// SnapshotCache maps standard assets to their last fetched snapshot.
// Entries never expire; an entry disappears only through Delete.
// Thread-safe with sync.RWMutex.
type SnapshotCache struct {
	mu    sync.RWMutex
	items map[model.AssetID]*model.AssetSnapshot
}

// New creates an empty SnapshotCache.
func New() *SnapshotCache {
	return &SnapshotCache{items: make(map[model.AssetID]*model.AssetSnapshot)}
}

// Get returns a copy of the cached snapshot for id.
func (c *SnapshotCache) Get(id model.AssetID) (*model.AssetSnapshot, bool) {
	c.mu.RLock()
	snap, ok := c.items[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

// Set stores snap under id, overwriting any previous entry. The custom asset
// is never cached; Set reports false for it.
func (c *SnapshotCache) Set(id model.AssetID, snap *model.AssetSnapshot) bool {
	if id.IsCustom() || snap == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[id] = snap.Clone()
	return true
}

// Delete evicts id and reports whether an entry existed.
func (c *SnapshotCache) Delete(id model.AssetID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	delete(c.items, id)
	return ok
}

// Len returns the number of cached assets.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
