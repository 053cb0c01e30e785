package editor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erdstudio/engine/internal/snapshot"
)

// CacheEntry is the parked state of a project that is not open.
type CacheEntry struct {
	Snapshot *snapshot.Snapshot
	// Edits is the unsaved edit count at flush time.
	Edits    int
	CachedAt time.Time
}

// Cache holds at most one entry per project.
type Cache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]CacheEntry
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{entries: map[uuid.UUID]CacheEntry{}, now: time.Now}
}

// Save upserts the entry for projectID with a private copy of s.
func (c *Cache) Save(projectID uuid.UUID, s *snapshot.Snapshot, edits int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[projectID] = CacheEntry{Snapshot: s.Clone(), Edits: edits, CachedAt: c.now()}
}

// Get returns a copy of the cached entry.
func (c *Cache) Get(projectID uuid.UUID) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[projectID]
	if !ok {
		return CacheEntry{}, false
	}
	e.Snapshot = e.Snapshot.Clone()
	return e, true
}

// Saved subtracts edits persisted while the project was parked.
func (c *Cache) Saved(projectID uuid.UUID, captured int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[projectID]; ok {
		e.Edits -= captured
		c.entries[projectID] = e
	}
}

func (c *Cache) Clear(projectID uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, projectID)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
