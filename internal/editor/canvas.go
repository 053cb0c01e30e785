package editor

import (
	"sync"

	"github.com/erdstudio/engine/internal/snapshot"
)

// Canvas is the live diagram the renderer draws.
type Canvas interface {
	// Snapshot returns a copy of the current state.
	Snapshot() *snapshot.Snapshot
	// Load replaces the current state.
	Load(s *snapshot.Snapshot)
}

// MemoryCanvas is a Canvas without a renderer.
type MemoryCanvas struct {
	mu    sync.RWMutex
	state *snapshot.Snapshot
}

func NewMemoryCanvas() *MemoryCanvas {
	return &MemoryCanvas{state: snapshot.Empty()}
}

func (c *MemoryCanvas) Snapshot() *snapshot.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

func (c *MemoryCanvas) Load(s *snapshot.Snapshot) {
	c.mu.Lock()
	c.state = s.Clone()
	c.mu.Unlock()
}
