package editor

import (
	"sync"

	"github.com/google/uuid"

	"github.com/erdstudio/engine/internal/snapshot"
	"github.com/erdstudio/engine/pkg/config"
	appErr "github.com/erdstudio/engine/pkg/errors"
)

// Session is the editing state of one window: the canvas plus its
// history, tracker and project cache. Mutations go through the hooks
// below so each is recorded before it is applied.
type Session struct {
	mu      sync.Mutex
	canvas  Canvas
	history *History
	tracker *Tracker
	cache   *Cache
}

func NewSession(canvas Canvas, history *History, tracker *Tracker, cache *Cache) *Session {
	return &Session{canvas: canvas, history: history, tracker: tracker, cache: cache}
}

// NewSessionFromSettings builds a session on a MemoryCanvas from config.
func NewSessionFromSettings(s config.EditorSettings, sched Scheduler) *Session {
	return NewSession(NewMemoryCanvas(), NewHistory(s.HistoryLimit), NewTracker(s.Debounce, sched), NewCache())
}

func (s *Session) History() *History { return s.history }

func (s *Session) Tracker() *Tracker { return s.tracker }

func (s *Session) Cache() *Cache { return s.cache }

// Snapshot returns a copy of the live state.
func (s *Session) Snapshot() *snapshot.Snapshot {
	return s.canvas.Snapshot()
}

// Apply runs fn against a copy of the live state. When fn and validation
// succeed the previous state is recorded, the tracker marked dirty and
// the copy loaded. A failed fn leaves everything untouched.
func (s *Session) Apply(fn func(*snapshot.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.canvas.Snapshot()
	next := current.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.history.RecordBeforeMutation(current)
	s.tracker.MarkDirty()
	s.tracker.RecordEdit()
	s.canvas.Load(next)
	return nil
}

func (s *Session) AddNode(n snapshot.Node) error {
	return s.Apply(func(sn *snapshot.Snapshot) error {
		sn.Nodes = append(sn.Nodes, n)
		return nil
	})
}

func (s *Session) MoveNode(id string, to snapshot.Position) error {
	return s.Apply(func(sn *snapshot.Snapshot) error {
		i := sn.NodeIndex(id)
		if i < 0 {
			return nodeNotFound(id)
		}
		sn.Nodes[i].Position = to
		return nil
	})
}

func (s *Session) UpdateNode(id string, data snapshot.NodeData) error {
	return s.Apply(func(sn *snapshot.Snapshot) error {
		i := sn.NodeIndex(id)
		if i < 0 {
			return nodeNotFound(id)
		}
		sn.Nodes[i].Data = data
		return nil
	})
}

// RemoveNode deletes the node and every edge touching it.
func (s *Session) RemoveNode(id string) error {
	return s.Apply(func(sn *snapshot.Snapshot) error {
		i := sn.NodeIndex(id)
		if i < 0 {
			return nodeNotFound(id)
		}
		sn.Nodes = append(sn.Nodes[:i], sn.Nodes[i+1:]...)
		kept := sn.Edges[:0]
		for _, e := range sn.Edges {
			if e.Source != id && e.Target != id {
				kept = append(kept, e)
			}
		}
		sn.Edges = kept
		return nil
	})
}

func (s *Session) AddEdge(e snapshot.Edge) error {
	return s.Apply(func(sn *snapshot.Snapshot) error {
		sn.Edges = append(sn.Edges, e)
		return nil
	})
}

// ChangeEdge replaces the edge with the same id.
func (s *Session) ChangeEdge(e snapshot.Edge) error {
	return s.Apply(func(sn *snapshot.Snapshot) error {
		i := sn.EdgeIndex(e.ID)
		if i < 0 {
			return appErr.Newf(appErr.CodeNotFound, "edge %q not found", e.ID)
		}
		sn.Edges[i] = e
		return nil
	})
}

func (s *Session) RemoveEdge(id string) error {
	return s.Apply(func(sn *snapshot.Snapshot) error {
		i := sn.EdgeIndex(id)
		if i < 0 {
			return appErr.Newf(appErr.CodeNotFound, "edge %q not found", id)
		}
		sn.Edges = append(sn.Edges[:i], sn.Edges[i+1:]...)
		return nil
	})
}

// Undo loads the previous state. It is never itself recorded.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.history.Undo(s.canvas.Snapshot())
	if !ok {
		return false
	}
	s.canvas.Load(prev)
	s.tracker.RecordUndo()
	s.tracker.MarkDirty()
	return true
}

// Redo re-applies the last undone state. It is never itself recorded.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.history.Redo(s.canvas.Snapshot())
	if !ok {
		return false
	}
	s.canvas.Load(next)
	s.tracker.RecordRedo()
	s.tracker.MarkDirty()
	return true
}

// capture returns the live state and the edit count at this instant.
func (s *Session) capture() (*snapshot.Snapshot, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.Snapshot(), s.tracker.Edits()
}

// flush parks the live state of projectID in the cache.
func (s *Session) flush(projectID uuid.UUID) {
	snap, edits := s.capture()
	s.cache.Save(projectID, snap, edits)
}

// activate loads snap as a fresh editing state.
func (s *Session) activate(snap *snapshot.Snapshot, edits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canvas.Load(snap)
	s.history.Reset()
	s.tracker.Reset(edits)
}

func nodeNotFound(id string) error {
	return appErr.Newf(appErr.CodeNotFound, "node %q not found", id)
}
