package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdstudio/engine/internal/snapshot"
	"github.com/erdstudio/engine/pkg/config"
)

func TestUndoRedoInverse(t *testing.T) {
	s := NewSession(NewMemoryCanvas(), NewHistory(0), NewTracker(0, &manualScheduler{}), NewCache())
	start := s.Snapshot()

	require.NoError(t, s.AddNode(table("users", 0)))
	require.NoError(t, s.AddNode(table("orders", 100)))
	require.NoError(t, s.AddEdge(snapshot.Edge{ID: "e1", Source: "orders", Target: "users"}))
	require.NoError(t, s.MoveNode("users", snapshot.Position{X: 5, Y: 5}))
	end := s.Snapshot()

	for i := 0; i < 4; i++ {
		require.True(t, s.Undo())
	}
	assert.True(t, start.Equal(s.Snapshot()))
	assert.False(t, s.Undo())
	assert.False(t, s.Tracker().CanSave())

	for i := 0; i < 4; i++ {
		require.True(t, s.Redo())
	}
	assert.True(t, end.Equal(s.Snapshot()))
	assert.False(t, s.Redo())
	// redo re-applies edits, so undo-all then redo-all is saveable again
	assert.Equal(t, 4, s.Tracker().Edits())
	assert.True(t, s.Tracker().CanSave())
}

func TestFreshMutationClearsRedo(t *testing.T) {
	s := NewSession(NewMemoryCanvas(), NewHistory(0), NewTracker(0, &manualScheduler{}), NewCache())
	require.NoError(t, s.AddNode(table("a", 0)))
	require.NoError(t, s.AddNode(table("b", 0)))
	require.True(t, s.Undo())
	require.True(t, s.History().CanRedo())

	require.NoError(t, s.AddNode(table("c", 0)))
	assert.False(t, s.History().CanRedo())
}

func TestUndoIsNotRecorded(t *testing.T) {
	h := NewHistory(0)
	a := snapshot.Empty()
	b := a.Clone()
	b.Nodes = append(b.Nodes, table("x", 0))

	h.RecordBeforeMutation(a)
	prev, ok := h.Undo(b)
	require.True(t, ok)
	assert.True(t, a.Equal(prev))
	undo, redo := h.Depth()
	assert.Equal(t, 0, undo)
	assert.Equal(t, 1, redo)
}

func TestHistoryLimitDropsOldest(t *testing.T) {
	h := NewHistory(3)
	var states []*snapshot.Snapshot
	for i := 0; i < 5; i++ {
		s := snapshot.Empty()
		s.Viewport.X = float64(i)
		states = append(states, s)
		h.RecordBeforeMutation(s)
	}
	undo, _ := h.Depth()
	assert.Equal(t, 3, undo)

	cur := snapshot.Empty()
	for i := 4; i >= 2; i-- {
		prev, ok := h.Undo(cur)
		require.True(t, ok)
		assert.Equal(t, float64(i), prev.Viewport.X)
		cur = prev
	}
	assert.False(t, h.CanUndo())
}

func TestHistoryStoresCopies(t *testing.T) {
	h := NewHistory(0)
	s := snapshot.Empty()
	s.Nodes = append(s.Nodes, table("a", 1))
	h.RecordBeforeMutation(s)
	s.Nodes[0].Position.X = 42

	prev, ok := h.Undo(snapshot.Empty())
	require.True(t, ok)
	assert.Equal(t, float64(1), prev.Nodes[0].Position.X)
}

func TestFailedMutationLeavesStateAlone(t *testing.T) {
	s := NewSession(NewMemoryCanvas(), NewHistory(0), NewTracker(0, &manualScheduler{}), NewCache())
	require.NoError(t, s.AddNode(table("a", 0)))
	before := s.Snapshot()

	assert.Error(t, s.MoveNode("ghost", snapshot.Position{}))
	assert.Error(t, s.AddEdge(snapshot.Edge{ID: "e", Source: "a", Target: "ghost"}))
	assert.Error(t, s.AddNode(table("a", 1)))

	assert.True(t, before.Equal(s.Snapshot()))
	undo, _ := s.History().Depth()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 1, s.Tracker().Edits())
}

func TestRemoveNodeDropsEdges(t *testing.T) {
	s := NewSession(NewMemoryCanvas(), NewHistory(0), NewTracker(0, &manualScheduler{}), NewCache())
	require.NoError(t, s.AddNode(table("a", 0)))
	require.NoError(t, s.AddNode(table("b", 0)))
	require.NoError(t, s.AddEdge(snapshot.Edge{ID: "ab", Source: "a", Target: "b"}))
	require.NoError(t, s.ChangeEdge(snapshot.Edge{ID: "ab", Source: "a", Target: "b", Cardinality: "1:n"}))
	require.NoError(t, s.UpdateNode("b", snapshot.NodeData{Label: "B", Columns: []snapshot.Column{{Name: "id", Type: "int"}}}))

	require.NoError(t, s.RemoveNode("a"))
	got := s.Snapshot()
	assert.Len(t, got.Nodes, 1)
	assert.Empty(t, got.Edges)

	require.True(t, s.Undo())
	assert.Len(t, s.Snapshot().Edges, 1)
	assert.Error(t, s.RemoveEdge("nope"))
}

func TestSessionFromSettings(t *testing.T) {
	cfg := &config.Config{PendingDebounce: 500 * time.Millisecond, HistoryLimit: 2}
	sched := &manualScheduler{}
	s := NewSessionFromSettings(cfg.EditorOptions(), sched)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.AddNode(table(id, 0)))
	}
	undo, _ := s.History().Depth()
	assert.Equal(t, 2, undo)

	assert.True(t, s.Tracker().HasPendingChanges())
	sched.Advance(400 * time.Millisecond)
	assert.True(t, s.Tracker().HasPendingChanges())
	sched.Advance(100 * time.Millisecond)
	assert.False(t, s.Tracker().HasPendingChanges())
}
