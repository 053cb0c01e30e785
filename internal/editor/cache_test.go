package editor

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdstudio/engine/internal/snapshot"
)

func TestCacheUpsert(t *testing.T) {
	c := NewCache()
	id := uuid.New()

	s1 := snapshot.Empty()
	s1.Nodes = append(s1.Nodes, table("a", 0))
	c.Save(id, s1, 1)

	s2 := s1.Clone()
	s2.Nodes = append(s2.Nodes, table("b", 0))
	c.Save(id, s2, 2)
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get(id)
	require.True(t, ok)
	assert.True(t, s2.Equal(got.Snapshot))
	assert.Equal(t, 2, got.Edits)

	// callers cannot reach into the cache
	got.Snapshot.Nodes[0].ID = "zzz"
	again, _ := c.Get(id)
	assert.Equal(t, "a", again.Snapshot.Nodes[0].ID)

	c.Saved(id, 2)
	again, _ = c.Get(id)
	assert.Zero(t, again.Edits)

	c.Clear(id)
	_, ok = c.Get(id)
	assert.False(t, ok)
}
