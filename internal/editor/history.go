// Package editor is the client editing engine: undo/redo history, the
// pending-change tracker, the per-project cache and the coordinator that
// moves snapshots between the live canvas and the ledger.
package editor

import "github.com/erdstudio/engine/internal/snapshot"

// DefaultHistoryLimit bounds the undo stack when no limit is configured.
const DefaultHistoryLimit = 100

// History is a linear two-stack undo/redo log of complete snapshots.
// It is not safe for concurrent use; Session serializes access.
type History struct {
	undo  []*snapshot.Snapshot
	redo  []*snapshot.Snapshot
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// RecordBeforeMutation pushes the pre-mutation state and discards redo.
func (h *History) RecordBeforeMutation(current *snapshot.Snapshot) {
	h.push(current.Clone())
	h.redo = h.redo[:0]
}

func (h *History) push(s *snapshot.Snapshot) {
	h.undo = append(h.undo, s)
	if len(h.undo) > h.limit {
		// drop oldest
		copy(h.undo, h.undo[1:])
		h.undo[len(h.undo)-1] = nil
		h.undo = h.undo[:len(h.undo)-1]
	}
}

// Undo returns the state to load, moving current onto the redo stack.
// ok is false when there is nothing to undo.
func (h *History) Undo(current *snapshot.Snapshot) (*snapshot.Snapshot, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current.Clone())
	return prev.Clone(), true
}

// Redo is the inverse of Undo.
func (h *History) Redo(current *snapshot.Snapshot) (*snapshot.Snapshot, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.push(current.Clone())
	return next.Clone(), true
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }

func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Reset clears both stacks.
func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
}

// Depth returns the sizes of the undo and redo stacks.
func (h *History) Depth() (undo, redo int) {
	return len(h.undo), len(h.redo)
}
