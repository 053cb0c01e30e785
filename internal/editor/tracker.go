package editor

import (
	"sync"
	"time"
)

// DefaultDebounce is the idle window after which pending changes settle.
const DefaultDebounce = time.Second

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallScheduler struct{}

func (wallScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// WallScheduler schedules on real time.
func WallScheduler() Scheduler { return wallScheduler{} }

// Tracker keeps the pending-changes indicator and the edit counter.
//
// HasPendingChanges turns true on MarkDirty and false after the debounce
// window passes with no further MarkDirty. The edit counter is the net
// number of edits since the last save: undo subtracts one and redo adds one
// back, so undoing everything since a save leaves nothing to save.
type Tracker struct {
	mu      sync.Mutex
	sched   Scheduler
	window  time.Duration
	pending bool
	timer   Timer
	gen     uint64
	edits   int
}

func NewTracker(window time.Duration, sched Scheduler) *Tracker {
	if window <= 0 {
		window = DefaultDebounce
	}
	if sched == nil {
		sched = WallScheduler()
	}
	return &Tracker{sched: sched, window: window}
}

// MarkDirty sets the pending flag and restarts the debounce window.
func (t *Tracker) MarkDirty() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = true
	t.gen++
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.sched.AfterFunc(t.window, func() { t.settle(gen) })
}

func (t *Tracker) settle(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// a later MarkDirty owns the flag
	if gen != t.gen {
		return
	}
	t.pending = false
	t.timer = nil
}

func (t *Tracker) HasPendingChanges() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// RecordEdit counts a user mutation.
func (t *Tracker) RecordEdit() { t.add(1) }

// RecordUndo takes back one edit.
func (t *Tracker) RecordUndo() { t.add(-1) }

// RecordRedo re-applies one undone edit.
func (t *Tracker) RecordRedo() { t.add(1) }

func (t *Tracker) add(n int) {
	t.mu.Lock()
	t.edits += n
	t.mu.Unlock()
}

// Edits returns the net edit count since the last save.
func (t *Tracker) Edits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.edits
}

// CanSave reports whether there is anything to save.
func (t *Tracker) CanSave() bool {
	return t.Edits() != 0
}

// Saved subtracts the edits a successful save captured. Edits made while
// the save was in flight stay counted.
func (t *Tracker) Saved(captured int) {
	t.add(-captured)
}

// Reset settles the indicator and sets the edit counter, used on activation.
func (t *Tracker) Reset(edits int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.pending = false
	t.edits = edits
}
