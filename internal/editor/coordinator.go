package editor

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/erdstudio/engine/internal/models"
	"github.com/erdstudio/engine/internal/snapshot"
	appErr "github.com/erdstudio/engine/pkg/errors"
	"github.com/erdstudio/engine/pkg/logger"
)

// Ledger is the server side of persistence as the coordinator sees it.
type Ledger interface {
	GetProject(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	SaveProjectData(ctx context.Context, projectID uuid.UUID, data string, members []uuid.UUID) (*models.Project, *models.Changelog, error)
	DeleteProject(ctx context.Context, projectID uuid.UUID) error
}

// Notifier surfaces failures the user must see.
type Notifier interface {
	SaveFailed(projectID uuid.UUID, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(projectID uuid.UUID, err error)

func (f NotifierFunc) SaveFailed(projectID uuid.UUID, err error) { f(projectID, err) }

// ErrSuperseded is returned by a project switch cancelled by a later one,
// and by a save that overlapped a switch.
var ErrSuperseded = appErr.New(appErr.CodeConflict, "project switch superseded")

type projectObserver interface {
	Observe(p *models.Project)
	Forget(projectID uuid.UUID)
}

// Coordinator moves snapshots between the session, its cache and the
// ledger. Project switches run one at a time; starting a switch cancels
// any switch still waiting or in flight.
type Coordinator struct {
	session  *Session
	ledger   Ledger
	identity Identity
	notifier Notifier
	log      *zap.Logger

	switching *semaphore.Weighted

	mu      sync.Mutex
	current *models.Project
	seq     uint64
	cancel  context.CancelFunc
}

func NewCoordinator(session *Session, ledger Ledger, identity Identity, notifier Notifier) *Coordinator {
	c := &Coordinator{
		session:   session,
		ledger:    ledger,
		identity:  identity,
		notifier:  notifier,
		log:       logger.Named("editor"),
		switching: semaphore.NewWeighted(1),
	}
	if c.notifier == nil {
		c.notifier = NotifierFunc(func(projectID uuid.UUID, err error) {
			c.log.Error("unsaved changes", zap.String("project_id", projectID.String()), zap.Error(err))
		})
	}
	return c
}

// Current returns a copy of the open project, or nil.
func (c *Coordinator) Current() *models.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	p := *c.current
	return &p
}

func (c *Coordinator) currentID() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return uuid.Nil, false
	}
	return c.current.ID, true
}

// begin supersedes any earlier switch and returns a context for this one.
func (c *Coordinator) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq
	c.cancel = cancel
	c.mu.Unlock()

	return ctx, func() {
		cancel()
		c.mu.Lock()
		if c.seq == seq {
			c.cancel = nil
		}
		c.mu.Unlock()
	}
}

// SelectProject flushes the open project into the cache, fetches the
// target, prefers its cached state over the server's and activates it.
func (c *Coordinator) SelectProject(ctx context.Context, projectID uuid.UUID) error {
	ctx, done := c.begin(ctx)
	defer done()

	if err := c.switching.Acquire(ctx, 1); err != nil {
		return ErrSuperseded
	}
	defer c.switching.Release(1)

	if id, ok := c.currentID(); ok {
		c.session.flush(id)
	}

	p, err := c.ledger.GetProject(ctx, projectID)
	if err != nil {
		if ctx.Err() != nil {
			return ErrSuperseded
		}
		return err
	}

	var snap *snapshot.Snapshot
	edits := 0
	source := "server"
	if entry, ok := c.session.cache.Get(projectID); ok {
		snap, edits, source = entry.Snapshot, entry.Edits, "cache"
	} else if snap, err = snapshot.Parse(p.Data); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ErrSuperseded
	}
	c.session.activate(snap, edits)
	c.session.cache.Clear(projectID)
	c.mu.Lock()
	c.current = p
	c.mu.Unlock()
	if o, ok := c.identity.(projectObserver); ok {
		o.Observe(p)
	}

	c.log.Info("project selected", zap.String("project_id", projectID.String()), zap.String("source", source), zap.Int("edits", edits))
	return nil
}

// Save persists the live state of the open project. It is a no-op when no
// project is open or nothing changed. On failure no local state changes.
// A save that overlaps a project switch returns ErrSuperseded and sends
// nothing; the unsaved edits stay with their project.
func (c *Coordinator) Save(ctx context.Context) (*models.Changelog, error) {
	projectID, ok := c.currentID()
	if !ok || !c.session.tracker.CanSave() {
		return nil, nil
	}
	if !c.identity.HasRole(projectID, models.RoleOwner, models.RoleEditor) {
		err := appErr.New(appErr.CodeForbidden, "not allowed to save this project")
		c.notifier.SaveFailed(projectID, err)
		return nil, err
	}

	snap, edits, err := c.captureOpen(projectID)
	if err != nil {
		c.log.Info("save skipped", zap.String("project_id", projectID.String()), zap.Error(err))
		return nil, err
	}
	data, err := snap.Marshal()
	if err != nil {
		c.notifier.SaveFailed(projectID, err)
		return nil, err
	}

	c.log.Info("saving project", zap.String("project_id", projectID.String()), zap.Int("edits", edits))
	p, changelog, err := c.ledger.SaveProjectData(ctx, projectID, data, []uuid.UUID{c.identity.CurrentUserID()})
	if err != nil {
		c.log.Warn("save failed", zap.String("project_id", projectID.String()), zap.Error(err))
		c.notifier.SaveFailed(projectID, err)
		return nil, err
	}

	c.mu.Lock()
	stillOpen := c.current != nil && c.current.ID == projectID
	if stillOpen {
		c.current.Data = p.Data
		c.current.UpdatedAt = p.UpdatedAt
	}
	c.mu.Unlock()
	if stillOpen {
		c.session.tracker.Saved(edits)
	} else {
		c.session.cache.Saved(projectID, edits)
	}

	c.log.Info("project saved", zap.String("project_id", projectID.String()), zap.String("changelog_id", changelog.ID.String()))
	return changelog, nil
}

// captureOpen takes the live state while no switch can run, and only if
// projectID is still the open project.
func (c *Coordinator) captureOpen(projectID uuid.UUID) (*snapshot.Snapshot, int, error) {
	if !c.switching.TryAcquire(1) {
		return nil, 0, ErrSuperseded
	}
	defer c.switching.Release(1)

	if id, ok := c.currentID(); !ok || id != projectID {
		return nil, 0, ErrSuperseded
	}
	snap, edits := c.session.capture()
	return snap, edits, nil
}

// ClearProject parks the open project in the cache and closes it.
func (c *Coordinator) ClearProject(ctx context.Context) error {
	ctx, done := c.begin(ctx)
	defer done()
	if err := c.switching.Acquire(ctx, 1); err != nil {
		return ErrSuperseded
	}
	defer c.switching.Release(1)

	id, ok := c.currentID()
	if !ok {
		return nil
	}
	c.session.flush(id)
	c.close()
	return nil
}

func (c *Coordinator) close() {
	c.session.activate(snapshot.Empty(), 0)
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// DeleteProject deletes projectID on the server, then drops its cache
// entry and closes it if open. A failed delete changes nothing locally.
func (c *Coordinator) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	if err := c.ledger.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	c.session.cache.Clear(projectID)
	if o, ok := c.identity.(projectObserver); ok {
		o.Forget(projectID)
	}
	if id, ok := c.currentID(); ok && id == projectID {
		_ = c.switching.Acquire(context.WithoutCancel(ctx), 1)
		if id, ok := c.currentID(); ok && id == projectID {
			c.close()
		}
		c.switching.Release(1)
	}
	c.log.Info("project deleted", zap.String("project_id", projectID.String()))
	return nil
}

// IsSuperseded reports whether err came from a cancelled switch or an
// abandoned save.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}
