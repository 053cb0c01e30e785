package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/services"
	"github.com/erdstudio/engine/pkg/logger"
)

// TypeSweepOrphans removes ledger rows whose parent was deleted.
const TypeSweepOrphans = "ledger:sweep_orphans"

// SweepPayload is the task payload for orphan sweeps.
type SweepPayload struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewSweepTask builds a sweep task. Duplicate requests within the unique
// window collapse into one.
func NewSweepTask(reason string, at time.Time) (*asynq.Task, error) {
	b, err := json.Marshal(SweepPayload{Reason: reason, RequestedAt: at})
	if err != nil {
		return nil, fmt.Errorf("marshal sweep payload: %w", err)
	}
	return asynq.NewTask(TypeSweepOrphans, b, asynq.MaxRetry(3), asynq.Unique(time.Minute)), nil
}

// SweepFunc performs one sweep pass.
type SweepFunc func(ctx context.Context) (*services.SweepReport, error)

// DatabaseSweep sweeps db with services.SweepOrphans.
func DatabaseSweep(db *gorm.DB) SweepFunc {
	return func(ctx context.Context) (*services.SweepReport, error) {
		return services.SweepOrphans(ctx, db)
	}
}

// SweepTaskHandler handles orphan sweep tasks.
type SweepTaskHandler struct {
	sweep SweepFunc
}

func NewSweepTaskHandler(sweep SweepFunc) *SweepTaskHandler {
	return &SweepTaskHandler{sweep: sweep}
}

func (h *SweepTaskHandler) HandleSweep(ctx context.Context, t *asynq.Task) error {
	var p SweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.L().Error("invalid sweep task payload", zap.Error(err))
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
	}

	logger.L().Info("handling sweep task", zap.String("reason", p.Reason))
	rep, err := h.sweep(ctx)
	if err != nil {
		logger.L().Error("orphan sweep failed", zap.String("reason", p.Reason), zap.Error(err))
		return err
	}
	logger.L().Info("sweep task done",
		zap.String("reason", p.Reason),
		zap.Int64("versions", rep.Versions),
		zap.Int64("histories", rep.Histories),
		zap.Int64("changelogs", rep.Changelogs),
	)
	return nil
}

// taskEnqueuer is the subset of *asynq.Client used to schedule sweeps.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SweepEnqueuer satisfies services.SweepEnqueuer over an asynq client.
type SweepEnqueuer struct {
	client taskEnqueuer
	now    func() time.Time
}

func NewSweepEnqueuer(client *asynq.Client) *SweepEnqueuer {
	return &SweepEnqueuer{client: client, now: time.Now}
}

var _ services.SweepEnqueuer = (*SweepEnqueuer)(nil)

func (e *SweepEnqueuer) EnqueueSweep(ctx context.Context) error {
	task, err := NewSweepTask("cascade_failed", e.now().UTC())
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("enqueue sweep: %w", err)
	}
	logger.L().Info("sweep task enqueued", zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return nil
}
