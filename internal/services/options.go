package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/repository"
)

// SweepEnqueuer schedules an orphan sweep after a failed cascade.
type SweepEnqueuer interface {
	EnqueueSweep(ctx context.Context) error
}

type options struct {
	now     func() time.Time
	sweeper SweepEnqueuer
}

// Option configures a service.
type Option func(*options)

// WithClock replaces the wall clock used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSweeper enables best-effort orphan sweeps after failed cascades.
func WithSweeper(s SweepEnqueuer) Option {
	return func(o *options) { o.sweeper = s }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// inTx runs fn with repositories bound to a single transaction.
func inTx(ctx context.Context, db *gorm.DB, fn func(repos *repository.Repositories) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repository.New(tx))
	})
}
