//go:build integration

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/erdstudio/engine/internal/models"
	"github.com/erdstudio/engine/pkg/database"
	"github.com/erdstudio/engine/pkg/logger"
)

func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	logger.Set(zap.NewNop())
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("erd"),
		tcpostgres.WithUsername("erd"),
		tcpostgres.WithPassword("erd"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	openCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	db, err := database.OpenPostgres(openCtx, dsn, false)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return fixtureOn(t, db)
}

func TestPostgresConcurrentSavesKeepOneCurrent(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	p := f.project(t, owner.ID, "busy")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.SaveProjectData(ctx, p.ID, &SaveInput{Data: "x"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	saved := 0
	for err := range errs {
		if err == nil {
			saved++
		}
	}
	require.Positive(t, saved)

	list, err := f.ledger.ListChangelogs(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, saved)
	current := 0
	for _, c := range list {
		if c.CurrentVersion {
			current++
		}
	}
	assert.LessOrEqual(t, current, 1)
}

func TestPostgresDuplicateEmailIsConflict(t *testing.T) {
	f := newPostgresFixture(t)
	f.user(t, "dup@example.com")
	_, err := f.auth.Register(context.Background(), "DUP@example.com", "password123", "again")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email already registered")
}

func TestPostgresCascadeDeleteUser(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	p := f.project(t, owner.ID, "doomed")
	v, err := f.versions.CreateVersion(ctx, p.ID, &VersionInput{Name: ptr("v1")})
	require.NoError(t, err)
	_, err = f.versions.AppendHistory(ctx, v.ID, &HistoryInput{Data: "h"})
	require.NoError(t, err)
	_, err = f.ledger.SaveProjectData(ctx, p.ID, &SaveInput{Data: "c"})
	require.NoError(t, err)

	rep, err := f.users.DeleteUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Projects)
	assert.EqualValues(t, 1, rep.Histories)
	assert.EqualValues(t, 1, rep.Changelogs)

	var n int64
	require.NoError(t, f.db.Model(&models.Project{}).Count(&n).Error)
	assert.Zero(t, n)
}
