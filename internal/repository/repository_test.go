package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/models"
	"github.com/erdstudio/engine/internal/testutil"
	appErr "github.com/erdstudio/engine/pkg/errors"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestBaseRepositoryNotFound(t *testing.T) {
	repos := New(testutil.NewDB(t))
	ctx := context.Background()

	var p models.Project
	err := repos.Projects.GetByID(ctx, uuid.New(), &p)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	err = repos.Projects.Delete(ctx, uuid.New())
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	err = repos.Projects.GetForUpdate(ctx, uuid.New(), &p)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestVersionNameUnique(t *testing.T) {
	repos := New(testutil.NewDB(t))
	ctx := context.Background()
	projectID := uuid.New()

	require.NoError(t, repos.Versions.Create(ctx, &models.Version{ProjectID: projectID, Name: "v1"}))
	err := repos.Versions.Create(ctx, &models.Version{ProjectID: projectID, Name: "v1"})
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict), "got %v", err)

	// same name under another project is fine
	require.NoError(t, repos.Versions.Create(ctx, &models.Version{ProjectID: uuid.New(), Name: "v1"}))
}

func TestChangelogListOmitsData(t *testing.T) {
	repos := New(testutil.NewDB(t))
	ctx := context.Background()
	clock := testutil.NewClock()
	projectID := uuid.New()

	for _, data := range []string{"A", "B", "C"} {
		require.NoError(t, repos.Changelogs.Create(ctx, &models.Changelog{ProjectID: projectID, Data: data, CreatedAt: clock.Now()}))
	}

	list, err := repos.Changelogs.ListByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, c := range list {
		assert.Empty(t, c.Data)
	}
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))

	var full models.Changelog
	require.NoError(t, repos.Changelogs.GetInProject(ctx, projectID, list[0].ID, &full))
	assert.Equal(t, "C", full.Data)

	err = repos.Changelogs.GetInProject(ctx, uuid.New(), list[0].ID, &full)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestHistoryDeleteAfterIsStrict(t *testing.T) {
	repos := New(testutil.NewDB(t))
	ctx := context.Background()
	clock := testutil.NewClock()
	versionID := uuid.New()

	var rows []models.History
	for i := 0; i < 4; i++ {
		h := models.History{VersionID: versionID, Data: "x", CreatedAt: clock.Now()}
		require.NoError(t, repos.Histories.Create(ctx, &h))
		rows = append(rows, h)
	}
	other := models.History{VersionID: uuid.New(), CreatedAt: rows[3].CreatedAt.Add(time.Hour)}
	require.NoError(t, repos.Histories.Create(ctx, &other))

	n, err := repos.Histories.DeleteAfter(ctx, versionID, rows[1].CreatedAt)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	left, err := repos.Histories.ListByVersion(ctx, versionID)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, rows[1].ID, left[0].ID)

	var kept models.History
	assert.NoError(t, repos.Histories.GetByID(ctx, other.ID, &kept))
}

func TestUsersReferencingProject(t *testing.T) {
	repos := New(testutil.NewDB(t))
	ctx := context.Background()
	projectID := uuid.New()

	owner := models.User{Email: "o@example.com", Name: "o", PasswordHash: "x", OwnedProjects: []uuid.UUID{projectID}}
	guest := models.User{Email: "g@example.com", Name: "g", PasswordHash: "x", SharedProjects: []uuid.UUID{projectID}}
	bystander := models.User{Email: "b@example.com", Name: "b", PasswordHash: "x", OwnedProjects: []uuid.UUID{uuid.New()}}
	for _, u := range []*models.User{&owner, &guest, &bystander} {
		require.NoError(t, repos.Users.Create(ctx, u))
	}

	users, err := repos.Users.ListReferencingProject(ctx, projectID)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{owner.ID, guest.ID}, ids)
}

func TestOrphanCleanup(t *testing.T) {
	repos := New(testutil.NewDB(t))
	ctx := context.Background()

	live := models.Project{Name: "live"}
	require.NoError(t, repos.Projects.Create(ctx, &live))

	liveVersion := models.Version{ProjectID: live.ID, Name: "main"}
	deadVersion := models.Version{ProjectID: uuid.New(), Name: "main"}
	require.NoError(t, repos.Versions.Create(ctx, &liveVersion))
	require.NoError(t, repos.Versions.Create(ctx, &deadVersion))

	require.NoError(t, repos.Changelogs.Create(ctx, &models.Changelog{ProjectID: live.ID}))
	require.NoError(t, repos.Changelogs.Create(ctx, &models.Changelog{ProjectID: uuid.New()}))

	n, err := repos.Changelogs.DeleteOrphans(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repos.Versions.DeleteOrphans(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repos.Histories.Create(ctx, &models.History{VersionID: deadVersion.ID}))
	n, err = repos.Histories.DeleteOrphans(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	missing := uuid.New()
	require.NoError(t, repos.Versions.SetCurrentHistory(ctx, liveVersion.ID, &missing, time.Now().UTC()))
	n, err = repos.Versions.ClearDanglingPointers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var v models.Version
	require.NoError(t, repos.Versions.GetByID(ctx, liveVersion.ID, &v))
	assert.Nil(t, v.CurrentHistoryID)
}
