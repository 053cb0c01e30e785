package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdstudio/engine/internal/models"
	appErr "github.com/erdstudio/engine/pkg/errors"
	"github.com/erdstudio/engine/pkg/utils"
)

func TestSaveProjectDataAppendsOneChangelog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	p := f.project(t, owner.ID, "shop")

	for i := 0; i < 3; i++ {
		_, err := f.ledger.SaveProjectData(ctx, p.ID, &SaveInput{Data: "seed"})
		require.NoError(t, err)
	}
	before, err := f.ledger.ListChangelogs(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, before, 3)

	res, err := f.ledger.SaveProjectData(ctx, p.ID, &SaveInput{Data: `{"nodes":[]}`, Members: []uuid.UUID{owner.ID}})
	require.NoError(t, err)
	assert.True(t, res.Changelog.CurrentVersion)
	assert.Equal(t, `{"nodes":[]}`, res.Project.Data)
	assert.Equal(t, utils.Checksum(`{"nodes":[]}`), res.Changelog.Checksum)

	after, err := f.ledger.ListChangelogs(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, after, 4)
	assert.Equal(t, res.Changelog.ID, after[0].ID)

	n, err := f.repos.Changelogs.CountByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	current := 0
	for _, c := range after {
		if c.CurrentVersion {
			current++
		}
	}
	assert.Equal(t, 1, current)
}

func TestSaveThenReadBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	p := f.project(t, owner.ID, "P")

	_, err := f.ledger.SaveProjectData(ctx, p.ID, &SaveInput{Data: "A"})
	require.NoError(t, err)

	list, err := f.ledger.ListChangelogs(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Data)
	assert.True(t, list[0].CurrentVersion)

	full, err := f.ledger.GetChangelog(ctx, p.ID, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "A", full.Data)

	_, err = f.ledger.SaveProjectData(ctx, p.ID, &SaveInput{Data: "B"})
	require.NoError(t, err)

	list, err = f.ledger.ListChangelogs(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	newest, err := f.ledger.GetChangelog(ctx, p.ID, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "B", newest.Data)
	assert.False(t, list[1].CurrentVersion)

	got, err := f.projects.GetProject(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", got.Data)
}

func TestSaveUnknownProjectWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.SaveProjectData(ctx, uuid.New(), &SaveInput{Data: "A"})
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	var n int64
	require.NoError(t, f.db.Model(&models.Changelog{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestGetChangelogScopedToProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	a := f.project(t, owner.ID, "a")
	b := f.project(t, owner.ID, "b")

	res, err := f.ledger.SaveProjectData(ctx, a.ID, &SaveInput{Data: "A"})
	require.NoError(t, err)

	_, err = f.ledger.GetChangelog(ctx, b.ID, res.Changelog.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	_, err = f.ledger.ListChangelogs(ctx, uuid.New())
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestLastWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	p := f.project(t, owner.ID, "shared")

	_, err := f.ledger.SaveProjectData(ctx, p.ID, &SaveInput{Data: "from-tab-1"})
	require.NoError(t, err)
	_, err = f.ledger.SaveProjectData(ctx, p.ID, &SaveInput{Data: "from-tab-2"})
	require.NoError(t, err)

	var got models.Project
	require.NoError(t, f.repos.Projects.GetByID(ctx, p.ID, &got))
	assert.Equal(t, "from-tab-2", got.Data)
}
