package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erdstudio/engine/internal/models"
	appErr "github.com/erdstudio/engine/pkg/errors"
)

func TestCreateProjectRecordsOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")

	p := f.project(t, owner.ID, "crm")
	assert.Equal(t, models.AccessRestricted, p.GeneralAccess)
	id, ok := p.Owner()
	require.True(t, ok)
	assert.Equal(t, owner.ID, id)

	var u models.User
	require.NoError(t, f.repos.Users.GetByID(ctx, owner.ID, &u))
	assert.Contains(t, []uuid.UUID(u.OwnedProjects), p.ID)

	_, err := f.projects.CreateProject(ctx, uuid.New(), &CreateProjectInput{Name: "ghost"})
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestProjectAccessByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	viewer := f.user(t, "viewer@example.com")
	stranger := f.user(t, "stranger@example.com")
	p := f.project(t, owner.ID, "crm")

	_, err := f.projects.AddMember(ctx, p.ID, owner.ID, models.Member{UserID: viewer.ID, Role: models.RoleViewer})
	require.NoError(t, err)

	_, err = f.projects.GetProject(ctx, p.ID, viewer.ID)
	assert.NoError(t, err)
	_, err = f.projects.UpdateProject(ctx, p.ID, viewer.ID, &UpdateProjectInput{Name: ptr("renamed")})
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
	_, err = f.projects.GetProject(ctx, p.ID, stranger.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
	_, err = f.projects.GetProject(ctx, uuid.New(), owner.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	list, err := f.projects.ListProjects(ctx, viewer.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	_, err = f.projects.DeleteProject(ctx, p.ID, viewer.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
}

func TestUpdateProjectKeepsData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	p := f.project(t, owner.ID, "crm")
	_, err := f.ledger.SaveProjectData(ctx, p.ID, &SaveInput{Data: "saved"})
	require.NoError(t, err)

	got, err := f.projects.UpdateProject(ctx, p.ID, owner.ID, &UpdateProjectInput{Name: ptr("crm v2"), GeneralAccess: ptr(models.AccessViewer)})
	require.NoError(t, err)
	assert.Equal(t, "crm v2", got.Name)
	assert.Equal(t, "saved", got.Data)
}

func TestRemoveMemberDetachesSharedProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	editor := f.user(t, "editor@example.com")
	p := f.project(t, owner.ID, "crm")

	_, err := f.projects.AddMember(ctx, p.ID, owner.ID, models.Member{UserID: editor.ID, Role: models.RoleEditor})
	require.NoError(t, err)
	var u models.User
	require.NoError(t, f.repos.Users.GetByID(ctx, editor.ID, &u))
	assert.Contains(t, []uuid.UUID(u.SharedProjects), p.ID)

	_, err = f.projects.RemoveMember(ctx, p.ID, editor.ID, owner.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))

	got, err := f.projects.RemoveMember(ctx, p.ID, owner.ID, editor.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 1)
	require.NoError(t, f.repos.Users.GetByID(ctx, editor.ID, &u))
	assert.NotContains(t, []uuid.UUID(u.SharedProjects), p.ID)

	_, err = f.projects.RemoveMember(ctx, p.ID, owner.ID, owner.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeForbidden))
}

func TestDeleteProjectCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	p := f.project(t, owner.ID, "doomed")
	keep := f.project(t, owner.ID, "kept")

	_, err := f.projects.AddMember(ctx, p.ID, owner.ID, models.Member{UserID: guest.ID, Role: models.RoleEditor})
	require.NoError(t, err)

	v1, err := f.versions.CreateVersion(ctx, p.ID, &VersionInput{Name: ptr("v1")})
	require.NoError(t, err)
	v2, err := f.versions.CreateVersion(ctx, p.ID, &VersionInput{Name: ptr("v2")})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.versions.AppendHistory(ctx, v1.ID, &HistoryInput{Data: "h"})
		require.NoError(t, err)
	}
	_, err = f.versions.AppendHistory(ctx, v2.ID, &HistoryInput{Data: "h"})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err = f.ledger.SaveProjectData(ctx, p.ID, &SaveInput{Data: "c"})
		require.NoError(t, err)
	}
	_, err = f.ledger.SaveProjectData(ctx, keep.ID, &SaveInput{Data: "k"})
	require.NoError(t, err)

	rep, err := f.projects.DeleteProject(ctx, p.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Versions)
	assert.EqualValues(t, 4, rep.Histories)
	assert.EqualValues(t, 4, rep.Changelogs)
	assert.Equal(t, 2, rep.UsersDetached)

	count := func(model any, where string, args ...any) int64 {
		var n int64
		require.NoError(t, f.db.Model(model).Where(where, args...).Count(&n).Error)
		return n
	}
	assert.Zero(t, count(&models.Version{}, "project_id = ?", p.ID))
	assert.Zero(t, count(&models.History{}, "version_id IN ?", []uuid.UUID{v1.ID, v2.ID}))
	assert.Zero(t, count(&models.Changelog{}, "project_id = ?", p.ID))
	assert.EqualValues(t, 1, count(&models.Changelog{}, "project_id = ?", keep.ID))

	var o, g models.User
	require.NoError(t, f.repos.Users.GetByID(ctx, owner.ID, &o))
	require.NoError(t, f.repos.Users.GetByID(ctx, guest.ID, &g))
	assert.Equal(t, []uuid.UUID{keep.ID}, []uuid.UUID(o.OwnedProjects))
	assert.Empty(t, g.SharedProjects)

	_, err = f.projects.GetProject(ctx, p.ID, owner.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestRequestSweep(t *testing.T) {
	sw := &mockSweeper{}
	sw.On("EnqueueSweep", mock.Anything).Return(errors.New("redis down")).Once()
	requestSweep(context.Background(), sw)
	sw.AssertExpectations(t)

	// nil sweeper is tolerated
	requestSweep(context.Background(), nil)
}

func TestSweepOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	p := f.project(t, owner.ID, "p")
	v, err := f.versions.CreateVersion(ctx, p.ID, &VersionInput{Name: ptr("v")})
	require.NoError(t, err)
	_, err = f.versions.AppendHistory(ctx, v.ID, &HistoryInput{Data: "h"})
	require.NoError(t, err)
	_, err = f.ledger.SaveProjectData(ctx, p.ID, &SaveInput{Data: "c"})
	require.NoError(t, err)

	// simulate a cascade interrupted after the project row went away
	require.NoError(t, f.db.Delete(&models.Project{}, "id = ?", p.ID).Error)

	rep, err := SweepOrphans(ctx, f.db)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.Versions)
	assert.EqualValues(t, 1, rep.Histories)
	assert.EqualValues(t, 1, rep.Changelogs)

	rep, err = SweepOrphans(ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, &SweepReport{}, rep)
}
