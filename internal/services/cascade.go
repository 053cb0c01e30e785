package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/models"
	"github.com/erdstudio/engine/internal/repository"
	appErr "github.com/erdstudio/engine/pkg/errors"
	"github.com/erdstudio/engine/pkg/logger"
)

// CascadeReport counts rows removed by a cascade.
type CascadeReport struct {
	Projects   int
	Versions   int
	Histories  int64
	Changelogs int64
	Settings   int64
	// UsersDetached counts user rows whose project lists were rewritten.
	UsersDetached int
	// ProjectsDetached counts shared projects whose member list dropped the user.
	ProjectsDetached int
}

func (r *CascadeReport) add(o *CascadeReport) {
	r.Projects += o.Projects
	r.Versions += o.Versions
	r.Histories += o.Histories
	r.Changelogs += o.Changelogs
	r.Settings += o.Settings
	r.UsersDetached += o.UsersDetached
	r.ProjectsDetached += o.ProjectsDetached
}

// Counts returns the non-zero row counts keyed by entity.
func (r *CascadeReport) Counts() map[string]int64 {
	out := map[string]int64{}
	for k, v := range map[string]int64{
		"projects":          int64(r.Projects),
		"versions":          int64(r.Versions),
		"histories":         r.Histories,
		"changelogs":        r.Changelogs,
		"settings":          r.Settings,
		"users_detached":    int64(r.UsersDetached),
		"projects_detached": int64(r.ProjectsDetached),
	} {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

func cascadeFailed(err error, stage string) error {
	return appErr.Wrap(err, appErr.CodeInternal, "cascade delete failed").WithMeta("stage", stage)
}

// CascadeDeleteVersion removes a version and every history under it.
// repos must be bound to the caller's transaction.
func CascadeDeleteVersion(ctx context.Context, repos *repository.Repositories, versionID uuid.UUID) (*CascadeReport, error) {
	rep := &CascadeReport{}
	n, err := repos.Histories.DeleteByVersion(ctx, versionID)
	if err != nil {
		return nil, cascadeFailed(err, "histories")
	}
	rep.Histories = n
	if err := repos.Versions.Delete(ctx, versionID); err != nil {
		return nil, cascadeFailed(err, "version")
	}
	rep.Versions = 1
	return rep, nil
}

// CascadeDeleteProject removes a project's versions (and their histories),
// its changelogs, the project id from every user's project lists, and finally
// the project row.
func CascadeDeleteProject(ctx context.Context, repos *repository.Repositories, projectID uuid.UUID) (*CascadeReport, error) {
	rep := &CascadeReport{}

	versions, err := repos.Versions.ListByProject(ctx, projectID)
	if err != nil {
		return nil, cascadeFailed(err, "list versions")
	}
	for _, v := range versions {
		vr, err := CascadeDeleteVersion(ctx, repos, v.ID)
		if err != nil {
			return nil, err
		}
		rep.add(vr)
	}

	n, err := repos.Changelogs.DeleteByProject(ctx, projectID)
	if err != nil {
		return nil, cascadeFailed(err, "changelogs")
	}
	rep.Changelogs = n

	users, err := repos.Users.ListReferencingProject(ctx, projectID)
	if err != nil {
		return nil, cascadeFailed(err, "list users")
	}
	for i := range users {
		u := &users[i]
		owned, r1 := models.RemoveID(u.OwnedProjects, projectID)
		shared, r2 := models.RemoveID(u.SharedProjects, projectID)
		if !r1 && !r2 {
			continue
		}
		u.OwnedProjects, u.SharedProjects = owned, shared
		if err := repos.Users.Update(ctx, u); err != nil {
			return nil, cascadeFailed(err, "detach users")
		}
		rep.UsersDetached++
	}

	if err := repos.Projects.Delete(ctx, projectID); err != nil {
		return nil, cascadeFailed(err, "project")
	}
	rep.Projects = 1

	logger.L().Info("project cascade complete",
		zap.String("project_id", projectID.String()),
		zap.Int("versions", rep.Versions),
		zap.Int64("histories", rep.Histories),
		zap.Int64("changelogs", rep.Changelogs),
	)
	return rep, nil
}

// CascadeDeleteUser removes every project the user owns (cascading further),
// drops the user from other projects' member lists, deletes their settings
// and finally the user row.
func CascadeDeleteUser(ctx context.Context, repos *repository.Repositories, userID uuid.UUID) (*CascadeReport, error) {
	rep := &CascadeReport{}

	var u models.User
	if err := repos.Users.GetByID(ctx, userID, &u); err != nil {
		return nil, err
	}

	projects, err := repos.Projects.ListByMember(ctx, userID)
	if err != nil {
		return nil, cascadeFailed(err, "list projects")
	}
	// owned projects recorded on the user may predate member lists
	seen := map[uuid.UUID]bool{}
	for _, p := range projects {
		seen[p.ID] = true
	}
	for _, id := range u.OwnedProjects {
		if seen[id] {
			continue
		}
		var p models.Project
		if err := repos.Projects.GetByID(ctx, id, &p); err != nil {
			if appErr.IsCode(err, appErr.CodeNotFound) {
				continue
			}
			return nil, cascadeFailed(err, "load owned project")
		}
		projects = append(projects, p)
	}

	for i := range projects {
		p := &projects[i]
		owner, hasOwner := p.Owner()
		if (hasOwner && owner == userID) || (!hasOwner && containsID(u.OwnedProjects, p.ID)) {
			pr, err := CascadeDeleteProject(ctx, repos, p.ID)
			if err != nil {
				return nil, err
			}
			rep.add(pr)
			continue
		}
		if err := detachMember(ctx, repos, p.ID, userID); err != nil {
			return nil, cascadeFailed(err, "detach member")
		}
		rep.ProjectsDetached++
	}

	n, err := repos.Settings.DeleteByUser(ctx, userID)
	if err != nil {
		return nil, cascadeFailed(err, "settings")
	}
	rep.Settings = n

	if err := repos.Users.Delete(ctx, userID); err != nil {
		return nil, cascadeFailed(err, "user")
	}

	logger.L().Info("user cascade complete",
		zap.String("user_id", userID.String()),
		zap.Int("projects", rep.Projects),
		zap.Int("projects_detached", rep.ProjectsDetached),
	)
	return rep, nil
}

// detachMember reloads the project with its data so the save does not blank it.
func detachMember(ctx context.Context, repos *repository.Repositories, projectID, userID uuid.UUID) error {
	var p models.Project
	if err := repos.Projects.GetByID(ctx, projectID, &p); err != nil {
		return err
	}
	kept := p.Members[:0:0]
	for _, m := range p.Members {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	p.Members = kept
	return repos.Projects.Update(ctx, &p)
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// SweepReport counts rows removed by an orphan sweep.
type SweepReport struct {
	Histories       int64 `json:"histories"`
	Versions        int64 `json:"versions"`
	Changelogs      int64 `json:"changelogs"`
	PointersCleared int64 `json:"pointers_cleared"`
}

// SweepOrphans removes rows whose parent no longer exists. Versions go
// first so their histories are collected in the same pass.
func SweepOrphans(ctx context.Context, db *gorm.DB) (*SweepReport, error) {
	rep := &SweepReport{}
	err := inTx(ctx, db, func(repos *repository.Repositories) error {
		var err error
		if rep.Versions, err = repos.Versions.DeleteOrphans(ctx); err != nil {
			return err
		}
		if rep.Histories, err = repos.Histories.DeleteOrphans(ctx); err != nil {
			return err
		}
		if rep.Changelogs, err = repos.Changelogs.DeleteOrphans(ctx); err != nil {
			return err
		}
		rep.PointersCleared, err = repos.Versions.ClearDanglingPointers(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.L().Info("orphan sweep complete",
		zap.Int64("versions", rep.Versions),
		zap.Int64("histories", rep.Histories),
		zap.Int64("changelogs", rep.Changelogs),
		zap.Int64("pointers_cleared", rep.PointersCleared),
	)
	return rep, nil
}
