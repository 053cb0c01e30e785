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

var (
	errProjectNotFound = appErr.New(appErr.CodeNotFound, "project not found")
	errForbidden       = appErr.New(appErr.CodeForbidden, "insufficient project role")
)

// Service interface and related DTOs
type ProjectService interface {
	// Project CRUD
	CreateProject(ctx context.Context, userID uuid.UUID, input *CreateProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	UpdateProject(ctx context.Context, projectID, userID uuid.UUID, updates *UpdateProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID, userID uuid.UUID) (*CascadeReport, error)

	// Sharing
	AddMember(ctx context.Context, projectID, actorID uuid.UUID, member models.Member) (*models.Project, error)
	RemoveMember(ctx context.Context, projectID, actorID, memberID uuid.UUID) (*models.Project, error)

	// Authorize loads the project and fails with forbidden unless userID holds one of roles.
	Authorize(ctx context.Context, projectID, userID uuid.UUID, roles ...models.Role) (*models.Project, error)
}

type CreateProjectInput struct {
	Name          string
	Icon          string
	GeneralAccess string
}

type UpdateProjectInput struct {
	Name          *string
	Icon          *string
	GeneralAccess *string
}

type projectService struct {
	db    *gorm.DB
	repos *repository.Repositories
	opts  options
}

func NewProjectService(db *gorm.DB, opts ...Option) ProjectService {
	return &projectService{db: db, repos: repository.New(db), opts: buildOptions(opts)}
}

// Ensure interfaces are satisfied at compile time
var _ ProjectService = (*projectService)(nil)

// CreateProject creates a project owned by userID and records it on the user.
func (s *projectService) CreateProject(ctx context.Context, userID uuid.UUID, input *CreateProjectInput) (*models.Project, error) {
	logger.L().Info("create project called", zap.String("user_id", userID.String()), zap.String("name", input.Name))

	access := input.GeneralAccess
	if access == "" {
		access = models.AccessRestricted
	}
	p := &models.Project{
		Name:          input.Name,
		Icon:          input.Icon,
		Members:       []models.Member{{UserID: userID, Role: models.RoleOwner}},
		GeneralAccess: access,
	}

	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		var u models.User
		if err := repos.Users.GetByID(ctx, userID, &u); err != nil {
			return err
		}
		if err := repos.Projects.Create(ctx, p); err != nil {
			return err
		}
		u.OwnedProjects = models.AppendID(u.OwnedProjects, p.ID)
		return repos.Users.Update(ctx, &u)
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("project created", zap.String("project_id", p.ID.String()), zap.String("user_id", userID.String()))
	return p, nil
}

func (s *projectService) GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	logger.L().Info("get project", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	return s.Authorize(ctx, projectID, userID, models.RoleOwner, models.RoleEditor, models.RoleViewer)
}

func (s *projectService) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	logger.L().Info("list projects", zap.String("user_id", userID.String()))
	all, err := s.repos.Projects.ListByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Project, 0, len(all))
	for _, p := range all {
		if _, ok := p.RoleOf(userID); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *projectService) UpdateProject(ctx context.Context, projectID, userID uuid.UUID, updates *UpdateProjectInput) (*models.Project, error) {
	logger.L().Info("update project", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	p, err := s.Authorize(ctx, projectID, userID, models.RoleOwner, models.RoleEditor)
	if err != nil {
		return nil, err
	}

	if updates.Name != nil {
		p.Name = *updates.Name
	}
	if updates.Icon != nil {
		p.Icon = *updates.Icon
	}
	if updates.GeneralAccess != nil {
		if !p.HasRole(userID, models.RoleOwner) {
			return nil, appErr.New(appErr.CodeForbidden, "only the owner can change general access")
		}
		p.GeneralAccess = *updates.GeneralAccess
	}

	if err := s.repos.Projects.Update(ctx, p); err != nil {
		return nil, err
	}

	logger.L().Info("project updated", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	return p, nil
}

// DeleteProject runs the project cascade in one transaction. On failure
// nothing is removed and an orphan sweep is requested.
func (s *projectService) DeleteProject(ctx context.Context, projectID, userID uuid.UUID) (*CascadeReport, error) {
	logger.L().Info("delete project", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	if _, err := s.Authorize(ctx, projectID, userID, models.RoleOwner); err != nil {
		return nil, err
	}

	var rep *CascadeReport
	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		var err error
		rep, err = CascadeDeleteProject(ctx, repos, projectID)
		return err
	})
	if err != nil {
		requestSweep(ctx, s.opts.sweeper)
		return nil, err
	}

	logger.L().Info("project deleted", zap.String("project_id", projectID.String()), zap.String("user_id", userID.String()))
	return rep, nil
}

func (s *projectService) AddMember(ctx context.Context, projectID, actorID uuid.UUID, member models.Member) (*models.Project, error) {
	logger.L().Info("add project member",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", actorID.String()),
		zap.String("member_id", member.UserID.String()),
		zap.String("role", string(member.Role)),
	)
	if member.Role == models.RoleOwner {
		return nil, appErr.New(appErr.CodeInvalid, "a project has exactly one owner")
	}

	var out *models.Project
	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		p, err := authorize(ctx, repos, projectID, actorID, models.RoleOwner)
		if err != nil {
			return err
		}
		var u models.User
		if err := repos.Users.GetByID(ctx, member.UserID, &u); err != nil {
			return err
		}
		updated := false
		for i := range p.Members {
			if p.Members[i].UserID == member.UserID {
				if p.Members[i].Role == models.RoleOwner {
					return appErr.New(appErr.CodeInvalid, "cannot change the owner's role")
				}
				p.Members[i].Role = member.Role
				updated = true
			}
		}
		if !updated {
			p.Members = append(p.Members, member)
		}
		if err := repos.Projects.Update(ctx, p); err != nil {
			return err
		}
		u.SharedProjects = models.AppendID(u.SharedProjects, projectID)
		if err := repos.Users.Update(ctx, &u); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *projectService) RemoveMember(ctx context.Context, projectID, actorID, memberID uuid.UUID) (*models.Project, error) {
	logger.L().Info("remove project member",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", actorID.String()),
		zap.String("member_id", memberID.String()),
	)

	var out *models.Project
	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		var p *models.Project
		var err error
		if actorID == memberID {
			p, err = authorize(ctx, repos, projectID, actorID, models.RoleEditor, models.RoleViewer)
		} else {
			p, err = authorize(ctx, repos, projectID, actorID, models.RoleOwner)
		}
		if err != nil {
			return err
		}
		if owner, _ := p.Owner(); owner == memberID {
			return appErr.New(appErr.CodeInvalid, "cannot remove the project owner")
		}
		if err := detachMember(ctx, repos, projectID, memberID); err != nil {
			return err
		}
		var u models.User
		if err := repos.Users.GetByID(ctx, memberID, &u); err == nil {
			u.SharedProjects, _ = models.RemoveID(u.SharedProjects, projectID)
			if err := repos.Users.Update(ctx, &u); err != nil {
				return err
			}
		} else if !appErr.IsCode(err, appErr.CodeNotFound) {
			return err
		}
		var reloaded models.Project
		if err := repos.Projects.GetByID(ctx, projectID, &reloaded); err != nil {
			return err
		}
		out = &reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *projectService) Authorize(ctx context.Context, projectID, userID uuid.UUID, roles ...models.Role) (*models.Project, error) {
	return authorize(ctx, s.repos, projectID, userID, roles...)
}

func authorize(ctx context.Context, repos *repository.Repositories, projectID, userID uuid.UUID, roles ...models.Role) (*models.Project, error) {
	var p models.Project
	if err := repos.Projects.GetByID(ctx, projectID, &p); err != nil {
		return nil, err
	}
	if !p.HasRole(userID, roles...) {
		return nil, errForbidden
	}
	return &p, nil
}

func requestSweep(ctx context.Context, sweeper SweepEnqueuer) {
	if sweeper == nil {
		logger.L().Warn("sweeper not configured, skipping orphan sweep")
		return
	}
	if err := sweeper.EnqueueSweep(context.WithoutCancel(ctx)); err != nil {
		logger.L().Error("enqueue orphan sweep failed", zap.Error(err))
	}
}
