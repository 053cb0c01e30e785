package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/models"
	"github.com/erdstudio/engine/internal/repository"
	"github.com/erdstudio/engine/pkg/logger"
	"github.com/erdstudio/engine/pkg/utils"
)

// LedgerService owns the canonical save path: Project.Data plus the
// append-only changelog that records every save.
type LedgerService interface {
	SaveProjectData(ctx context.Context, projectID uuid.UUID, input *SaveInput) (*SaveResult, error)
	ListChangelogs(ctx context.Context, projectID uuid.UUID) ([]models.Changelog, error)
	GetChangelog(ctx context.Context, projectID, changelogID uuid.UUID) (*models.Changelog, error)
}

type SaveInput struct {
	Data    string
	Members []uuid.UUID
	// Name optionally labels the changelog entry.
	Name string
}

type SaveResult struct {
	Project   *models.Project   `json:"project"`
	Changelog *models.Changelog `json:"changelog"`
}

type ledgerService struct {
	db    *gorm.DB
	repos *repository.Repositories
	opts  options
}

func NewLedgerService(db *gorm.DB, opts ...Option) LedgerService {
	return &ledgerService{db: db, repos: repository.New(db), opts: buildOptions(opts)}
}

var _ LedgerService = (*ledgerService)(nil)

// SaveProjectData overwrites the project's data and appends a changelog that
// becomes the project's only current entry. Both writes commit together.
func (s *ledgerService) SaveProjectData(ctx context.Context, projectID uuid.UUID, input *SaveInput) (*SaveResult, error) {
	logger.L().Info("save project data", zap.String("project_id", projectID.String()), zap.Int("bytes", len(input.Data)))

	var out SaveResult
	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		var p models.Project
		if err := repos.Projects.GetForUpdate(ctx, projectID, &p); err != nil {
			return err
		}
		now := s.opts.now()
		p.Data = input.Data
		if err := repos.Projects.Update(ctx, &p); err != nil {
			return err
		}

		if err := repos.Changelogs.ClearCurrent(ctx, projectID); err != nil {
			return err
		}
		c := &models.Changelog{
			ProjectID:      projectID,
			Name:           input.Name,
			Data:           input.Data,
			Checksum:       utils.Checksum(input.Data),
			CurrentVersion: true,
			Members:        append([]uuid.UUID{}, input.Members...),
			CreatedAt:      now,
		}
		if err := repos.Changelogs.Create(ctx, c); err != nil {
			return err
		}
		out = SaveResult{Project: &p, Changelog: c}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("project data saved", zap.String("project_id", projectID.String()), zap.String("changelog_id", out.Changelog.ID.String()))
	return &out, nil
}

func (s *ledgerService) ListChangelogs(ctx context.Context, projectID uuid.UUID) ([]models.Changelog, error) {
	logger.L().Info("list changelogs", zap.String("project_id", projectID.String()))
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repos.Changelogs.ListByProject(ctx, projectID)
}

func (s *ledgerService) GetChangelog(ctx context.Context, projectID, changelogID uuid.UUID) (*models.Changelog, error) {
	logger.L().Info("get changelog", zap.String("project_id", projectID.String()), zap.String("changelog_id", changelogID.String()))
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	var c models.Changelog
	if err := s.repos.Changelogs.GetInProject(ctx, projectID, changelogID, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ledgerService) requireProject(ctx context.Context, projectID uuid.UUID) error {
	ok, err := s.repos.Projects.Exists(ctx, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return errProjectNotFound
	}
	return nil
}
