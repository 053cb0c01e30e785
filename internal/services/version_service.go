package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/models"
	"github.com/erdstudio/engine/internal/repository"
	appErr "github.com/erdstudio/engine/pkg/errors"
	"github.com/erdstudio/engine/pkg/logger"
)

// VersionService manages the legacy Version/History save model. It never
// reads or writes Project.Data; LedgerService owns that.
type VersionService interface {
	CreateVersion(ctx context.Context, projectID uuid.UUID, input *VersionInput) (*models.Version, error)
	UpdateVersion(ctx context.Context, versionID uuid.UUID, input *VersionInput) (*models.Version, error)
	DeleteVersion(ctx context.Context, versionID uuid.UUID) (*CascadeReport, error)
	ListVersions(ctx context.Context, projectID uuid.UUID) ([]models.Version, error)
	GetVersion(ctx context.Context, versionID uuid.UUID) (*models.Version, error)

	AppendHistory(ctx context.Context, versionID uuid.UUID, input *HistoryInput) (*models.History, error)
	UpdateHistory(ctx context.Context, historyID uuid.UUID, input *HistoryInput) (*models.History, error)
	DeleteHistory(ctx context.Context, historyID uuid.UUID) (int64, error)
	ListHistories(ctx context.Context, versionID uuid.UUID) ([]models.History, error)
	GetHistory(ctx context.Context, historyID uuid.UUID) (*models.History, error)

	Rollback(ctx context.Context, versionID, historyID uuid.UUID) (*models.History, error)
	DeleteHistoriesAfter(ctx context.Context, historyID uuid.UUID) (int64, error)

	// ProjectOfHistory resolves the project that owns a history row.
	ProjectOfHistory(ctx context.Context, historyID uuid.UUID) (uuid.UUID, error)
}

type VersionInput struct {
	Name        *string
	Description *string
}

type HistoryInput struct {
	Data    string
	Members []uuid.UUID
}

type versionService struct {
	db    *gorm.DB
	repos *repository.Repositories
	opts  options
}

func NewVersionService(db *gorm.DB, opts ...Option) VersionService {
	return &versionService{db: db, repos: repository.New(db), opts: buildOptions(opts)}
}

var _ VersionService = (*versionService)(nil)

var errDuplicateVersion = appErr.New(appErr.CodeConflict, "version name already used in project")

func (s *versionService) CreateVersion(ctx context.Context, projectID uuid.UUID, input *VersionInput) (*models.Version, error) {
	if input.Name == nil || *input.Name == "" {
		return nil, appErr.New(appErr.CodeInvalid, "version name is required")
	}
	logger.L().Info("create version", zap.String("project_id", projectID.String()), zap.String("name", *input.Name))

	v := &models.Version{ProjectID: projectID, Name: *input.Name}
	if input.Description != nil {
		v.Description = *input.Description
	}
	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		ok, err := repos.Projects.Exists(ctx, projectID)
		if err != nil {
			return err
		}
		if !ok {
			return errProjectNotFound
		}
		dup, err := repos.Versions.ExistsByName(ctx, projectID, v.Name, uuid.Nil)
		if err != nil {
			return err
		}
		if dup {
			return errDuplicateVersion
		}
		now := s.opts.now()
		v.CreatedAt, v.UpdatedAt = now, now
		return repos.Versions.Create(ctx, v)
	})
	if err != nil {
		// a concurrent insert can still trip the unique index
		if appErr.IsCode(err, appErr.CodeConflict) {
			return nil, errDuplicateVersion
		}
		return nil, err
	}

	logger.L().Info("version created", zap.String("project_id", projectID.String()), zap.String("version_id", v.ID.String()))
	return v, nil
}

func (s *versionService) UpdateVersion(ctx context.Context, versionID uuid.UUID, input *VersionInput) (*models.Version, error) {
	logger.L().Info("update version", zap.String("version_id", versionID.String()))

	var out models.Version
	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		if err := repos.Versions.GetByID(ctx, versionID, &out); err != nil {
			return err
		}
		if input.Name != nil && *input.Name != out.Name {
			if *input.Name == "" {
				return appErr.New(appErr.CodeInvalid, "version name is required")
			}
			dup, err := repos.Versions.ExistsByName(ctx, out.ProjectID, *input.Name, out.ID)
			if err != nil {
				return err
			}
			if dup {
				return errDuplicateVersion
			}
			out.Name = *input.Name
		}
		if input.Description != nil {
			out.Description = *input.Description
		}
		return repos.Versions.Update(ctx, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *versionService) DeleteVersion(ctx context.Context, versionID uuid.UUID) (*CascadeReport, error) {
	logger.L().Info("delete version", zap.String("version_id", versionID.String()))

	var rep *CascadeReport
	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		var v models.Version
		if err := repos.Versions.GetByID(ctx, versionID, &v); err != nil {
			return err
		}
		var err error
		rep, err = CascadeDeleteVersion(ctx, repos, versionID)
		return err
	})
	if err != nil {
		if !appErr.IsCode(err, appErr.CodeNotFound) {
			requestSweep(ctx, s.opts.sweeper)
		}
		return nil, err
	}

	logger.L().Info("version deleted", zap.String("version_id", versionID.String()), zap.Int64("histories", rep.Histories))
	return rep, nil
}

func (s *versionService) ListVersions(ctx context.Context, projectID uuid.UUID) ([]models.Version, error) {
	ok, err := s.repos.Projects.Exists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errProjectNotFound
	}
	return s.repos.Versions.ListByProject(ctx, projectID)
}

func (s *versionService) GetVersion(ctx context.Context, versionID uuid.UUID) (*models.Version, error) {
	var v models.Version
	if err := s.repos.Versions.GetByID(ctx, versionID, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// AppendHistory adds a history row and points the version at it.
func (s *versionService) AppendHistory(ctx context.Context, versionID uuid.UUID, input *HistoryInput) (*models.History, error) {
	logger.L().Info("append history", zap.String("version_id", versionID.String()), zap.Int("bytes", len(input.Data)))
	h := &models.History{
		VersionID: versionID,
		Data:      input.Data,
		Members:   append([]uuid.UUID{}, input.Members...),
	}
	if err := s.appendAndPoint(ctx, h); err != nil {
		return nil, err
	}
	logger.L().Info("history appended", zap.String("version_id", versionID.String()), zap.String("history_id", h.ID.String()))
	return h, nil
}

func (s *versionService) appendAndPoint(ctx context.Context, h *models.History) error {
	return inTx(ctx, s.db, func(repos *repository.Repositories) error {
		var v models.Version
		if err := repos.Versions.GetByID(ctx, h.VersionID, &v); err != nil {
			return err
		}
		now := s.opts.now()
		h.CreatedAt, h.UpdatedAt = now, now
		if err := repos.Histories.Create(ctx, h); err != nil {
			return err
		}
		return repos.Versions.SetCurrentHistory(ctx, v.ID, &h.ID, now)
	})
}

func (s *versionService) UpdateHistory(ctx context.Context, historyID uuid.UUID, input *HistoryInput) (*models.History, error) {
	logger.L().Info("update history", zap.String("history_id", historyID.String()))
	var h models.History
	if err := s.repos.Histories.GetByID(ctx, historyID, &h); err != nil {
		return nil, err
	}
	h.Data = input.Data
	if input.Members != nil {
		h.Members = append([]uuid.UUID{}, input.Members...)
	}
	if err := s.repos.Histories.Update(ctx, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// DeleteHistory removes the row and every later row of its version, then
// repoints the version at the newest survivor. Returns rows removed.
func (s *versionService) DeleteHistory(ctx context.Context, historyID uuid.UUID) (int64, error) {
	logger.L().Info("delete history", zap.String("history_id", historyID.String()))

	var removed int64
	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		var h models.History
		if err := repos.Histories.GetByID(ctx, historyID, &h); err != nil {
			return err
		}
		if err := repos.Histories.Delete(ctx, h.ID); err != nil {
			return err
		}
		n, err := repos.Histories.DeleteAfter(ctx, h.VersionID, h.CreatedAt)
		if err != nil {
			return err
		}
		removed = n + 1
		return repointVersion(ctx, repos, h.VersionID, s.opts.now())
	})
	if err != nil {
		return 0, err
	}

	logger.L().Info("history deleted", zap.String("history_id", historyID.String()), zap.Int64("removed", removed))
	return removed, nil
}

func repointVersion(ctx context.Context, repos *repository.Repositories, versionID uuid.UUID, at time.Time) error {
	var latest models.History
	err := repos.Histories.Latest(ctx, versionID, &latest)
	switch {
	case err == nil:
		return repos.Versions.SetCurrentHistory(ctx, versionID, &latest.ID, at)
	case appErr.IsCode(err, appErr.CodeNotFound):
		return repos.Versions.SetCurrentHistory(ctx, versionID, nil, at)
	default:
		return err
	}
}

func (s *versionService) ListHistories(ctx context.Context, versionID uuid.UUID) ([]models.History, error) {
	var v models.Version
	if err := s.repos.Versions.GetByID(ctx, versionID, &v); err != nil {
		return nil, err
	}
	return s.repos.Histories.ListByVersion(ctx, versionID)
}

func (s *versionService) GetHistory(ctx context.Context, historyID uuid.UUID) (*models.History, error) {
	var h models.History
	if err := s.repos.Histories.GetByID(ctx, historyID, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Rollback appends a copy of historyID flagged IsRollback and points the
// version at the copy. Later rows are left in place.
func (s *versionService) Rollback(ctx context.Context, versionID, historyID uuid.UUID) (*models.History, error) {
	logger.L().Info("rollback version", zap.String("version_id", versionID.String()), zap.String("history_id", historyID.String()))

	var copied *models.History
	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		var v models.Version
		if err := repos.Versions.GetByID(ctx, versionID, &v); err != nil {
			return err
		}
		var target models.History
		if err := repos.Histories.GetByID(ctx, historyID, &target); err != nil {
			return err
		}
		if target.VersionID != v.ID {
			return appErr.New(appErr.CodeNotFound, "history not found in version")
		}
		now := s.opts.now()
		copied = &models.History{
			VersionID:  v.ID,
			Data:       target.Data,
			Members:    append([]uuid.UUID{}, target.Members...),
			IsRollback: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := repos.Histories.Create(ctx, copied); err != nil {
			return err
		}
		return repos.Versions.SetCurrentHistory(ctx, v.ID, &copied.ID, now)
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("version rolled back", zap.String("version_id", versionID.String()), zap.String("history_id", copied.ID.String()))
	return copied, nil
}

// DeleteHistoriesAfter prunes rows of the reference's version created
// strictly after it. The reference row survives.
func (s *versionService) DeleteHistoriesAfter(ctx context.Context, historyID uuid.UUID) (int64, error) {
	logger.L().Info("delete histories after", zap.String("history_id", historyID.String()))

	var removed int64
	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		var ref models.History
		if err := repos.Histories.GetByID(ctx, historyID, &ref); err != nil {
			return err
		}
		var err error
		if removed, err = repos.Histories.DeleteAfter(ctx, ref.VersionID, ref.CreatedAt); err != nil {
			return err
		}
		return repointVersion(ctx, repos, ref.VersionID, s.opts.now())
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *versionService) ProjectOfHistory(ctx context.Context, historyID uuid.UUID) (uuid.UUID, error) {
	h, err := s.GetHistory(ctx, historyID)
	if err != nil {
		return uuid.Nil, err
	}
	v, err := s.GetVersion(ctx, h.VersionID)
	if err != nil {
		return uuid.Nil, err
	}
	return v.ProjectID, nil
}
