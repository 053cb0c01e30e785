package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/models"
	appErr "github.com/erdstudio/engine/pkg/errors"
)

type VersionRepository interface {
	BaseRepository[models.Version]
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Version, error)
	ExistsByName(ctx context.Context, projectID uuid.UUID, name string, exclude uuid.UUID) (bool, error)
	SetCurrentHistory(ctx context.Context, versionID uuid.UUID, historyID *uuid.UUID, at time.Time) error
	DeleteOrphans(ctx context.Context) (int64, error)
	ClearDanglingPointers(ctx context.Context) (int64, error)
}

type versionRepository struct {
	BaseRepository[models.Version]
	db *gorm.DB
}

func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{BaseRepository: NewBaseRepository[models.Version](db, "version"), db: db}
}

func (r *versionRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Version, error) {
	out := []models.Version{}
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list versions failed")
	}
	return out, nil
}

func (r *versionRepository) ExistsByName(ctx context.Context, projectID uuid.UUID, name string, exclude uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Version{}).
		Where("project_id = ? AND name = ? AND id <> ?", projectID, name, exclude).
		Count(&n).Error
	if err != nil {
		return false, appErr.Wrap(err, appErr.CodeInternal, "check version name failed")
	}
	return n > 0, nil
}

func (r *versionRepository) SetCurrentHistory(ctx context.Context, versionID uuid.UUID, historyID *uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Version{}).
		Where("id = ?", versionID).
		Updates(map[string]any{"current_history_id": historyID, "updated_at": at})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "set current history failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "version not found")
	}
	return nil
}

func (r *versionRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)
	res := db.Where("project_id NOT IN (?)", db.Model(&models.Project{}).Select("id")).Delete(&models.Version{})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "delete orphan versions failed")
	}
	return res.RowsAffected, nil
}

func (r *versionRepository) ClearDanglingPointers(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.Version{}).
		Where("current_history_id IS NOT NULL AND current_history_id NOT IN (?)", db.Model(&models.History{}).Select("id")).
		Update("current_history_id", nil)
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "clear dangling history pointers failed")
	}
	return res.RowsAffected, nil
}
