package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/models"
	appErr "github.com/erdstudio/engine/pkg/errors"
)

type ChangelogRepository interface {
	BaseRepository[models.Changelog]
	// ListByProject returns metadata only, newest first; Data is left empty.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Changelog, error)
	GetInProject(ctx context.Context, projectID, changelogID uuid.UUID, dest *models.Changelog) error
	ClearCurrent(ctx context.Context, projectID uuid.UUID) error
	CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
	DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

type changelogRepository struct {
	BaseRepository[models.Changelog]
	db *gorm.DB
}

func NewChangelogRepository(db *gorm.DB) ChangelogRepository {
	return &changelogRepository{BaseRepository: NewBaseRepository[models.Changelog](db, "changelog"), db: db}
}

func (r *changelogRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Changelog, error) {
	out := []models.Changelog{}
	err := r.db.WithContext(ctx).
		Omit("data").
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list changelogs failed")
	}
	return out, nil
}

func (r *changelogRepository) GetInProject(ctx context.Context, projectID, changelogID uuid.UUID, dest *models.Changelog) error {
	if err := r.db.WithContext(ctx).Where("project_id = ? AND id = ?", projectID, changelogID).First(dest).Error; err != nil {
		return translate(err, "changelog", "get")
	}
	return nil
}

func (r *changelogRepository) ClearCurrent(ctx context.Context, projectID uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&models.Changelog{}).
		Where("project_id = ? AND current_version = ?", projectID, true).
		Update("current_version", false).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "clear current changelog failed")
	}
	return nil
}

func (r *changelogRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Changelog{}).Where("project_id = ?", projectID).Count(&n).Error; err != nil {
		return 0, appErr.Wrap(err, appErr.CodeInternal, "count changelogs failed")
	}
	return n, nil
}

func (r *changelogRepository) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&models.Changelog{})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "delete changelogs failed")
	}
	return res.RowsAffected, nil
}

func (r *changelogRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)
	res := db.Where("project_id NOT IN (?)", db.Model(&models.Project{}).Select("id")).Delete(&models.Changelog{})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "delete orphan changelogs failed")
	}
	return res.RowsAffected, nil
}
