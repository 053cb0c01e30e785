package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/models"
	appErr "github.com/erdstudio/engine/pkg/errors"
)

type HistoryRepository interface {
	BaseRepository[models.History]
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]models.History, error)
	Latest(ctx context.Context, versionID uuid.UUID, dest *models.History) error
	CountByVersion(ctx context.Context, versionID uuid.UUID) (int64, error)
	DeleteByVersion(ctx context.Context, versionID uuid.UUID) (int64, error)
	// DeleteAfter removes rows of versionID created strictly after ts.
	DeleteAfter(ctx context.Context, versionID uuid.UUID, ts time.Time) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

type historyRepository struct {
	BaseRepository[models.History]
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{BaseRepository: NewBaseRepository[models.History](db, "history"), db: db}
}

func (r *historyRepository) ListByVersion(ctx context.Context, versionID uuid.UUID) ([]models.History, error) {
	out := []models.History{}
	err := r.db.WithContext(ctx).
		Omit("data").
		Where("version_id = ?", versionID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list histories failed")
	}
	return out, nil
}

func (r *historyRepository) Latest(ctx context.Context, versionID uuid.UUID, dest *models.History) error {
	if err := r.db.WithContext(ctx).Where("version_id = ?", versionID).Order("created_at DESC").First(dest).Error; err != nil {
		return translate(err, "history", "get")
	}
	return nil
}

func (r *historyRepository) CountByVersion(ctx context.Context, versionID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.History{}).Where("version_id = ?", versionID).Count(&n).Error; err != nil {
		return 0, appErr.Wrap(err, appErr.CodeInternal, "count histories failed")
	}
	return n, nil
}

func (r *historyRepository) DeleteByVersion(ctx context.Context, versionID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("version_id = ?", versionID).Delete(&models.History{})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "delete histories failed")
	}
	return res.RowsAffected, nil
}

func (r *historyRepository) DeleteAfter(ctx context.Context, versionID uuid.UUID, ts time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("version_id = ? AND created_at > ?", versionID, ts).Delete(&models.History{})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "delete later histories failed")
	}
	return res.RowsAffected, nil
}

func (r *historyRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)
	res := db.Where("version_id NOT IN (?)", db.Model(&models.Version{}).Select("id")).Delete(&models.History{})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "delete orphan histories failed")
	}
	return res.RowsAffected, nil
}
