package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/models"
	appErr "github.com/erdstudio/engine/pkg/errors"
)

type UserRepository interface {
	BaseRepository[models.User]
	GetByEmail(ctx context.Context, email string, dest *models.User) error
	// ListReferencingProject returns users whose owned or shared lists mention projectID.
	ListReferencingProject(ctx context.Context, projectID uuid.UUID) ([]models.User, error)
}

type userRepository struct {
	BaseRepository[models.User]
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository[models.User](db, "user"), db: db}
}

func (r *userRepository) GetByEmail(ctx context.Context, email string, dest *models.User) error {
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(dest).Error; err != nil {
		return translate(err, "user", "get")
	}
	return nil
}

func (r *userRepository) ListReferencingProject(ctx context.Context, projectID uuid.UUID) ([]models.User, error) {
	pattern := "%" + projectID.String() + "%"
	var out []models.User
	err := r.db.WithContext(ctx).
		Where("CAST(owned_projects AS TEXT) LIKE ? OR CAST(shared_projects AS TEXT) LIKE ?", pattern, pattern).
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list users by project failed")
	}
	return out, nil
}

type SettingsRepository interface {
	BaseRepository[models.Settings]
	GetByUser(ctx context.Context, userID uuid.UUID, dest *models.Settings) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type settingsRepository struct {
	BaseRepository[models.Settings]
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{BaseRepository: NewBaseRepository[models.Settings](db, "settings"), db: db}
}

func (r *settingsRepository) GetByUser(ctx context.Context, userID uuid.UUID, dest *models.Settings) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(dest).Error; err != nil {
		return translate(err, "settings", "get")
	}
	return nil
}

func (r *settingsRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Settings{})
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "delete settings failed")
	}
	return res.RowsAffected, nil
}
