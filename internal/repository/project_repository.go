package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erdstudio/engine/internal/models"
	appErr "github.com/erdstudio/engine/pkg/errors"
)

type ProjectRepository interface {
	BaseRepository[models.Project]
	// ListByMember returns projects whose member list mentions userID.
	ListByMember(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// GetForUpdate loads a project and, on Postgres, row-locks it until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID, dest *models.Project) error
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db, "project"), db: db}
}

func (r *projectRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	var out []models.Project
	err := r.db.WithContext(ctx).
		Omit("data").
		Where("CAST(members AS TEXT) LIKE ?", "%"+userID.String()+"%").
		Order("updated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list projects by member failed")
	}
	return out, nil
}

func (r *projectRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, appErr.Wrap(err, appErr.CodeInternal, "check project failed")
	}
	return n > 0, nil
}

func (r *projectRepository) GetForUpdate(ctx context.Context, id uuid.UUID, dest *models.Project) error {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(dest, "id = ?", id).Error; err != nil {
		return translate(err, "project", "lock")
	}
	return nil
}
