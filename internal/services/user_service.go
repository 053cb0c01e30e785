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

type UserService interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetSettings(ctx context.Context, userID uuid.UUID) (*models.Settings, error)
	UpdateSettings(ctx context.Context, userID uuid.UUID, input *UpdateSettingsInput) (*models.Settings, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) (*CascadeReport, error)
}

type UpdateSettingsInput struct {
	Theme    *string
	Language *string
	Autosave *bool
}

type userService struct {
	db    *gorm.DB
	repos *repository.Repositories
	opts  options
}

func NewUserService(db *gorm.DB, opts ...Option) UserService {
	return &userService{db: db, repos: repository.New(db), opts: buildOptions(opts)}
}

var _ UserService = (*userService)(nil)

func (s *userService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.repos.Users.GetByID(ctx, userID, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetSettings returns the user's settings, creating defaults for users
// registered before settings existed.
func (s *userService) GetSettings(ctx context.Context, userID uuid.UUID) (*models.Settings, error) {
	var st models.Settings
	err := s.repos.Settings.GetByUser(ctx, userID, &st)
	if err == nil {
		return &st, nil
	}
	if !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	st = models.Settings{UserID: userID, Theme: "light", Language: "en"}
	if err := s.repos.Settings.Create(ctx, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *userService) UpdateSettings(ctx context.Context, userID uuid.UUID, input *UpdateSettingsInput) (*models.Settings, error) {
	logger.L().Info("update settings", zap.String("user_id", userID.String()))
	st, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.Theme != nil {
		st.Theme = *input.Theme
	}
	if input.Language != nil {
		st.Language = *input.Language
	}
	if input.Autosave != nil {
		st.Autosave = *input.Autosave
	}
	if err := s.repos.Settings.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteUser removes the account and everything it owns in one transaction.
func (s *userService) DeleteUser(ctx context.Context, userID uuid.UUID) (*CascadeReport, error) {
	logger.L().Info("delete user", zap.String("user_id", userID.String()))

	var rep *CascadeReport
	err := inTx(ctx, s.db, func(repos *repository.Repositories) error {
		var err error
		rep, err = CascadeDeleteUser(ctx, repos, userID)
		return err
	})
	if err != nil {
		if !appErr.IsCode(err, appErr.CodeNotFound) {
			requestSweep(ctx, s.opts.sweeper)
		}
		return nil, err
	}

	logger.L().Info("user deleted", zap.String("user_id", userID.String()), zap.Int("projects", rep.Projects))
	return rep, nil
}
