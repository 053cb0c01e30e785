package services

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/models"
	"github.com/erdstudio/engine/internal/repository"
	appErr "github.com/erdstudio/engine/pkg/errors"
	"github.com/erdstudio/engine/pkg/logger"
)

const tokenTTL = 24 * time.Hour

var errInvalidCredentials = appErr.New(appErr.CodeUnauthorized, "invalid credentials")

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	// ParseToken validates a bearer token and returns the user id it was issued for.
	ParseToken(token string) (uuid.UUID, error)
}

type authService struct {
	db         *gorm.DB
	repos      *repository.Repositories
	hmacSecret []byte
	opts       options
}

func NewAuthService(db *gorm.DB, secret []byte, opts ...Option) AuthService {
	return &authService{
		db:         db,
		repos:      repository.New(db),
		hmacSecret: secret,
		opts:       buildOptions(opts),
	}
}

var _ AuthService = (*authService)(nil)

// Register creates the user together with default settings.
func (s *authService) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	logger.L().Info("register user", zap.String("email", email))

	ph, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(ph),
		Name:         name,
	}
	err = inTx(ctx, s.db, func(repos *repository.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}
		return repos.Settings.Create(ctx, &models.Settings{UserID: user.ID, Theme: "light", Language: "en"})
	})
	if err != nil {
		if appErr.IsCode(err, appErr.CodeConflict) {
			return nil, appErr.New(appErr.CodeConflict, "email already registered")
		}
		return nil, err
	}

	logger.L().Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.repos.Users.GetByEmail(ctx, email, &user); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return "", nil, errInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, errInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(s.opts.now()),
		ExpiresAt: jwt.NewNumericDate(s.opts.now().Add(tokenTTL)),
	})
	tokenString, err := token.SignedString(s.hmacSecret)
	if err != nil {
		return "", nil, appErr.Wrap(err, appErr.CodeInternal, "sign token")
	}

	logger.L().Info("user logged in", zap.String("user_id", user.ID.String()))
	return tokenString, &user, nil
}

func (s *authService) ParseToken(token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.hmacSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.opts.now),
	)
	if err != nil {
		return uuid.Nil, appErr.Wrap(err, appErr.CodeUnauthorized, "invalid token")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, appErr.Wrap(err, appErr.CodeUnauthorized, "invalid token subject")
	}
	return id, nil
}
