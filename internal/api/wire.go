package api

import (
	"context"

	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/api/handlers"
	"github.com/erdstudio/engine/internal/services"
)

// NewDependencies builds services and handlers over db.
func NewDependencies(db *gorm.DB, secret []byte, opts ...services.Option) Dependencies {
	auth := services.NewAuthService(db, secret, opts...)
	projects := services.NewProjectService(db, opts...)
	ledger := services.NewLedgerService(db, opts...)
	versions := services.NewVersionService(db, opts...)
	users := services.NewUserService(db, opts...)

	return Dependencies{
		Tokens: auth,
		HealthChecks: map[string]handlers.Pinger{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
		AuthHandler:     handlers.NewAuthHandler(auth),
		ProjectsHandler: handlers.NewProjectsHandler(projects, ledger),
		VersionsHandler: handlers.NewVersionsHandler(projects, versions),
		UsersHandler:    handlers.NewUsersHandler(users),
	}
}
