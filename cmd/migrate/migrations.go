package main

import (
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/models"
)

// runMigrations creates or updates every table, then applies the
// statements AutoMigrate cannot express.
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return err
	}
	return runCustomMigrations(db)
}

func runCustomMigrations(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	migrations := []func(*gorm.DB) error{
		addCurrentChangelogIndex,
		addHistoryOrderIndex,
	}
	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}
	return nil
}

// addCurrentChangelogIndex allows at most one current changelog per project.
func addCurrentChangelogIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_changelogs_one_current
		ON changelogs(project_id)
		WHERE current_version
	`).Error
}

func addHistoryOrderIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_histories_version_created
		ON histories(version_id, created_at)
	`).Error
}
