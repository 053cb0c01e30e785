package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Version groups History entries under a named line of a project.
//
// Version and History are the legacy save model, kept for data written by
// older clients. Changelog is canonical; nothing here touches Project.Data.
type Version struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_versions_project_name,priority:1" json:"project_id"`
	Name             string     `gorm:"not null;uniqueIndex:idx_versions_project_name,priority:2" json:"name" validate:"required"`
	Description      string     `gorm:"type:text" json:"description,omitempty"`
	CurrentHistoryID *uuid.UUID `gorm:"type:uuid" json:"current_history,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (v *Version) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}

// History is one saved state under a Version. Rows are append-only; a
// rollback appends a copy flagged IsRollback.
type History struct {
	ID         uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	VersionID  uuid.UUID                      `gorm:"type:uuid;index;not null" json:"version_id"`
	Data       string                         `gorm:"type:text" json:"data,omitempty"`
	Members    datatypes.JSONSlice[uuid.UUID] `json:"members"`
	IsRollback bool                           `gorm:"not null;default:false" json:"is_rollback"`
	CreatedAt  time.Time                      `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time                      `json:"updated_at"`
}

func (h *History) BeforeCreate(*gorm.DB) error {
	assignID(&h.ID)
	return nil
}
