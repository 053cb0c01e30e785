package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Changelog is the append-only record of one persisted project save.
type Changelog struct {
	ID             uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID      uuid.UUID                      `gorm:"type:uuid;index;not null" json:"project_id"`
	Name           string                         `gorm:"type:varchar(128)" json:"name"`
	Data           string                         `gorm:"type:text" json:"data,omitempty"`
	Checksum       string                         `gorm:"type:varchar(64)" json:"checksum"`
	CurrentVersion bool                           `gorm:"not null;default:false;index" json:"current_version"`
	Members        datatypes.JSONSlice[uuid.UUID] `json:"members"`
	CreatedAt      time.Time                      `gorm:"index" json:"created_at"`
}

func (c *Changelog) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
