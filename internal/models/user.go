package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents a platform user.
type User struct {
	ID             uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	Email          string                         `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	PasswordHash   string                         `gorm:"not null" json:"-"`
	Name           string                         `gorm:"not null" json:"name" validate:"required"`
	OwnedProjects  datatypes.JSONSlice[uuid.UUID] `json:"owned_projects"`
	SharedProjects datatypes.JSONSlice[uuid.UUID] `json:"shared_projects"`
	CreatedAt      time.Time                      `json:"created_at"`
	UpdatedAt      time.Time                      `json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// Settings holds per-user editor preferences.
type Settings struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Theme     string    `gorm:"type:varchar(16);not null;default:'light'" json:"theme" validate:"omitempty,oneof=light dark"`
	Language  string    `gorm:"type:varchar(16);not null;default:'en'" json:"language"`
	Autosave  bool      `gorm:"not null;default:false" json:"autosave"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Settings) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// RemoveID returns ids without id, preserving order.
func RemoveID(ids []uuid.UUID, id uuid.UUID) ([]uuid.UUID, bool) {
	out := make([]uuid.UUID, 0, len(ids))
	removed := false
	for _, v := range ids {
		if v == id {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out, removed
}

// AppendID appends id unless it is already present.
func AppendID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}
