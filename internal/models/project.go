package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role is a member's permission level on a project.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// General access levels granted to authenticated non-members.
const (
	AccessRestricted = "restricted"
	AccessViewer     = "viewer"
	AccessEditor     = "editor"
)

// Member links a user to a project with a role.
type Member struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// Project is a diagram owned by a user. Data mirrors the payload of the
// project's current changelog.
type Project struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string                      `gorm:"not null" json:"name" validate:"required"`
	Icon          string                      `gorm:"type:varchar(64)" json:"icon"`
	Data          string                      `gorm:"type:text" json:"data,omitempty"`
	Members       datatypes.JSONSlice[Member] `json:"members"`
	GeneralAccess string                      `gorm:"type:varchar(16);not null;default:'restricted'" json:"general_access" validate:"omitempty,oneof=restricted viewer editor"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// RoleOf returns the effective role of userID and whether it has any access.
func (p *Project) RoleOf(userID uuid.UUID) (Role, bool) {
	for _, m := range p.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	switch p.GeneralAccess {
	case AccessEditor:
		return RoleEditor, true
	case AccessViewer:
		return RoleViewer, true
	}
	return "", false
}

// HasRole reports whether userID holds one of roles on the project.
func (p *Project) HasRole(userID uuid.UUID, roles ...Role) bool {
	r, ok := p.RoleOf(userID)
	if !ok {
		return false
	}
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// Owner returns the owning member's user id.
func (p *Project) Owner() (uuid.UUID, bool) {
	for _, m := range p.Members {
		if m.Role == RoleOwner {
			return m.UserID, true
		}
	}
	return uuid.Nil, false
}
