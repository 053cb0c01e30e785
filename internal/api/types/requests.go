package types

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProjectCreateRequest struct {
	Name          string `json:"name" validate:"required,max=128"`
	Icon          string `json:"icon" validate:"max=64"`
	GeneralAccess string `json:"general_access" validate:"omitempty,oneof=restricted viewer editor"`
}

type ProjectUpdateRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=128"`
	Icon          *string `json:"icon" validate:"omitempty,max=64"`
	GeneralAccess *string `json:"general_access" validate:"omitempty,oneof=restricted viewer editor"`
}

type MemberRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"required,oneof=editor viewer"`
}

// SaveDataRequest carries an opaque serialized snapshot.
type SaveDataRequest struct {
	Data    string   `json:"data"`
	Members []string `json:"members" validate:"dive,uuid"`
	Name    string   `json:"name" validate:"max=128"`
}

type VersionRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=128"`
	Description *string `json:"description" validate:"omitempty,max=2048"`
}

type HistoryRequest struct {
	Data    string   `json:"data"`
	Members []string `json:"members" validate:"dive,uuid"`
}

type SettingsRequest struct {
	Theme    *string `json:"theme" validate:"omitempty,oneof=light dark"`
	Language *string `json:"language" validate:"omitempty,min=2,max=16"`
	Autosave *bool   `json:"autosave"`
}
