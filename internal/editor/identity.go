package editor

import (
	"sync"

	"github.com/google/uuid"

	"github.com/erdstudio/engine/internal/models"
)

// Identity answers who is editing and what they may do.
type Identity interface {
	CurrentUserID() uuid.UUID
	HasRole(projectID uuid.UUID, roles ...models.Role) bool
}

// MemberIdentity derives roles from the member lists of projects the
// coordinator has loaded.
type MemberIdentity struct {
	userID uuid.UUID

	mu       sync.RWMutex
	projects map[uuid.UUID]models.Project
}

func NewMemberIdentity(userID uuid.UUID) *MemberIdentity {
	return &MemberIdentity{userID: userID, projects: map[uuid.UUID]models.Project{}}
}

func (m *MemberIdentity) CurrentUserID() uuid.UUID { return m.userID }

func (m *MemberIdentity) HasRole(projectID uuid.UUID, roles ...models.Role) bool {
	m.mu.RLock()
	p, ok := m.projects[projectID]
	m.mu.RUnlock()
	return ok && p.HasRole(m.userID, roles...)
}

// Observe records the latest known membership of p.
func (m *MemberIdentity) Observe(p *models.Project) {
	m.mu.Lock()
	m.projects[p.ID] = models.Project{ID: p.ID, Members: p.Members, GeneralAccess: p.GeneralAccess}
	m.mu.Unlock()
}

// Forget drops a deleted project.
func (m *MemberIdentity) Forget(projectID uuid.UUID) {
	m.mu.Lock()
	delete(m.projects, projectID)
	m.mu.Unlock()
}
