package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/erdstudio/engine/internal/models"
	"github.com/erdstudio/engine/internal/repository"
	"github.com/erdstudio/engine/internal/testutil"
)

type fixture struct {
	db       *gorm.DB
	repos    *repository.Repositories
	clock    *testutil.Clock
	auth     AuthService
	projects ProjectService
	ledger   LedgerService
	versions VersionService
	users    UserService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return fixtureOn(t, testutil.NewDB(t), opts...)
}

func fixtureOn(t *testing.T, db *gorm.DB, opts ...Option) *fixture {
	t.Helper()
	clock := testutil.NewClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return &fixture{
		db:       db,
		repos:    repository.New(db),
		clock:    clock,
		auth:     NewAuthService(db, []byte("test-secret"), opts...),
		projects: NewProjectService(db, opts...),
		ledger:   NewLedgerService(db, opts...),
		versions: NewVersionService(db, opts...),
		users:    NewUserService(db, opts...),
	}
}

func (f *fixture) user(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), email, "password123", email)
	require.NoError(t, err)
	return u
}

func (f *fixture) project(t *testing.T, owner uuid.UUID, name string) *models.Project {
	t.Helper()
	p, err := f.projects.CreateProject(context.Background(), owner, &CreateProjectInput{Name: name})
	require.NoError(t, err)
	return p
}

func ptr[T any](v T) *T { return &v }

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) EnqueueSweep(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
