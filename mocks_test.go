package auth_test

import (
	"context"
	"sync"

	auth "github.com/marketsim/portal-auth"
	"github.com/stretchr/testify/mock"
)

// MockBackend implements auth.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Login(ctx context.Context, payload auth.LoginRequest) (*auth.AuthResponse, error) {
	args := m.Called(ctx, payload)
	resp, _ := args.Get(0).(*auth.AuthResponse)
	return resp, args.Error(1)
}

func (m *MockBackend) Signup(ctx context.Context, payload auth.SignupRequest) (*auth.AuthResponse, error) {
	args := m.Called(ctx, payload)
	resp, _ := args.Get(0).(*auth.AuthResponse)
	return resp, args.Error(1)
}

// MockProfiles implements auth.ProfileService
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) UpdateProfile(ctx context.Context, update auth.ProfileUpdate) (*auth.User, error) {
	args := m.Called(ctx, update)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockProfiles) ChangePassword(ctx context.Context, payload auth.ChangePasswordRequest) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// recordingSink keeps every activity event
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

var (
	alice = auth.User{ID: 7, Username: "alice", Email: "alice@example.com", IsActive: true}
	admin = auth.User{ID: 1, Username: "root", Email: "root@example.com", IsActive: true, IsAdmin: true}
)

func authResponse(token string, user auth.User) *auth.AuthResponse {
	return &auth.AuthResponse{Message: "Login successful", Token: token, User: &user}
}

func newTestManager(backend auth.Backend, opts ...auth.ManagerOption) (*auth.SessionManager, *auth.SessionStore) {
	store := auth.NewSessionStore(auth.NewMemoryStorage())
	manager := auth.NewSessionManager(store, backend, opts...)
	return manager, store
}
