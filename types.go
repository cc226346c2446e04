package auth

import (
	"context"
)

// Storage is the key/value persistence used by SessionStore. Implementations
// must apply GetItems, SetItems and RemoveItems as a single unit so a reader
// never observes one key updated and the other not.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	// GetItems returns the present keys out of keys, read at one point in time
	GetItems(ctx context.Context, keys ...string) (map[string]string, error)
	SetItems(ctx context.Context, items map[string]string) error
	RemoveItems(ctx context.Context, keys ...string) error
}

// Store persists the session record
type Store interface {
	Write(ctx context.Context, session Session) error
	Read(ctx context.Context) (Session, bool)
	Clear(ctx context.Context) error
}

// Backend is the remote authentication API
type Backend interface {
	Login(ctx context.Context, payload LoginRequest) (*AuthResponse, error)
	Signup(ctx context.Context, payload SignupRequest) (*AuthResponse, error)
}

// SnapshotSource exposes the current auth snapshot to readers
type SnapshotSource interface {
	Snapshot() Snapshot
}

// TokenSource exposes the bearer token of the current session
type TokenSource interface {
	Token() string
}

// SessionInvalidator receives "session invalidated" signals from the HTTP
// layer. token is the bearer token the rejected request carried.
type SessionInvalidator interface {
	InvalidateToken(ctx context.Context, token, reason string) bool
}

// Authenticator is the write side of the auth state machine
type Authenticator interface {
	SnapshotSource
	TokenSource
	SessionInvalidator
	Hydrate(ctx context.Context) Snapshot
	Login(ctx context.Context, payload LoginRequest) (*User, error)
	LoginForPortal(ctx context.Context, payload LoginRequest, portal Portal) (*User, error)
	Signup(ctx context.Context, payload SignupRequest) (*User, error)
	Logout(ctx context.Context) Snapshot
	Invalidate(ctx context.Context, reason string) Snapshot
	UpdateUser(ctx context.Context, user User) error
}

// ProfileService changes the account on the backend
type ProfileService interface {
	UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error)
	ChangePassword(ctx context.Context, payload ChangePasswordRequest) error
}
