package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

const (
	// DefaultTokenKey is the well known storage key for the bearer token
	DefaultTokenKey = "token"
	// DefaultUserKey is the well known storage key for the JSON user record
	DefaultUserKey = "user"
)

var _ Store = (*SessionStore)(nil)

// SessionStore persists the session record in a Storage under two fixed keys.
// Reads never fail: anything that is not a complete, parseable pair is
// reported as "no session" and wiped.
type SessionStore struct {
	storage  Storage
	tokenKey string
	userKey  string
	logger   Logger
	provider LoggerProvider
}

// StoreOption customizes a SessionStore
type StoreOption func(*SessionStore)

// WithStoreKeys overrides the storage keys
func WithStoreKeys(tokenKey, userKey string) StoreOption {
	return func(s *SessionStore) {
		if tokenKey != "" {
			s.tokenKey = tokenKey
		}
		if userKey != "" {
			s.userKey = userKey
		}
	}
}

// WithStoreLogger sets the logger
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreLoggerProvider resolves the store logger from a provider
func WithStoreLoggerProvider(provider LoggerProvider) StoreOption {
	return func(s *SessionStore) {
		s.provider, s.logger = ResolveLogger("auth.session_store", provider, s.logger)
	}
}

// NewSessionStore returns a store backed by storage. A nil storage falls back
// to memory.
func NewSessionStore(storage Storage, opts ...StoreOption) *SessionStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}

	s := &SessionStore{
		storage:  storage,
		tokenKey: DefaultTokenKey,
		userKey:  DefaultUserKey,
		logger:   defaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Write stores token and user with a single storage call
func (s *SessionStore) Write(ctx context.Context, session Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(session.User)
	if err != nil {
		return DeriveError(ErrInvalidSession, "unable to encode session user", map[string]any{
			"error": err.Error(),
		})
	}

	return s.storage.SetItems(ctx, map[string]string{
		s.tokenKey: session.Token,
		s.userKey:  string(raw),
	})
}

// Read returns the stored session or false. Corrupt records are cleared.
func (s *SessionStore) Read(ctx context.Context) (Session, bool) {
	items, err := s.storage.GetItems(ctx, s.tokenKey, s.userKey)
	if err != nil {
		s.logger.Warn("session store read", "error", err)
		s.healCorruption(ctx, err)
		return Session{}, false
	}

	token, hasToken := items[s.tokenKey]
	rawUser, hasUser := items[s.userKey]

	if !hasToken && !hasUser {
		return Session{}, false
	}

	session, ok := decodeSession(token, rawUser)
	if !ok {
		s.logger.Warn("session store discarding corrupt session",
			"has_token", hasToken,
			"has_user", hasUser,
		)
		if err := s.Clear(ctx); err != nil {
			s.logger.Error("session store self heal", "error", err)
		}
		return Session{}, false
	}

	return session, true
}

// Clear removes both keys
func (s *SessionStore) Clear(ctx context.Context) error {
	return s.storage.RemoveItems(ctx, s.tokenKey, s.userKey)
}

// healCorruption clears the record when the backend reported unreadable
// content. Transient failures keep the record so a later read can succeed.
func (s *SessionStore) healCorruption(ctx context.Context, err error) {
	if !errors.Is(err, ErrCorruptStorage) {
		return
	}
	if err := s.Clear(ctx); err != nil {
		s.logger.Error("session store self heal", "error", err)
	}
}

func decodeSession(token, rawUser string) (Session, bool) {
	if isUnsetMarker(token) || isUnsetMarker(rawUser) {
		return Session{}, false
	}

	var user User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return Session{}, false
	}

	session := Session{Token: token, User: user}
	if err := session.Validate(); err != nil {
		return Session{}, false
	}

	return session, true
}

func isUnsetMarker(val string) bool {
	switch strings.TrimSpace(val) {
	case "", "undefined", "null":
		return true
	}
	return false
}
