package auth

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// State is the auth state machine state
type State string

const (
	StateHydrating     State = "hydrating"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// Snapshot is the derived, read only view of the session
type Snapshot struct {
	State           State  `json:"state"`
	User            *User  `json:"user,omitempty"`
	Loading         bool   `json:"loading"`
	IsAuthenticated bool   `json:"is_authenticated"`
	IsAdmin         bool   `json:"is_admin"`
	Generation      uint64 `json:"generation"`
}

// Role returns the derived role, empty when anonymous
func (s Snapshot) Role() Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role()
}

// HydratingSnapshot is the snapshot before the store has been read
func HydratingSnapshot() Snapshot {
	return newSnapshot(StateHydrating, nil, 0)
}

// AnonymousSnapshot is a hydrated snapshot with no user
func AnonymousSnapshot() Snapshot {
	return newSnapshot(StateAnonymous, nil, 0)
}

// AuthenticatedSnapshot is a hydrated snapshot for user
func AuthenticatedSnapshot(user User) Snapshot {
	return newSnapshot(StateAuthenticated, &user, 0)
}

func newSnapshot(state State, user *User, generation uint64) Snapshot {
	snap := Snapshot{
		State:      state,
		Loading:    state == StateHydrating,
		Generation: generation,
	}
	if user != nil && state == StateAuthenticated {
		u := *user
		snap.User = &u
		snap.IsAuthenticated = true
		snap.IsAdmin = u.IsAdmin
	}
	return snap
}

// ManagerOption customizes SessionManager construction.
type ManagerOption func(*SessionManager)

// WithManagerClock injects a custom clock (useful for tests).
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithManagerActivitySink sets the ActivitySink used to publish session events.
func WithManagerActivitySink(sink ActivitySink) ManagerOption {
	return func(m *SessionManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithManagerLogger overrides the logger.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *SessionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerLoggerProvider resolves the manager logger from a provider.
func WithManagerLoggerProvider(provider LoggerProvider) ManagerOption {
	return func(m *SessionManager) {
		m.provider, m.logger = ResolveLogger("auth.session_manager", provider, m.logger)
	}
}

// WithExpiredTokenCheck makes Hydrate drop stored sessions whose JWT exp
// claim is already in the past.
func WithExpiredTokenCheck() ManagerOption {
	return func(m *SessionManager) {
		m.checkExpiry = true
	}
}

// SessionManager is the single authority for who is signed in. It owns the
// Store, is its only writer, and publishes a Snapshot after every transition.
//
// Each transition bumps a generation counter. Sign outs also bump an epoch.
// Login and signup remember the epoch they started at and only apply their
// result when it is unchanged, so a login that resolves after a logout is
// dropped while overlapping logins leave the last one to complete.
type SessionManager struct {
	mu          sync.Mutex
	store       Store
	backend     Backend
	state       State
	user        *User
	token       string
	generation  uint64
	epoch       uint64
	hydrated    bool
	closed      bool
	subscribers map[uint64]func(Snapshot)
	nextSubID   uint64

	now          func() time.Time
	checkExpiry  bool
	activitySink ActivitySink
	logger       Logger
	provider     LoggerProvider
}

var _ Authenticator = (*SessionManager)(nil)

// NewSessionManager returns a manager in the hydrating state
func NewSessionManager(store Store, backend Backend, opts ...ManagerOption) *SessionManager {
	if store == nil {
		store = NewSessionStore(nil)
	}

	m := &SessionManager{
		store:        store,
		backend:      backend,
		state:        StateHydrating,
		subscribers:  map[uint64]func(Snapshot){},
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Snapshot returns the current snapshot
func (m *SessionManager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Token returns the bearer token of the current session
func (m *SessionManager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated {
		return ""
	}
	return m.token
}

// Subscribe registers fn to be called with the new snapshot after every
// transition. The returned func removes the subscription.
func (m *SessionManager) Subscribe(fn func(Snapshot)) func() {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return func() {}
	}

	m.nextSubID++
	id := m.nextSubID
	m.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}

// Hydrate restores the session from the store. It only reads local storage
// and only runs once, later calls return the current snapshot.
func (m *SessionManager) Hydrate(ctx context.Context) Snapshot {
	m.mu.Lock()
	if m.hydrated || m.closed {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap
	}

	from := m.state
	session, ok := m.store.Read(ctx)
	reason := ""
	if ok && m.checkExpiry {
		if claims, err := InspectToken(session.Token); err == nil && claims.Expired(m.now()) {
			ok = false
			reason = "token_expired"
			if err := m.store.Clear(ctx); err != nil {
				m.logger.Error("hydrate clear expired session", "error", err)
			}
		}
	}

	if ok {
		m.setAuthenticatedLocked(session)
	} else {
		m.setAnonymousLocked()
	}
	m.hydrated = true
	m.generation++

	snap, subs := m.publishLocked()
	m.mu.Unlock()

	m.notify(subs, snap)
	m.logger.Debug("session hydrated", "snapshot", print.MaybePrettyJSON(snap))

	meta := map[string]any{}
	if reason != "" {
		meta["reason"] = reason
	}
	m.recordActivity(ctx, ActivityEventHydrated, from, snap, meta)

	return snap
}

// Login signs in with the backend and stores the new session
func (m *SessionManager) Login(ctx context.Context, payload LoginRequest) (*User, error) {
	return m.authenticate(ctx, operationLogin, payload, SignupRequest{}, "")
}

// LoginForPortal signs in and rejects accounts that belong to the other
// portal. A rejected attempt writes nothing.
func (m *SessionManager) LoginForPortal(ctx context.Context, payload LoginRequest, portal Portal) (*User, error) {
	if !portal.IsValid() {
		portal = PortalUser
	}
	return m.authenticate(ctx, operationLogin, payload, SignupRequest{}, portal)
}

// Signup creates an account with the backend and stores the new session
func (m *SessionManager) Signup(ctx context.Context, payload SignupRequest) (*User, error) {
	return m.authenticate(ctx, operationSignup, LoginRequest{}, payload, "")
}

// Logout clears the session. It never fails.
func (m *SessionManager) Logout(ctx context.Context) Snapshot {
	snap, _ := m.dropSession(ctx, ActivityEventLogout, "", "")
	return snap
}

// Invalidate drops the session after the backend rejected its token
func (m *SessionManager) Invalidate(ctx context.Context, reason string) Snapshot {
	snap, _ := m.dropSession(ctx, ActivityEventInvalidated, reason, "")
	return snap
}

// InvalidateToken drops the session only if token is still the current one,
// so a late 401 for an old token does not sign out a newer session.
func (m *SessionManager) InvalidateToken(ctx context.Context, token, reason string) bool {
	if token == "" {
		return false
	}
	_, dropped := m.dropSession(ctx, ActivityEventInvalidated, reason, token)
	return dropped
}

// UpdateUser replaces the stored user record after a profile change. The
// record must belong to the signed in user.
func (m *SessionManager) UpdateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	if m.state != StateAuthenticated || m.user == nil {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}

	if user.ID != m.user.ID {
		m.mu.Unlock()
		return DeriveError(ErrInvalidSession, "updated user does not match the session user", map[string]any{
			"session_user_id": m.user.ID,
			"updated_user_id": user.ID,
		})
	}

	session := Session{Token: m.token, User: user}
	if err := m.store.Write(ctx, session); err != nil {
		m.mu.Unlock()
		return err
	}

	from := m.state
	m.setAuthenticatedLocked(session)
	m.generation++
	snap, subs := m.publishLocked()
	m.mu.Unlock()

	m.notify(subs, snap)
	m.recordActivity(ctx, ActivityEventUserUpdated, from, snap, nil)
	return nil
}

// Close drops subscribers, later operations return ErrClosed
func (m *SessionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subscribers = map[uint64]func(Snapshot){}
	return nil
}

type operation string

const (
	operationLogin  operation = "login"
	operationSignup operation = "signup"
)

func (m *SessionManager) authenticate(ctx context.Context, op operation, login LoginRequest, signup SignupRequest, portal Portal) (*User, error) {
	failure := ActivityEventLoginFailure
	success := ActivityEventLoginSuccess
	if op == operationSignup {
		failure = ActivityEventSignupFailure
		success = ActivityEventSignupSuccess
	}

	var err error
	if op == operationSignup {
		err = signup.Validate()
	} else {
		err = login.Validate()
	}
	if err != nil {
		m.recordFailure(ctx, failure, err)
		return nil, err
	}

	if m.backend == nil {
		err := DeriveError(ErrBackendUnavailable, "no authentication backend configured", nil)
		m.recordFailure(ctx, failure, err)
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	startEpoch := m.epoch
	m.mu.Unlock()

	var resp *AuthResponse
	if op == operationSignup {
		resp, err = m.backend.Signup(ctx, signup)
	} else {
		resp, err = m.backend.Login(ctx, login)
	}
	if err != nil {
		m.logger.Error(string(op)+" failed", "error", err)
		m.recordFailure(ctx, failure, err)
		return nil, err
	}

	session, err := sessionFromResponse(resp)
	if err != nil {
		m.logger.Error(string(op)+" malformed response", "error", err)
		m.recordFailure(ctx, failure, err)
		return nil, err
	}

	if op == operationSignup && session.User.IsAdmin {
		err := DeriveError(ErrSignupPrivilege, "", map[string]any{
			"username": session.User.Username,
		})
		m.recordFailure(ctx, failure, err)
		return nil, err
	}

	if portal != "" && session.User.Role() != portal {
		err := portalMismatch(session.User, portal)
		m.logger.Info("login rejected for portal", "portal", portal, "role", session.User.Role())
		m.recordActivity(ctx, ActivityEventPortalRejected, m.Snapshot().State, m.Snapshot(), map[string]any{
			"portal":   string(portal),
			"username": session.User.Username,
		})
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}

	if m.epoch != startEpoch {
		current := m.epoch
		snap := m.snapshotLocked()
		m.mu.Unlock()

		m.logger.Info(string(op)+" result discarded", "started_at", startEpoch, "current", current)
		m.recordActivity(ctx, ActivityEventOperationDiscarded, snap.State, snap, map[string]any{
			"operation":  string(op),
			"started_at": startEpoch,
		})
		return nil, DeriveError(ErrStaleOperation, "", map[string]any{
			"operation":  string(op),
			"started_at": startEpoch,
			"current":    current,
		})
	}

	if err := m.store.Write(ctx, session); err != nil {
		m.mu.Unlock()
		m.logger.Error(string(op)+" persist session", "error", err)
		m.recordFailure(ctx, failure, err)
		return nil, err
	}

	from := m.state
	m.setAuthenticatedLocked(session)
	m.hydrated = true
	m.generation++
	snap, subs := m.publishLocked()
	m.mu.Unlock()

	m.notify(subs, snap)
	m.recordActivity(ctx, success, from, snap, nil)

	user := session.User
	return &user, nil
}

// dropSession signs out. A non empty token restricts it to the session
// holding that token, checked under the same lock as the clear.
func (m *SessionManager) dropSession(ctx context.Context, event ActivityEventType, reason, token string) (Snapshot, bool) {
	m.mu.Lock()
	if m.closed {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, false
	}

	if token != "" && (m.state != StateAuthenticated || m.token != token) {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, false
	}

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("clear session store", "error", err)
	}

	from := m.state
	m.setAnonymousLocked()
	m.hydrated = true
	m.generation++
	m.epoch++
	snap, subs := m.publishLocked()
	m.mu.Unlock()

	m.notify(subs, snap)

	var meta map[string]any
	if reason != "" {
		meta = map[string]any{"reason": reason}
	}
	m.recordActivity(ctx, event, from, snap, meta)
	return snap, true
}

func (m *SessionManager) setAuthenticatedLocked(session Session) {
	user := session.User
	m.state = StateAuthenticated
	m.user = &user
	m.token = session.Token
}

func (m *SessionManager) setAnonymousLocked() {
	m.state = StateAnonymous
	m.user = nil
	m.token = ""
}

func (m *SessionManager) snapshotLocked() Snapshot {
	return newSnapshot(m.state, m.user, m.generation)
}

func (m *SessionManager) publishLocked() (Snapshot, []func(Snapshot)) {
	snap := m.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	return snap, subs
}

func (m *SessionManager) notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

func (m *SessionManager) recordFailure(ctx context.Context, event ActivityEventType, err error) {
	snap := m.Snapshot()
	m.recordActivity(ctx, event, snap.State, snap, map[string]any{
		"error": err.Error(),
	})
}

func (m *SessionManager) recordActivity(ctx context.Context, eventType ActivityEventType, from State, snap Snapshot, meta map[string]any) {
	event := ActivityEvent{
		ID:         uuid.NewString(),
		EventType:  eventType,
		From:       from,
		To:         snap.State,
		Generation: snap.Generation,
		Metadata:   meta,
		OccurredAt: m.now(),
	}
	if snap.User != nil {
		event.UserID = snap.User.ID
		event.Username = snap.User.Username
	}

	sink := normalizeActivitySink(m.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("session manager activity sink error", "error", err)
	}
}

func sessionFromResponse(resp *AuthResponse) (Session, error) {
	if resp == nil || resp.User == nil {
		return Session{}, DeriveError(ErrBackendUnavailable, "authentication response has no user", nil)
	}

	session := Session{Token: resp.Token, User: *resp.User}
	if err := session.Validate(); err != nil {
		return Session{}, errors.Wrap(err, errors.CategoryAuth, "authentication response is incomplete").
			WithTextCode(TextCodeBackendUnavailable).
			WithCode(ErrBackendUnavailable.Code)
	}
	return session, nil
}

func portalMismatch(user User, portal Portal) error {
	message := "This account is not admin. Please use the User Login tab."
	if user.IsAdmin {
		message = "This is an admin account. Please use the Admin Login tab."
	}
	return DeriveError(ErrWrongPortal, message, map[string]any{
		"portal": string(portal),
		"role":   string(user.Role()),
	})
}
