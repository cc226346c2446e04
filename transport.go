package auth

import (
	"net/http"
)

// BearerTransportSession is what BearerTransport needs from the session
// manager
type BearerTransportSession interface {
	TokenSource
	SessionInvalidator
}

// BearerTransport attaches the session token to outgoing requests and turns a
// 401 answer into a session invalidation. Session may be assigned after
// construction, the API client and the session manager depend on each other.
type BearerTransport struct {
	Base    http.RoundTripper
	Session BearerTransportSession
	Logger  Logger
}

// NewBearerTransport wraps base (http.DefaultTransport when nil)
func NewBearerTransport(session BearerTransportSession, base http.RoundTripper, logger Logger) *BearerTransport {
	if logger == nil {
		logger = defaultLogger()
	}
	return &BearerTransport{
		Base:    base,
		Session: session,
		Logger:  logger,
	}
}

// RoundTrip implements http.RoundTripper
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx := req.Context()
	token := ""
	if t.Session != nil && !IsAnonymousRequest(ctx) {
		token = t.Session.Token()
	}

	if token == "" {
		return base.RoundTrip(req)
	}

	clone := req.Clone(ctx)
	clone.Header.Set("Authorization", "Bearer "+token)

	resp, err := base.RoundTrip(clone)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || keepSessionOn401(ctx) {
		return resp, nil
	}

	resp.Body.Close()

	if t.Session.InvalidateToken(ctx, token, "backend_unauthorized") {
		t.logger().Info("session invalidated by backend", "path", req.URL.Path)
	}

	return nil, DeriveError(ErrSessionInvalidated, "", map[string]any{
		"method": req.Method,
		"path":   req.URL.Path,
	})
}

func (t *BearerTransport) logger() Logger {
	if t.Logger == nil {
		return defaultLogger()
	}
	return t.Logger
}
