package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var snapshotCtxKey = &contextKey{"snapshot"}
var anonymousCtxKey = &contextKey{"anonymous_request"}
var keepSessionCtxKey = &contextKey{"keep_session"}

// SnapshotLocalsKey is the router locals key RouteGuard stores the snapshot under
const SnapshotLocalsKey = "auth_snapshot"

type contextKey struct {
	name string
}

// WithSnapshot sets the Snapshot in the given context
func WithSnapshot(ctx context.Context, snap Snapshot) context.Context {
	return context.WithValue(ctx, snapshotCtxKey, snap)
}

// SnapshotFromContext finds the snapshot in the context.
func SnapshotFromContext(ctx context.Context) (Snapshot, bool) {
	raw, ok := ctx.Value(snapshotCtxKey).(Snapshot)
	return raw, ok
}

// UserFromContext returns the signed in user stored with WithSnapshot
func UserFromContext(ctx context.Context) (*User, bool) {
	snap, ok := SnapshotFromContext(ctx)
	if !ok || snap.User == nil {
		return nil, false
	}
	return snap.User, true
}

// GetRouterSnapshot extracts the snapshot RouteGuard stored in router locals
func GetRouterSnapshot(ctx router.Context) (Snapshot, bool) {
	raw := ctx.Locals(SnapshotLocalsKey)
	if raw == nil {
		return Snapshot{}, false
	}
	snap, ok := raw.(Snapshot)
	return snap, ok
}

// AnonymousRequest marks a request that must go out without the session
// token, and whose 401 answer says nothing about the session (login, signup).
func AnonymousRequest(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousCtxKey, true)
}

// IsAnonymousRequest reports whether ctx was marked with AnonymousRequest
func IsAnonymousRequest(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousCtxKey).(bool)
	return v
}

// KeepSessionOn401 marks an authenticated request whose 401 answer is a
// business error, not an expired session (change password with a wrong
// current password).
func KeepSessionOn401(ctx context.Context) context.Context {
	return context.WithValue(ctx, keepSessionCtxKey, true)
}

func keepSessionOn401(ctx context.Context) bool {
	v, _ := ctx.Value(keepSessionCtxKey).(bool)
	return v
}
