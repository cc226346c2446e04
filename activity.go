package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventHydrated           ActivityEventType = "session.hydrated"
	ActivityEventLoginSuccess       ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure       ActivityEventType = "auth.login.failure"
	ActivityEventPortalRejected     ActivityEventType = "auth.login.portal_rejected"
	ActivityEventSignupSuccess      ActivityEventType = "auth.signup.success"
	ActivityEventSignupFailure      ActivityEventType = "auth.signup.failure"
	ActivityEventLogout             ActivityEventType = "auth.logout"
	ActivityEventInvalidated        ActivityEventType = "session.invalidated"
	ActivityEventUserUpdated        ActivityEventType = "session.user_updated"
	ActivityEventOperationDiscarded ActivityEventType = "auth.operation.discarded"
)

// ActivityEvent captures audit-friendly information about a session transition.
type ActivityEvent struct {
	ID         string
	EventType  ActivityEventType
	UserID     int64
	Username   string
	From       State
	To         State
	Generation uint64
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans an event out to every sink and returns the first error.
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
