package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidSession      = "SESSION_INVALID"
	TextCodeCredentialsRejected = "AUTH_CREDENTIALS_REJECTED"
	TextCodeBackendUnavailable  = "AUTH_BACKEND_UNAVAILABLE"
	TextCodeWrongPortal         = "AUTH_WRONG_PORTAL"
	TextCodeSignupPrivilege     = "AUTH_SIGNUP_PRIVILEGE"
	TextCodeStaleOperation      = "AUTH_STALE_OPERATION"
	TextCodeSessionInvalidated  = "SESSION_INVALIDATED"
	TextCodeNotAuthenticated    = "AUTH_NOT_AUTHENTICATED"
	TextCodeClosed              = "SESSION_MANAGER_CLOSED"
	TextCodeInvalidPayload      = "AUTH_INVALID_PAYLOAD"
)

// ErrInvalidSession is returned when a session is written with a missing token or user.
var ErrInvalidSession = errors.New("session requires both token and user", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidSession).
	WithCode(errors.CodeBadRequest)

// ErrCredentialsRejected is returned when the backend refuses a login or signup.
var ErrCredentialsRejected = errors.New("credentials rejected", errors.CategoryAuth).
	WithTextCode(TextCodeCredentialsRejected).
	WithCode(errors.CodeUnauthorized)

// ErrBackendUnavailable is returned when the backend can not be reached or answers garbage.
var ErrBackendUnavailable = errors.New("authentication service unavailable", errors.CategoryAuth).
	WithTextCode(TextCodeBackendUnavailable).
	WithCode(http.StatusBadGateway)

// ErrWrongPortal is returned when an account signs in through the other portal.
var ErrWrongPortal = errors.New("account does not belong to this portal", errors.CategoryAuthz).
	WithTextCode(TextCodeWrongPortal).
	WithCode(errors.CodeForbidden)

// ErrSignupPrivilege is returned when a self-service signup comes back as an admin account.
var ErrSignupPrivilege = errors.New("signup returned a privileged account", errors.CategoryAuthz).
	WithTextCode(TextCodeSignupPrivilege).
	WithCode(errors.CodeForbidden)

// ErrStaleOperation is returned when an operation completes after the session moved on.
var ErrStaleOperation = errors.New("session changed while the operation was in flight", errors.CategoryConflict).
	WithTextCode(TextCodeStaleOperation).
	WithCode(errors.CodeConflict)

// ErrSessionInvalidated is returned by the bearer transport after the backend answered 401.
var ErrSessionInvalidated = errors.New("session is no longer valid", errors.CategoryAuth).
	WithTextCode(TextCodeSessionInvalidated).
	WithCode(errors.CodeUnauthorized)

// ErrNotAuthenticated is returned by operations that need a current user.
var ErrNotAuthenticated = errors.New("not authenticated", errors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrClosed is returned by a session manager after Close.
var ErrClosed = errors.New("session manager is closed", errors.CategoryOperation).
	WithTextCode(TextCodeClosed).
	WithCode(errors.CodeInternal)

// HasTextCode reports whether err carries the given text code anywhere in its chain
func HasTextCode(err error, code string) bool {
	for err != nil {
		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			return false
		}
		if richErr.TextCode == code {
			return true
		}
		if richErr.Source == nil || richErr.Source == err {
			return false
		}
		err = richErr.Source
	}
	return false
}

// IsCredentialRejection reports whether err should be shown to the user as a
// failed sign in. Backend outages are folded in on purpose: the login form can
// not act differently on them.
func IsCredentialRejection(err error) bool {
	return HasTextCode(err, TextCodeCredentialsRejected) ||
		HasTextCode(err, TextCodeBackendUnavailable) ||
		HasTextCode(err, TextCodeInvalidPayload)
}

// UserMessage returns the message that can be shown in a form
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case HasTextCode(err, TextCodeWrongPortal):
		var richErr *errors.Error
		if errors.As(err, &richErr) && richErr.Message != "" {
			return richErr.Message
		}
		return ErrWrongPortal.Message
	case HasTextCode(err, TextCodeInvalidPayload):
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return richErr.Message
		}
	case HasTextCode(err, TextCodeBackendUnavailable):
		return "Login failed. Please try again."
	case HasTextCode(err, TextCodeCredentialsRejected):
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			if msg, ok := richErr.Metadata["backend_error"].(string); ok && msg != "" {
				return msg
			}
		}
		return "Invalid username or password"
	}

	return "Something went wrong. Please try again."
}

// DeriveError returns a copy of sentinel with its own message and metadata.
// The copy keeps the sentinel as Source so errors.Is and HasTextCode match.
func DeriveError(sentinel *errors.Error, message string, meta map[string]any) *errors.Error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	if message != "" {
		clone.Message = message
	}
	clone.Source = sentinel
	if len(meta) == 0 {
		return clone
	}
	return clone.WithMetadata(meta)
}

// FieldErrors returns the per field messages of a payload validation error,
// keyed by the json field name
func FieldErrors(err error) map[string]string {
	fields := map[string]string{}
	if !HasTextCode(err, TextCodeInvalidPayload) {
		return fields
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		for key, val := range richErr.Metadata {
			if msg, ok := val.(string); ok {
				fields[key] = msg
			}
		}
	}
	return fields
}

func loadErrorMessage(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		if msg, ok := richErr.Metadata["backend_error"].(string); ok && msg != "" {
			return msg
		}
		if richErr.Message != "" {
			return richErr.Message
		}
	}
	return "Something went wrong. Please try again."
}
