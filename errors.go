package secretwall

import (
	"errors"
	"net/http"
)

// Sentinel errors for the failure modes the route handlers branch on.
// Handlers never surface these to the caller as payloads; they pick a
// redirect target (or a degraded response) and log the rest.
var (
	// ErrDuplicateUsername is returned when registering an identifier that
	// already has a local account.
	ErrDuplicateUsername = errors.New("username already registered")

	// ErrInvalidCredentials covers both a wrong password and an unknown
	// username. Callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExchangeFailed is returned when the external provider rejects the
	// authorization code or the profile fetch fails.
	ErrExchangeFailed = errors.New("authorization code exchange failed")

	// ErrStoreUnavailable wraps transport-level store failures.
	ErrStoreUnavailable = errors.New("user store unavailable")

	// ErrUserNotFound is returned when a principal's record has vanished
	// between session resolution and the store lookup.
	ErrUserNotFound = errors.New("user not found")
)

// Error codes for form-level auth errors
const (
	ErrCodeMissingField  = "missing_field"
	ErrCodeInvalidCreds  = "invalid_credentials"
	ErrCodeUsernameTaken = "username_taken"
	ErrCodeWeakPassword  = "weak_password"
)

// AuthError carries field-level detail for login/signup form failures.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string { return e.Message }

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

// AuthErrorHandler is called when login or signup fails. Returning true
// means the handler wrote the response; false falls through to the
// default redirect.
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool
