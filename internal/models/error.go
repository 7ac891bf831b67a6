package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Session and identity errors
	ErrNoSession            = errors.New("no active session")
	ErrNotAuthenticated     = errors.New("user is not authenticated")
	ErrProfileIncomplete    = errors.New("profile completion required")
	ErrInvalidLoginState    = errors.New("invalid or expired login state")
	ErrSubmissionInProgress = errors.New("a submission is already in progress")

	// Upstream errors
	ErrNetwork            = errors.New("network error")
	ErrInvalidResponse    = errors.New("invalid upstream response")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UpstreamError carries an error payload returned by the backend or the
// identity provider.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return e.Message
}
