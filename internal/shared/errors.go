package shared

import "errors"

var (
	// ErrInvalidInput indicates malformed arguments supplied by the caller.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates identity could not be established or the
	// presented credential is invalid, expired, or inactive.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the identity is established but lacks the
	// required permission or role.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserSafeMessage returns a message suitable for exposing in responses.
// Database and other unexpected errors are masked.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidCredentials):
		return err.Error()
	default:
		return "internal error"
	}
}
