package domain

import "errors"

// Circulation rule violations. These are expected, recoverable
// conditions surfaced verbatim to the caller; retrying does not
// resolve them.
var (
	ErrNoCopiesAvailable    = errors.New("no copies available")
	ErrInvalidInventory     = errors.New("owned copies cannot drop below copies on loan")
	ErrUserIneligible       = errors.New("user may not open new loans or reservations")
	ErrRenewalLimitExceeded = errors.New("renewal limit exceeded")
	ErrAlreadyReturned      = errors.New("loan already returned")
	ErrDuplicateReservation = errors.New("user already has an active reservation for this book")
	ErrNotActive            = errors.New("reservation is not active")
)

// Access and input errors
var (
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

// Machine-readable error kinds carried in API responses alongside the
// human-readable message.
const (
	CodeNoCopiesAvailable    = "NoCopiesAvailable"
	CodeInvalidInventory     = "InvalidInventory"
	CodeUserIneligible       = "UserIneligible"
	CodeRenewalLimitExceeded = "RenewalLimitExceeded"
	CodeAlreadyReturned      = "AlreadyReturned"
	CodeDuplicateReservation = "DuplicateReservation"
	CodeNotActive            = "NotActive"
	CodeForbidden            = "Forbidden"
	CodeNotFound             = "NotFound"
	CodeValidationFailed     = "ValidationFailed"
	CodeUnauthenticated      = "Unauthenticated"
)

// ErrorCode maps a domain error to its wire kind. Unknown errors map
// to the empty string so transport failures are not mislabeled as
// rule violations.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoCopiesAvailable):
		return CodeNoCopiesAvailable
	case errors.Is(err, ErrInvalidInventory):
		return CodeInvalidInventory
	case errors.Is(err, ErrUserIneligible):
		return CodeUserIneligible
	case errors.Is(err, ErrRenewalLimitExceeded):
		return CodeRenewalLimitExceeded
	case errors.Is(err, ErrAlreadyReturned):
		return CodeAlreadyReturned
	case errors.Is(err, ErrDuplicateReservation):
		return CodeDuplicateReservation
	case errors.Is(err, ErrNotActive):
		return CodeNotActive
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidationFailed):
		return CodeValidationFailed
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	}
	return ""
}
