package services

import (
	"errors"

	"github.com/devilmonastery/passage/internal/domain/repositories"
)

var (
	// ErrStoreUnavailable wraps any failure of the user store
	ErrStoreUnavailable = errors.New("user store unavailable")

	// ErrMalformedIdentity is returned when an identity carries no email
	ErrMalformedIdentity = errors.New("identity has no email")

	// ErrEmailNotVerified is returned when the provider did not verify the email
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrDomainNotAllowed is returned when the email domain is outside the allowlist
	ErrDomainNotAllowed = errors.New("email domain not allowed")
)

// FailureReason returns a short reason label for a sign-in or lookup failure.
// This is used for logging and metrics labels.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrMalformedIdentity):
		return "malformed_identity"
	case errors.Is(err, ErrEmailNotVerified):
		return "email_not_verified"
	case errors.Is(err, ErrDomainNotAllowed):
		return "domain_not_allowed"
	case errors.Is(err, repositories.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// IsUserNotFound checks if the error indicates user not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, repositories.ErrUserNotFound)
}

// IsStoreUnavailable checks if the error came from a failing user store.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
