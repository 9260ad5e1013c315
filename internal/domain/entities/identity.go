package entities

import "strings"

// ExternalIdentity holds the attributes an identity provider asserted for a
// single sign-in event. It is never persisted.
type ExternalIdentity struct {
	Provider    string // "google", "github", "okta", etc.
	Subject     string // provider's 'sub' claim
	Email       string
	DisplayName string
	AvatarRef   string

	// EmailVerified is the provider's email_verified assertion. Email is the
	// reconciliation key, so an unverified address is never admitted.
	EmailVerified bool
}

// NormalizedEmail returns the reconciliation key for this identity
func (i ExternalIdentity) NormalizedEmail() string {
	return NormalizeEmail(i.Email)
}

// ProviderKey returns a formatted provider+subject string for logging
func (i ExternalIdentity) ProviderKey() string {
	return i.Provider + ":" + i.Subject
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
