package oidc

import "github.com/devilmonastery/passage/internal/domain/entities"

// Claims represents the standardized claims extracted from an OIDC ID token
type Claims struct {
	// Subject - unique identifier for the user at the provider
	Subject string

	// Email address of the user
	Email string

	// EmailVerified indicates if the email has been verified by the provider
	EmailVerified bool

	// Name is the user's full display name
	Name string

	// Picture is the URL to the user's profile picture
	Picture string

	// Issuer is the OIDC provider that issued the token (e.g., "https://accounts.google.com")
	Issuer string
}

// ToIdentity converts the claims into the identity handed to the sign-in gate
func (c *Claims) ToIdentity(provider string) *entities.ExternalIdentity {
	return &entities.ExternalIdentity{
		Provider:      provider,
		Subject:       c.Subject,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		DisplayName:   c.Name,
		AvatarRef:     c.Picture,
	}
}

func claimsFromMap(m map[string]any) *Claims {
	c := &Claims{
		Name:    extractName(m),
		Picture: stringClaim(m, "picture"),
	}
	c.Subject = stringClaim(m, "sub")
	c.Email = stringClaim(m, "email")
	c.EmailVerified, _ = m["email_verified"].(bool)
	return c
}

// mergeUserinfo fills fields the ID token left empty
func (c *Claims) mergeUserinfo(userinfo map[string]any) {
	if c.Email == "" {
		c.Email = stringClaim(userinfo, "email")
		// Try both "email_verified" (standard OIDC) and "verified" (some providers)
		if verified, ok := userinfo["email_verified"].(bool); ok {
			c.EmailVerified = verified
		} else if verified, ok := userinfo["verified"].(bool); ok {
			c.EmailVerified = verified
		}
	}
	if c.Name == "" {
		c.Name = extractName(userinfo)
	}
	if c.Picture == "" {
		c.Picture = stringClaim(userinfo, "picture")
	}
	if c.Subject == "" {
		c.Subject = stringClaim(userinfo, "sub")
	}
}

// extractName picks the display name, trying provider-specific fields first
func extractName(m map[string]any) string {
	for _, key := range []string{"global_name", "name", "username", "preferred_username"} {
		if name := stringClaim(m, key); name != "" {
			return name
		}
	}
	return ""
}

func stringClaim(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
