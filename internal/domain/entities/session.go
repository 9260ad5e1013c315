package entities

// SessionUserKey is the session key holding the user object
const SessionUserKey = "user"

// Session is the session value exposed to the rest of the application.
// Apart from "user" its keys are opaque and passed through untouched.
type Session map[string]any

// NewProviderSession builds the provider session for a freshly asserted identity
func NewProviderSession(identity ExternalIdentity) Session {
	user := map[string]any{
		"email": identity.NormalizedEmail(),
	}
	if identity.DisplayName != "" {
		user["name"] = identity.DisplayName
	}
	if identity.AvatarRef != "" {
		user["image"] = identity.AvatarRef
	}
	return Session{SessionUserKey: user}
}

// User returns the user object, or nil if the session has none
func (s Session) User() map[string]any {
	switch user := s[SessionUserKey].(type) {
	case map[string]any:
		return user
	case Session:
		return user
	default:
		return nil
	}
}

// Email returns user.email, or "" when absent
func (s Session) Email() string {
	email, _ := s.User()["email"].(string)
	return email
}

// MergeSession returns a new session: a shallow copy of provider whose user
// object is the provider user overlaid with the profile's session fields.
// Profile fields win on key collision. Neither input is modified.
func MergeSession(provider Session, profile *User) Session {
	merged := make(Session, len(provider)+1)
	for k, v := range provider {
		merged[k] = v
	}
	if profile == nil {
		return merged
	}

	providerUser := provider.User()
	profileFields := profile.SessionFields()

	user := make(map[string]any, len(providerUser)+len(profileFields))
	for k, v := range providerUser {
		user[k] = v
	}
	for k, v := range profileFields {
		user[k] = v
	}
	merged[SessionUserKey] = user

	return merged
}
