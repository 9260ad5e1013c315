package entities

import "time"

// User is the internal profile kept for everyone who has signed in.
// There is at most one User per email.
type User struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"name" db:"name"`
	AvatarRef   *string   `json:"image,omitempty" db:"avatar_url"` // profile picture from the identity that provisioned the user
	Handle      string    `json:"handle" db:"handle"`              // slug derived from the display name at provisioning
	Role        Role      `json:"role" db:"role"`
	Timezone    *string   `json:"timezone,omitempty" db:"timezone"` // user's preferred timezone (IANA Time Zone)
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Role represents user roles in the system
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// SessionFields returns the profile as it appears under the session's user key.
// Keys line up with the provider's user shape (name, email, image) so profile
// values replace provider values on merge. Unset optional fields are omitted.
func (u *User) SessionFields() map[string]any {
	fields := map[string]any{
		"id":     u.ID,
		"email":  u.Email,
		"name":   u.DisplayName,
		"handle": u.Handle,
		"role":   string(u.Role),
	}
	if u.AvatarRef != nil && *u.AvatarRef != "" {
		fields["image"] = *u.AvatarRef
	}
	if u.Timezone != nil && *u.Timezone != "" {
		fields["timezone"] = *u.Timezone
	}
	return fields
}
