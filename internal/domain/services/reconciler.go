package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"

	"github.com/devilmonastery/passage/internal/domain/entities"
	"github.com/devilmonastery/passage/internal/domain/repositories"
	"github.com/devilmonastery/passage/internal/pkg/urlutil"
)

// ReconcilerConfig configures profile provisioning
type ReconcilerConfig struct {
	DefaultRole entities.Role // role given to provisioned users, defaults to RoleUser
}

// Reconciler matches external identities to internal user profiles,
// provisioning a profile the first time an email signs in.
type Reconciler struct {
	users     repositories.UserRepository
	cfg       ReconcilerConfig
	sanitizer *bluemonday.Policy
	log       *slog.Logger
}

// NewReconciler creates a new identity reconciler
func NewReconciler(users repositories.UserRepository, cfg ReconcilerConfig) *Reconciler {
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = entities.RoleUser
	}
	return &Reconciler{
		users:     users,
		cfg:       cfg,
		sanitizer: bluemonday.StrictPolicy(),
		log:       slog.Default().With(slog.String("component", "reconciler")),
	}
}

// Reconcile returns the profile for identity's email, creating it when absent.
// An existing profile is returned as stored; the fresh identity never overwrites it.
func (r *Reconciler) Reconcile(ctx context.Context, identity entities.ExternalIdentity) (*entities.User, error) {
	email := identity.NormalizedEmail()
	if email == "" {
		return nil, ErrMalformedIdentity
	}

	user, err := r.Lookup(ctx, email)
	if err == nil {
		return user, nil
	}
	if !IsUserNotFound(err) {
		return nil, err
	}

	user = r.newProfile(identity, email)
	if err := r.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: failed to create user: %w", ErrStoreUnavailable, err)
	}

	r.log.Info("provisioned user",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.String("provider", identity.Provider))

	return user, nil
}

// Lookup returns the stored profile for email without ever creating one.
// A missing profile is reported as repositories.ErrUserNotFound.
func (r *Reconciler) Lookup(ctx context.Context, email string) (*entities.User, error) {
	email = entities.NormalizeEmail(email)
	if email == "" {
		return nil, ErrMalformedIdentity
	}

	user, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		if IsUserNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to get user by email: %w", ErrStoreUnavailable, err)
	}
	return user, nil
}

// newProfile builds the profile submitted on first sign-in
func (r *Reconciler) newProfile(identity entities.ExternalIdentity, email string) *entities.User {
	name := html.UnescapeString(r.sanitizer.Sanitize(strings.TrimSpace(identity.DisplayName)))
	name = strings.TrimSpace(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	user := &entities.User{
		Email:       email,
		DisplayName: name,
		Handle:      slug.Make(name),
		Role:        r.cfg.DefaultRole,
	}
	if avatar := urlutil.NormalizeAvatarURL(identity.AvatarRef); avatar != "" {
		user.AvatarRef = &avatar
	}
	return user
}
