package services

import (
	"context"
	"log/slog"

	"github.com/devilmonastery/passage/internal/domain/entities"
	"github.com/devilmonastery/passage/internal/pkg/metrics"
)

// ProfileLookup is the read-only profile access used during materialization
type ProfileLookup interface {
	Lookup(ctx context.Context, email string) (*entities.User, error)
}

// SessionAssembler merges a provider session with the current internal profile
type SessionAssembler struct {
	profiles ProfileLookup
	log      *slog.Logger
}

// NewSessionAssembler creates a new session assembler
func NewSessionAssembler(profiles ProfileLookup) *SessionAssembler {
	return &SessionAssembler{
		profiles: profiles,
		log:      slog.Default().With(slog.String("component", "session_assembler")),
	}
}

// Assemble returns the provider session merged with the stored profile for
// its user.email. It never fails: without an email, or when the lookup
// fails, the provider session is returned unchanged.
func (a *SessionAssembler) Assemble(ctx context.Context, provider entities.Session) entities.Session {
	email := provider.Email()
	if email == "" {
		metrics.SessionMaterializations.WithLabelValues("skipped", "no_email").Inc()
		return provider
	}

	profile, err := a.profiles.Lookup(ctx, email)
	if err != nil {
		reason := FailureReason(err)
		a.log.Warn("session materialization fell back to provider session",
			slog.String("email", email),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		metrics.SessionMaterializations.WithLabelValues("provider_only", reason).Inc()
		return provider
	}

	metrics.SessionMaterializations.WithLabelValues("merged", "none").Inc()
	return entities.MergeSession(provider, profile)
}
