package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/devilmonastery/passage/internal/domain/entities"
	"github.com/devilmonastery/passage/internal/pkg/metrics"
)

// SignInPolicy restricts who may sign in
type SignInPolicy struct {
	AllowedDomains []string // lowercase email domains; empty allows every domain
	AutoProvision  bool     // create profiles on first sign-in; when false only existing users are admitted
}

// SignInGate decides whether a freshly asserted identity may sign in
type SignInGate struct {
	reconciler *Reconciler
	policy     SignInPolicy
	log        *slog.Logger
}

// NewSignInGate creates a new sign-in gate
func NewSignInGate(reconciler *Reconciler, policy SignInPolicy) *SignInGate {
	return &SignInGate{
		reconciler: reconciler,
		policy:     policy,
		log:        slog.Default().With(slog.String("component", "signin_gate")),
	}
}

// Admit reconciles the identity and reports whether sign-in may proceed.
// The provider must have verified the email. Errors are logged and turned
// into a denial.
func (g *SignInGate) Admit(ctx context.Context, identity entities.ExternalIdentity) bool {
	err := g.admit(ctx, identity)
	reason := FailureReason(err)
	if err != nil {
		g.log.Error("sign-in denied",
			slog.String("identity", identity.ProviderKey()),
			slog.String("email", identity.Email),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		metrics.RecordSignIn(false, reason)
		return false
	}

	g.log.Info("sign-in admitted",
		slog.String("identity", identity.ProviderKey()),
		slog.String("email", identity.NormalizedEmail()))
	metrics.RecordSignIn(true, reason)
	return true
}

func (g *SignInGate) admit(ctx context.Context, identity entities.ExternalIdentity) error {
	email := identity.NormalizedEmail()
	if email == "" {
		return ErrMalformedIdentity
	}
	if !identity.EmailVerified {
		return ErrEmailNotVerified
	}
	if !g.domainAllowed(email) {
		return ErrDomainNotAllowed
	}

	if !g.policy.AutoProvision {
		_, err := g.reconciler.Lookup(ctx, email)
		return err
	}

	_, err := g.reconciler.Reconcile(ctx, identity)
	return err
}

func (g *SignInGate) domainAllowed(email string) bool {
	if len(g.policy.AllowedDomains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, allowed := range g.policy.AllowedDomains {
		if domain == allowed {
			return true
		}
	}
	return false
}
