package services

import (
	"context"

	"github.com/devilmonastery/passage/internal/domain/entities"
)

// SessionHooks are the two extension points the web layer calls into
type SessionHooks interface {
	// OnSignIn reports whether a provider-asserted identity may sign in
	OnSignIn(ctx context.Context, identity entities.ExternalIdentity) bool

	// OnSessionMaterialize returns the session exposed to the application
	OnSessionMaterialize(ctx context.Context, session entities.Session) entities.Session
}

// Hooks implements SessionHooks on top of a gate and an assembler
type Hooks struct {
	gate      *SignInGate
	assembler *SessionAssembler
}

// NewHooks creates the session hooks
func NewHooks(gate *SignInGate, assembler *SessionAssembler) *Hooks {
	return &Hooks{gate: gate, assembler: assembler}
}

func (h *Hooks) OnSignIn(ctx context.Context, identity entities.ExternalIdentity) bool {
	return h.gate.Admit(ctx, identity)
}

func (h *Hooks) OnSessionMaterialize(ctx context.Context, session entities.Session) entities.Session {
	return h.assembler.Assemble(ctx, session)
}
