package session

import (
	"context"

	"github.com/devilmonastery/passage/internal/domain/entities"
)

type contextKey struct{}

// WithSession returns a context carrying the materialized session
func WithSession(ctx context.Context, s entities.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the materialized session, if any
func FromContext(ctx context.Context) (entities.Session, bool) {
	s, ok := ctx.Value(contextKey{}).(entities.Session)
	return s, ok
}
