package oidc

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/devilmonastery/passage/internal/config"
	"github.com/devilmonastery/passage/internal/domain/entities"
)

// Provider defines the interface for OIDC identity providers.
// Each configured issuer (Google, Okta, Keycloak, etc.) gets one.
// A provider only asserts identities; it never creates users or sessions.
type Provider interface {
	// Name returns the provider identifier (e.g., "google", "okta")
	Name() string

	// AuthCodeURL builds the authorization URL the browser is sent to.
	// verifier is the PKCE code verifier; only its S256 challenge leaves the server.
	AuthCodeURL(state, verifier string) string

	// Exchange trades an authorization code for a verified ID token and
	// returns the identity it asserts
	Exchange(ctx context.Context, code, verifier string) (*entities.ExternalIdentity, error)
}

// Registry holds all registered OIDC providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return provider, nil
}

// List returns all registered provider names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitializeProviders runs discovery for every configured provider and
// returns a registry holding them.
// This should be called at application startup.
func InitializeProviders(ctx context.Context, cfg *config.Config) (*Registry, error) {
	registry := NewRegistry()
	for _, providerCfg := range cfg.Auth.Providers {
		if providerCfg.Issuer == "" {
			return nil, fmt.Errorf("provider %s: issuer is required for OIDC discovery", providerCfg.Name)
		}

		provider, err := NewGenericOIDCProvider(ctx, providerCfg, cfg.CallbackURL(providerCfg))
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", providerCfg.Name, err)
		}
		registry.Register(provider)
	}
	return registry, nil
}
