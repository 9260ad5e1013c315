package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/devilmonastery/passage/internal/config"
	"github.com/devilmonastery/passage/internal/domain/entities"
	"github.com/devilmonastery/passage/internal/pkg/logger"
)

// GenericOIDCProvider implements Provider for any issuer that supports discovery
type GenericOIDCProvider struct {
	name     string
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
	log      *slog.Logger
}

// NewGenericOIDCProvider discovers the issuer's endpoints and keys.
// redirectURL is where the provider sends the browser back with the code.
func NewGenericOIDCProvider(ctx context.Context, cfg config.ProviderConfig, redirectURL string) (*GenericOIDCProvider, error) {
	if cfg.Name == "" || cfg.ClientID == "" || redirectURL == "" {
		return nil, errors.New("oidc provider config missing required fields")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover issuer %s: %w", cfg.Issuer, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	return &GenericOIDCProvider{
		name:     cfg.Name,
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		log: logger.WithProvider(slog.Default(), cfg.Name),
	}, nil
}

// Name returns the provider identifier
func (p *GenericOIDCProvider) Name() string {
	return p.name
}

// AuthCodeURL builds the authorization URL with a PKCE S256 challenge
func (p *GenericOIDCProvider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange redeems the code, verifies the returned ID token and extracts the identity.
// If the ID token has no email, the userinfo endpoint is consulted.
func (p *GenericOIDCProvider) Exchange(ctx context.Context, code, verifier string) (*entities.ExternalIdentity, error) {
	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("provider did not return an id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("id_token verification failed: %w", err)
	}

	var raw map[string]any
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse id_token claims: %w", err)
	}
	claims := claimsFromMap(raw)
	claims.Issuer = idToken.Issuer

	// Some providers only put the email in userinfo
	if claims.Email == "" {
		p.log.Debug("email not in id_token, fetching userinfo")
		info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
		}
		var userinfo map[string]any
		if err := info.Claims(&userinfo); err != nil {
			return nil, fmt.Errorf("failed to parse userinfo: %w", err)
		}
		claims.mergeUserinfo(userinfo)
	}

	if claims.Subject == "" {
		return nil, errors.New("id_token missing sub claim")
	}

	p.log.Debug("id_token verified",
		slog.String("subject", claims.Subject),
		slog.Bool("email_present", claims.Email != ""),
		slog.Bool("email_verified", claims.EmailVerified))

	return claims.ToIdentity(p.name), nil
}
