package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"
)

const (
	// SessionName is the name of the session cookie
	SessionName = "passage_session"

	// TokenKey is the session key for storing the session token
	TokenKey = "token"

	stateKey    = "oauth_state"
	verifierKey = "oauth_code_verifier"
	providerKey = "oauth_provider"
	nextKey     = "oauth_next"
)

// ErrNoToken is returned when the request carries no session token
var ErrNoToken = errors.New("no session token")

// Options configures the session cookie
type Options struct {
	Secure bool          // set in production with HTTPS
	MaxAge time.Duration // cookie lifetime, should match the token TTL
}

// LoginState is what the login handler remembers for the callback
type LoginState struct {
	State    string
	Verifier string
	Provider string
	Next     string
}

// CookieMaxAge returns the cookie lifetime to use for the configured value.
// The cookie never outlives the token it carries.
func CookieMaxAge(configured, tokenTTL time.Duration) time.Duration {
	if configured <= 0 || configured > tokenTTL {
		return tokenTTL
	}
	return configured
}

// Manager wraps gorilla/sessions for our use case
type Manager struct {
	store *sessions.CookieStore
}

// NewManager creates a new session manager.
// The cookie's signing and encryption keys are both derived from secret.
func NewManager(secret []byte, opts Options) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is required")
	}

	hashKey, err := deriveKey(secret, "passage cookie hash", 64)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(secret, "passage cookie block", 32)
	if err != nil {
		return nil, err
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	maxAge := int(opts.MaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	store.MaxAge(maxAge)

	// Configure session options
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = opts.Secure
	store.Options.SameSite = http.SameSiteLaxMode

	return &Manager{
		store: store,
	}, nil
}

func deriveKey(secret []byte, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive %s key: %w", info, err)
	}
	return key, nil
}

// session returns the request's session. A cookie that cannot be decoded
// yields a fresh, empty session.
func (m *Manager) session(r *http.Request) *sessions.Session {
	session, _ := m.store.Get(r, SessionName)
	return session
}

// SetToken stores the session token in the cookie
func (m *Manager) SetToken(r *http.Request, w http.ResponseWriter, token string) error {
	session := m.session(r)
	session.Values[TokenKey] = token
	return session.Save(r, w)
}

// GetToken retrieves the session token from the cookie
func (m *Manager) GetToken(r *http.Request) (string, error) {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return "", ErrNoToken
	}

	token, ok := session.Values[TokenKey].(string)
	if !ok || token == "" {
		return "", ErrNoToken
	}

	return token, nil
}

// ClearToken removes the session token. A cookie left with nothing in it
// is expired. The request's session stays usable, so a login started later
// in the same request still saves its state.
func (m *Manager) ClearToken(r *http.Request, w http.ResponseWriter) error {
	session := m.session(r)
	delete(session.Values, TokenKey)
	if len(session.Values) > 0 {
		return session.Save(r, w)
	}

	maxAge := session.Options.MaxAge
	session.Options.MaxAge = -1
	err := session.Save(r, w)
	session.Options.MaxAge = maxAge
	return err
}

// SaveLoginState remembers the in-flight authorization request
func (m *Manager) SaveLoginState(r *http.Request, w http.ResponseWriter, state LoginState) error {
	session := m.session(r)
	session.Values[stateKey] = state.State
	session.Values[verifierKey] = state.Verifier
	session.Values[providerKey] = state.Provider
	session.Values[nextKey] = state.Next
	return session.Save(r, w)
}

// TakeLoginState returns the in-flight authorization request and forgets it,
// so a state value can be redeemed only once
func (m *Manager) TakeLoginState(r *http.Request, w http.ResponseWriter) (LoginState, error) {
	session := m.session(r)

	var state LoginState
	state.State, _ = session.Values[stateKey].(string)
	state.Verifier, _ = session.Values[verifierKey].(string)
	state.Provider, _ = session.Values[providerKey].(string)
	state.Next, _ = session.Values[nextKey].(string)

	if state.State == "" {
		return LoginState{}, errors.New("no login in progress")
	}

	delete(session.Values, stateKey)
	delete(session.Values, verifierKey)
	delete(session.Values, providerKey)
	delete(session.Values, nextKey)
	if err := session.Save(r, w); err != nil {
		return LoginState{}, fmt.Errorf("failed to save session: %w", err)
	}

	return state, nil
}
