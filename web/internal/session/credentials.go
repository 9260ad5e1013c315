package session

import (
	"fmt"
	"net/http"

	"github.com/devilmonastery/passage/internal/auth"
	"github.com/devilmonastery/passage/internal/domain/entities"
)

// Credentials carries the provider session in the cookie as a signed token
type Credentials struct {
	manager *Manager
	codec   *auth.Codec
}

// NewCredentials creates credentials over a cookie manager and a token codec
func NewCredentials(manager *Manager, codec *auth.Codec) *Credentials {
	return &Credentials{manager: manager, codec: codec}
}

// Issue encodes the provider session and stores it in the cookie
func (c *Credentials) Issue(r *http.Request, w http.ResponseWriter, session entities.Session) error {
	token, err := c.codec.Encode(auth.SessionClaims{Session: session})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return c.manager.SetToken(r, w, token)
}

// Load returns the provider session carried by the request.
// It fails with ErrNoToken when there is no cookie and with an error
// wrapping auth.ErrInvalidToken when the token does not verify.
func (c *Credentials) Load(r *http.Request) (entities.Session, error) {
	token, err := c.manager.GetToken(r)
	if err != nil {
		return nil, err
	}

	claims, err := c.codec.Decode(token)
	if err != nil {
		return nil, err
	}
	return entities.Session(claims.Session), nil
}

// Clear drops the session cookie
func (c *Credentials) Clear(r *http.Request, w http.ResponseWriter) error {
	return c.manager.ClearToken(r, w)
}
