package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer identifies tokens minted by this service
	DefaultIssuer = "passage"

	// DefaultTokenTTL is how long an encoded session stays valid
	DefaultTokenTTL = time.Hour
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrMissingSecret = errors.New("token secret is required")
)

// Claim names the codec owns. Values supplied for them in a session are
// dropped on encode and never surface from decode.
var reservedClaims = map[string]bool{
	"iss": true,
	"iat": true,
	"exp": true,
	"nbf": true,
}

// SessionClaims is the payload carried inside a session token
type SessionClaims struct {
	// Session is an opaque copy of the provider session fields
	Session map[string]any

	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// CodecConfig configures a Codec
type CodecConfig struct {
	Secret []byte
	Issuer string        // defaults to DefaultIssuer
	TTL    time.Duration // defaults to DefaultTokenTTL
	Now    func() time.Time
}

// Codec signs session claims into HS256 tokens and verifies them back
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec creates a new token codec
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}

	c := &Codec{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}
	if c.issuer == "" {
		c.issuer = DefaultIssuer
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTokenTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// TTL returns the lifetime given to every encoded token
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode signs the session into a token. Issuer, issued-at and expiry are
// always assigned by the codec; caller-supplied values for them are ignored.
func (c *Codec) Encode(claims SessionClaims) (string, error) {
	now := c.now()

	mapClaims := jwt.MapClaims{}
	for k, v := range claims.Session {
		if reservedClaims[k] {
			continue
		}
		mapClaims[k] = v
	}
	mapClaims["iss"] = c.issuer
	mapClaims["iat"] = jwt.NewNumericDate(now)
	mapClaims["exp"] = jwt.NewNumericDate(now.Add(c.ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Decode verifies a token and returns its claims. Every failure wraps
// ErrInvalidToken; expired tokens also match ErrExpiredToken.
func (c *Codec) Decode(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrExpiredToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims := &SessionClaims{
		Session: make(map[string]any, len(mapClaims)),
	}
	for k, v := range mapClaims {
		if reservedClaims[k] {
			continue
		}
		claims.Session[k] = v
	}

	claims.Issuer, _ = mapClaims.GetIssuer()
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}
