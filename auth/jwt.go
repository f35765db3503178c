package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenSource supplies bearer tokens.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Token may return the same token to many callers until it nears expiry.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// JWTConfig configures minting and verification.
type JWTConfig struct {
	// Issuer is the iss claim.
	Issuer string

	// Audience is the aud claim.
	Audience string

	// Subject is the sub claim of minted tokens.
	Subject string

	// KeyID is written to the kid header when set.
	KeyID string

	// TTL is the lifetime of a minted token.
	// Default: 5 minutes
	TTL time.Duration

	// RefreshBefore is how long before expiry a new token is minted.
	// Default: 30 seconds
	RefreshBefore time.Duration
}

func (c *JWTConfig) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.RefreshBefore <= 0 || c.RefreshBefore >= c.TTL {
		c.RefreshBefore = min(30*time.Second, c.TTL/2)
	}
}

// JWTSource mints HS256 tokens.
type JWTSource struct {
	config JWTConfig
	key    []byte

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewJWTSource creates a token source signing with key.
func NewJWTSource(config JWTConfig, key []byte) (*JWTSource, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}
	config.applyDefaults()
	return &JWTSource{config: config, key: slices.Clone(key)}, nil
}

// Token returns the cached token, minting a new one when none is cached or
// the cached one expires within RefreshBefore.
func (s *JWTSource) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.token != "" && now.Add(s.config.RefreshBefore).Before(s.expires) {
		return s.token, nil
	}

	expires := now.Add(s.config.TTL)
	claims := jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Subject:   s.config.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if s.config.KeyID != "" {
		tok.Header["kid"] = s.config.KeyID
	}
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}

	s.token, s.expires = signed, expires
	return signed, nil
}

// KeyProvider retrieves verification keys.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider provides a single key for every key ID.
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider creates a static key provider.
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	return p.key, nil
}

// Verifier validates HS256 tokens against a JWTConfig.
type Verifier struct {
	config JWTConfig
	keys   KeyProvider
}

// NewVerifier creates a verifier. Issuer and Audience are enforced when set.
func NewVerifier(config JWTConfig, keys KeyProvider) *Verifier {
	return &Verifier{config: config, keys: keys}
}

// Verify parses token and returns its claims.
func (v *Verifier) Verify(ctx context.Context, token string) (*jwt.RegisteredClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingCredentials
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.config.Audience))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.GetKey(ctx, kid)
	}, opts...)

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
}

var (
	_ TokenSource = (*JWTSource)(nil)
	_ KeyProvider = (*StaticKeyProvider)(nil)
)
