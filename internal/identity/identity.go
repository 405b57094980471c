// Package identity verifies session tokens issued by the identity provider
// and carries the resulting domain.Identity through request contexts.
package identity

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
)

// ErrInvalidToken wraps every verification failure.
var ErrInvalidToken = errors.New("invalid session token")

// Verifier checks signed session tokens. The identity id is the "sub" claim.
type Verifier struct {
	key    interface{}
	parser *jwt.Parser
}

// VerifierOption tunes claim validation.
type VerifierOption func(*verifierConfig)

type verifierConfig struct {
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// WithIssuer requires the "iss" claim to equal iss.
func WithIssuer(iss string) VerifierOption {
	return func(c *verifierConfig) { c.issuer = iss }
}

// WithAudience requires aud to be listed in the "aud" claim.
func WithAudience(aud string) VerifierOption {
	return func(c *verifierConfig) { c.audience = aud }
}

// WithLeeway tolerates clock skew on exp/nbf/iat.
func WithLeeway(d time.Duration) VerifierOption {
	return func(c *verifierConfig) { c.leeway = d }
}

func withClock(now func() time.Time) VerifierOption {
	return func(c *verifierConfig) { c.now = now }
}

// NewHMACVerifier accepts HS256 tokens signed with secret.
func NewHMACVerifier(secret []byte, opts ...VerifierOption) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is empty")
	}
	return newVerifier(secret, []string{jwt.SigningMethodHS256.Alg()}, opts), nil
}

// NewRSAVerifier accepts RS256 tokens signed by the private half of a PEM public key.
func NewRSAVerifier(publicKeyPEM []byte, opts ...VerifierOption) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session public key: %w", err)
	}
	return newRSA(key, opts), nil
}

func newRSA(key *rsa.PublicKey, opts []VerifierOption) *Verifier {
	return newVerifier(key, []string{jwt.SigningMethodRS256.Alg()}, opts)
}

func newVerifier(key interface{}, methods []string, opts []VerifierOption) *Verifier {
	cfg := verifierConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.leeway),
		jwt.WithTimeFunc(cfg.now),
	}
	if cfg.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.issuer))
	}
	if cfg.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.audience))
	}

	return &Verifier{
		key:    key,
		parser: jwt.NewParser(parserOpts...),
	}
}

// Verify parses raw and returns the signed-in identity it names.
func (v *Verifier) Verify(raw string) (domain.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Identity{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}

	return domain.Identity{ID: claims.Subject, SignedIn: true, Loaded: true}, nil
}

// Issuer mints HS256 session tokens. Meant for development and tests,
// where no external identity provider is wired.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewIssuer(secret []byte, iss string) *Issuer {
	return &Issuer{secret: secret, issuer: iss, now: time.Now}
}

// Issue signs a token for subject valid for ttl.
func (i *Issuer) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is empty")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be > 0, got %v", ttl)
	}
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
// A context without one yields the zero Identity (not loaded, not signed in).
func FromContext(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(ctxKey{}).(domain.Identity)
	return id
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
