// Package entitlement issues and verifies the signed tokens that gate premium usage.
package entitlement

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the token validity window
const DefaultTTL = 365 * 24 * time.Hour

var (
	// ErrInvalidToken covers a bad signature, malformed input and expiry alike
	ErrInvalidToken = errors.New("invalid_token")

	// ErrMissingSecret is returned when no signing secret is configured
	ErrMissingSecret = errors.New("token signing secret is not configured")
)

var signingMethod = jwt.SigningMethodHS256

// Codec signs claims with a server-held HMAC secret. It holds no mutable
// state and is safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a Codec
type Option func(*Codec)

// WithTTL overrides the 365 day validity window
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithIssuer sets the iss claim; verification then requires the same issuer
func WithIssuer(issuer string) Option {
	return func(c *Codec) { c.issuer = issuer }
}

// WithClock replaces time.Now, used for issuance and expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a Codec for secret
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	c := &Codec{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs claim and embeds an absolute expiry of now + TTL
func (c *Codec) Issue(claim Claim) (string, error) {
	now := c.now()
	tc := tokenClaims{
		Premium:                claim.Premium,
		Email:                  claim.Email,
		PaidReference:          claim.PaidReference,
		RemainingPremiumTrials: claim.RemainingPremiumTrials,
		RemainingTotalSearches: claim.RemainingTotalSearches,
		IssuedAtMillis:         claim.IssuedAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(signingMethod, tc).SignedString(c.secret)
}

// Verify checks signature and expiry and returns the embedded claim.
// Every failure is ErrInvalidToken; the reason is deliberately not exposed.
func (c *Codec) Verify(token string) (*Claim, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	tc := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, tc, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return tc.claim(), nil
}

// ExpiresIn reports the configured validity window
func (c *Codec) ExpiresIn() time.Duration {
	return c.ttl
}
