package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zapflow/zapflow/internal/rbac"
)

// Principal is the identity a token asserts.
type Principal struct {
	UserID       int64
	Role         rbac.Role
	TenantID     *int64
	TokenVersion int64
}

// Claims is the signed token payload.
type Claims struct {
	UserID       int64     `json:"uid"`
	Role         rbac.Role `json:"role"`
	TenantID     *int64    `json:"tid,omitempty"`
	TokenVersion int64     `json:"ver"`
	jwt.RegisteredClaims
}

// Principal returns the asserted identity without the registered claims.
func (c *Claims) Principal() Principal {
	return Principal{
		UserID:       c.UserID,
		Role:         c.Role,
		TenantID:     c.TenantID,
		TokenVersion: c.TokenVersion,
	}
}

// TokenIssuer signs and verifies HS256 tokens. Verification is stateless.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption customises a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithClock replaces the time source.
func WithClock(now func() time.Time) IssuerOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenIssuer creates a TokenIssuer. An empty secret is rejected.
func NewTokenIssuer(secret string, defaultTTL time.Duration, opts ...IssuerOption) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrEmptySecret
	}
	if defaultTTL <= 0 {
		return nil, fmt.Errorf("auth: default ttl must be positive, got %s", defaultTTL)
	}
	t := &TokenIssuer{secret: []byte(secret), ttl: defaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// DefaultTTL returns the lifetime used when Issue gets a zero ttl.
func (t *TokenIssuer) DefaultTTL() time.Duration {
	return t.ttl
}

// ExpirationDate returns now + ttl, using the default ttl when ttl <= 0.
func (t *TokenIssuer) ExpirationDate(ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = t.ttl
	}
	return t.now().Add(ttl)
}

// Issue signs a token for p valid for ttl and reports its expiry.
func (t *TokenIssuer) Issue(p Principal, ttl time.Duration) (string, time.Time, error) {
	issuedAt := t.now()
	if ttl <= 0 {
		ttl = t.ttl
	}
	expiresAt := issuedAt.Add(ttl)
	claims := &Claims{
		UserID:       p.UserID,
		Role:         p.Role,
		TenantID:     p.TenantID,
		TokenVersion: p.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature and expiry and returns the embedded claims. It
// fails with ErrTokenExpired once now >= exp and with ErrTokenMalformed for
// everything else.
func (t *TokenIssuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, t.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !token.Valid || claims.UserID <= 0 || claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (t *TokenIssuer) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return t.secret, nil
}

// ParseTTL reads a token lifetime such as "7d", "2w", "12h", "30m" or a bare
// number of seconds.
func ParseTTL(raw string) (time.Duration, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, errors.New("auth: empty ttl")
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return positive(time.Duration(secs)*time.Second, raw)
	}
	unit := raw[len(raw)-1]
	if unit == 'd' || unit == 'w' {
		n, err := strconv.ParseInt(raw[:len(raw)-1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("auth: invalid ttl %q", raw)
		}
		day := 24 * time.Hour
		if unit == 'w' {
			day *= 7
		}
		return positive(time.Duration(n)*day, raw)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("auth: invalid ttl %q", raw)
	}
	return positive(d, raw)
}

// ExpirationDate computes the expiry instant of a token issued at from with
// the given ttl string.
func ExpirationDate(from time.Time, ttl string) (time.Time, error) {
	d, err := ParseTTL(ttl)
	if err != nil {
		return time.Time{}, err
	}
	return from.Add(d), nil
}

func positive(d time.Duration, raw string) (time.Duration, error) {
	if d <= 0 {
		return 0, fmt.Errorf("auth: ttl must be positive, got %q", raw)
	}
	return d, nil
}
