package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/zapflow/internal/rbac"
)

const testSecret = "test-signing-secret"

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestIssuer(t *testing.T, clock *fakeClock) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(testSecret, time.Hour, WithClock(clock.Now))
	require.NoError(t, err)
	return issuer
}

func tenantRef(id int64) *int64 { return &id }

func TestIssueVerifyRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_760_000_000, 0)}
	issuer := newTestIssuer(t, clock)

	p := Principal{UserID: 42, Role: rbac.RoleOperator, TenantID: tenantRef(7), TokenVersion: 3}
	token, expiresAt, err := issuer.Issue(p, 0)
	require.NoError(t, err)
	assert.True(t, expiresAt.Equal(clock.now.Add(time.Hour)))

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, p, claims.Principal())
	assert.Equal(t, "42", claims.Subject)
}

func TestRoundTripWithoutTenant(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_760_000_000, 0)}
	issuer := newTestIssuer(t, clock)

	p := Principal{UserID: 1, Role: rbac.RoleSuperAdmin}
	token, _, err := issuer.Issue(p, 0)
	require.NoError(t, err)
	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Nil(t, claims.TenantID)
	assert.Equal(t, p, claims.Principal())
}

func TestVerifyExpiryBoundary(t *testing.T) {
	start := time.Unix(1_760_000_000, 0)
	clock := &fakeClock{now: start}
	issuer := newTestIssuer(t, clock)

	token, _, err := issuer.Issue(Principal{UserID: 5, Role: rbac.RoleViewer}, 10*time.Minute)
	require.NoError(t, err)

	clock.now = start.Add(10*time.Minute - time.Second)
	_, err = issuer.Verify(token)
	require.NoError(t, err)

	clock.now = start.Add(10 * time.Minute)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	clock.now = start.Add(24 * time.Hour)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsEveryTamperedByte(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_760_000_000, 0)}
	issuer := newTestIssuer(t, clock)

	token, _, err := issuer.Issue(Principal{UserID: 9, Role: rbac.RoleAdmin, TenantID: tenantRef(1)}, 0)
	require.NoError(t, err)

	for i := range token {
		tampered := []byte(token)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}
		_, err := issuer.Verify(string(tampered))
		if !assert.ErrorIs(t, err, ErrTokenMalformed, "byte %d", i) {
			return
		}
	}
}

func TestVerifyRejectsForeignSecretAndAlgorithm(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_760_000_000, 0)}
	issuer := newTestIssuer(t, clock)
	other, err := NewTokenIssuer("another-secret", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	foreign, _, err := other.Issue(Principal{UserID: 1, Role: rbac.RoleSuperAdmin}, 0)
	require.NoError(t, err)
	_, err = issuer.Verify(foreign)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	claims := &Claims{UserID: 1, Role: rbac.RoleSuperAdmin, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		IssuedAt:  jwt.NewNumericDate(clock.now),
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Verify(unsigned)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = issuer.Verify(hs512)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyRequiresExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_760_000_000, 0)}
	issuer := newTestIssuer(t, clock)

	claims := &Claims{UserID: 1, Role: rbac.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyGarbage(t *testing.T) {
	issuer := newTestIssuer(t, &fakeClock{now: time.Unix(1_760_000_000, 0)})
	for _, raw := range []string{"", "abc", "a.b.c", "....."} {
		_, err := issuer.Verify(raw)
		assert.ErrorIs(t, err, ErrTokenMalformed, raw)
	}
}

func TestNewTokenIssuerRejectsEmptySecret(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour)
	assert.True(t, errors.Is(err, ErrEmptySecret))
	_, err = NewTokenIssuer("   ", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
	_, err = NewTokenIssuer("secret", 0)
	assert.Error(t, err)
}

func TestExpirationDate(t *testing.T) {
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got, err := ExpirationDate(from, "7d")
	require.NoError(t, err)
	assert.Equal(t, from.AddDate(0, 0, 7), got)

	clock := &fakeClock{now: from}
	issuer := newTestIssuer(t, clock)
	assert.Equal(t, from.Add(time.Hour), issuer.ExpirationDate(0))
	assert.Equal(t, from.Add(time.Minute), issuer.ExpirationDate(time.Minute))

	_, err = ExpirationDate(from, "soon")
	assert.Error(t, err)
}

func TestParseTTL(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{"7d", 7 * 24 * time.Hour, true},
		{"2w", 14 * 24 * time.Hour, true},
		{"12h", 12 * time.Hour, true},
		{"90m", 90 * time.Minute, true},
		{"3600", time.Hour, true},
		{" 1D ", 24 * time.Hour, true},
		{"", 0, false},
		{"0", 0, false},
		{"-1h", 0, false},
		{"xd", 0, false},
		{"forever", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseTTL(tc.raw)
		if !tc.ok {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestCheckSecret(t *testing.T) {
	assert.ErrorIs(t, CheckSecret("", "development"), ErrMisconfiguredSecret)
	assert.ErrorIs(t, CheckSecret("", "production"), ErrMisconfiguredSecret)
	assert.NoError(t, CheckSecret(DevelopmentSecret, "development"))
	assert.NoError(t, CheckSecret(DevelopmentSecret, "test"))
	assert.ErrorIs(t, CheckSecret(DevelopmentSecret, "production"), ErrMisconfiguredSecret)
	assert.ErrorIs(t, CheckSecret(DevelopmentSecret, ""), ErrMisconfiguredSecret)
	assert.NoError(t, CheckSecret("a-real-secret", "production"))
}
