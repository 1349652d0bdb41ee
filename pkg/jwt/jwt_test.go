package jwt_test

import (
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionguard/pkg/jwt"
)

const key = "0123456789abcdef0123456789abcdef"

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := jwt.NewFromString("short")
	require.ErrorIs(t, err, jwt.ErrInvalidSigningKey)

	svc, err := jwt.NewFromString(key)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc, err := jwt.NewFromString(key, jwt.WithIssuer("sessionguard"), jwt.WithClock(clock))
	require.NoError(t, err)

	token, err := svc.Issue("oncall", time.Hour)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		var claims jwt.StandardClaims
		require.NoError(t, svc.Parse(token, &claims))
		assert.Equal(t, "oncall", claims.Subject)
		assert.Equal(t, "sessionguard", claims.Issuer)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		later, err := jwt.NewFromString(key, jwt.WithIssuer("sessionguard"),
			jwt.WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
		require.NoError(t, err)
		var claims jwt.StandardClaims
		require.ErrorIs(t, later.Parse(token, &claims), jwt.ErrExpiredToken)
	})

	t.Run("other key", func(t *testing.T) {
		t.Parallel()
		other, err := jwt.NewFromString(strings.Repeat("x", 32), jwt.WithIssuer("sessionguard"), jwt.WithClock(clock))
		require.NoError(t, err)
		var claims jwt.StandardClaims
		require.ErrorIs(t, other.Parse(token, &claims), jwt.ErrInvalidSignature)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		t.Parallel()
		other, err := jwt.NewFromString(key, jwt.WithIssuer("someone-else"), jwt.WithClock(clock))
		require.NoError(t, err)
		var claims jwt.StandardClaims
		require.ErrorIs(t, other.Parse(token, &claims), jwt.ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		t.Parallel()
		forever, err := svc.Generate(jwt.StandardClaims{Subject: "oncall", Issuer: "sessionguard"})
		require.NoError(t, err)
		var claims jwt.StandardClaims
		require.ErrorIs(t, svc.Parse(forever, &claims), jwt.ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		t.Parallel()
		unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, jwt.StandardClaims{
			Subject:   "oncall",
			Issuer:    "sessionguard",
			ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
		}).SignedString(gojwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		var claims jwt.StandardClaims
		require.ErrorIs(t, svc.Parse(unsigned, &claims), jwt.ErrInvalidSignature)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		var claims jwt.StandardClaims
		require.ErrorIs(t, svc.Parse("not.a.token", &claims), jwt.ErrInvalidToken)
	})
}
