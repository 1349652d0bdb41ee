package fingerprint_test

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionguard/pkg/fingerprint"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	base := fingerprint.Components{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)",
		AcceptLanguage: "en-US,en;q=0.9",
		AcceptEncoding: "gzip, deflate, br",
		IP:             "10.0.0.5",
	}

	t.Run("generates consistent fingerprint for same input", func(t *testing.T) {
		t.Parallel()
		fp1 := fingerprint.Generate(base)
		fp2 := fingerprint.Generate(base)

		assert.Equal(t, fp1, fp2)
		assert.Len(t, fp1, fingerprint.Length)
		assert.Regexp(t, "^[a-f0-9]{64}$", fp1)
	})

	t.Run("hashes pipe joined fields in fixed order", func(t *testing.T) {
		t.Parallel()
		sum := sha256.Sum256([]byte(base.UserAgent + "|" + base.AcceptLanguage + "|" + base.AcceptEncoding + "|" + base.IP))
		assert.Equal(t, hex.EncodeToString(sum[:]), fingerprint.Generate(base))
	})

	t.Run("empty fields keep their position", func(t *testing.T) {
		t.Parallel()
		a := fingerprint.Generate(fingerprint.Components{UserAgent: "ua", IP: "1.1.1.1"})
		b := fingerprint.Generate(fingerprint.Components{UserAgent: "ua", AcceptLanguage: "1.1.1.1"})
		assert.NotEqual(t, a, b)

		sum := sha256.Sum256([]byte("|||"))
		assert.Equal(t, hex.EncodeToString(sum[:]), fingerprint.Generate(fingerprint.Components{}))
	})

	t.Run("different ip produces different fingerprint", func(t *testing.T) {
		t.Parallel()
		other := base
		other.IP = "203.0.113.9"
		assert.NotEqual(t, fingerprint.Generate(base), fingerprint.Generate(other))
	})
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/dashboard", nil)
	r.RemoteAddr = "[::ffff:10.0.0.5]:5000"
	r.Header.Set("User-Agent", "TestBot/1.0")
	r.Header.Set("Accept-Language", "en")
	r.Header.Set("Accept-Encoding", "gzip")

	c := fingerprint.FromRequest(r)
	assert.Equal(t, fingerprint.Components{
		UserAgent:      "TestBot/1.0",
		AcceptLanguage: "en",
		AcceptEncoding: "gzip",
		IP:             "10.0.0.5",
	}, c)
	assert.Equal(t, fingerprint.Generate(c), fingerprint.Request(r))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	c := fingerprint.Components{UserAgent: "ua", IP: "10.0.0.1"}
	stored := fingerprint.Generate(c)

	t.Run("match", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, fingerprint.Validate(c, stored))
	})

	t.Run("mismatch", func(t *testing.T) {
		t.Parallel()
		changed := c
		changed.UserAgent = "other"
		assert.ErrorIs(t, fingerprint.Validate(changed, stored), fingerprint.ErrMismatch)
	})

	t.Run("invalid format", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, fingerprint.Validate(c, "v1:abc"), fingerprint.ErrInvalidFingerprint)
		bad := stored[:fingerprint.Length-1] + "z"
		assert.ErrorIs(t, fingerprint.Validate(c, bad), fingerprint.ErrInvalidFingerprint)
	})
}
