package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/dmitrymomot/sessionguard/pkg/clientip"
)

// Length is the length of a fingerprint string: hex encoding of a SHA-256 sum.
const Length = sha256.Size * 2

// Components are the client signals a fingerprint is derived from.
// Missing values hash as empty strings.
type Components struct {
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	IP             string
}

// Generate returns the hex SHA-256 digest of the components joined with "|"
// in the fixed order user-agent, accept-language, accept-encoding, ip.
//
// Empty components are kept so every field holds its position in the input.
// The pipe delimiter prevents ["ab", "c"] and ["a", "bc"] producing the same hash.
func Generate(c Components) string {
	combined := strings.Join([]string{
		c.UserAgent,
		c.AcceptLanguage,
		c.AcceptEncoding,
		c.IP,
	}, "|")
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// FromRequest extracts the fingerprint components of an HTTP request.
// The IP is resolved through proxy headers and normalized by clientip.
func FromRequest(r *http.Request) Components {
	return Components{
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
		IP:             clientip.GetIP(r),
	}
}

// Request is shorthand for Generate(FromRequest(r)).
func Request(r *http.Request) string {
	return Generate(FromRequest(r))
}

// Validate compares the fingerprint of c with a stored fingerprint.
// Returns nil if they match, ErrInvalidFingerprint if the stored value is not a
// well-formed digest, or ErrMismatch otherwise.
//
// A mismatch is advisory only: callers record drift, they do not reject on it.
func Validate(c Components, stored string) error {
	if len(stored) != Length {
		return ErrInvalidFingerprint
	}
	if _, err := hex.DecodeString(stored); err != nil {
		return ErrInvalidFingerprint
	}
	if Generate(c) == stored {
		return nil
	}
	return ErrMismatch
}
