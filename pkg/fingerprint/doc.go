// Package fingerprint derives advisory device fingerprints for session drift detection.
//
// A fingerprint is the hex SHA-256 digest of the User-Agent, Accept-Language,
// Accept-Encoding and client IP, pipe-joined in that order. It is stable for a
// given set of inputs and never used as a security boundary on its own.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/sessionguard/pkg/fingerprint"
//
//	fp := fingerprint.Request(r)
//
//	// Or from already-resolved signals
//	fp := fingerprint.Generate(fingerprint.Components{
//		UserAgent:      rc.UserAgent,
//		AcceptLanguage: rc.AcceptLanguage,
//		AcceptEncoding: rc.AcceptEncoding,
//		IP:             rc.ClientIP,
//	})
//
//	// Later
//	if err := fingerprint.Validate(components, stored); errors.Is(err, fingerprint.ErrMismatch) {
//		// record drift
//	}
//
// # Security Notes
//
// Device fingerprinting has inherent limitations:
//   - IP addresses change (mobile networks, VPN usage)
//   - Browser updates modify User-Agent strings
//   - Users can modify or block headers
//
// Treat a mismatch as a signal feeding risk scoring, not as proof of hijacking.
package fingerprint
