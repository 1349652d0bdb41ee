package fingerprint

import "errors"

var (
	// ErrInvalidFingerprint means the stored value is not a hex SHA-256 digest,
	// typically a row written before fingerprints were recorded.
	ErrInvalidFingerprint = errors.New("invalid fingerprint format")

	// ErrMismatch means the request hashes to a different fingerprint.
	// Browser updates and network changes cause it too, so treat it as a signal only.
	ErrMismatch = errors.New("fingerprint mismatch")
)
