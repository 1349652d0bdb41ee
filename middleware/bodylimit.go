package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Common size constants for convenience
const (
	// KB represents 1 kilobyte
	KB int64 = 1024
	// MB represents 1 megabyte
	MB = 1024 * KB
)

// BodyLimitConfig configures the request body limit middleware.
type BodyLimitConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(r *http.Request) bool

	// MaxSize is the maximum allowed size in bytes (default: 1MB)
	MaxSize int64
}

// BodyLimit caps request bodies at maxSize bytes.
func BodyLimit(maxSize int64) func(http.Handler) http.Handler {
	return BodyLimitWithConfig(BodyLimitConfig{MaxSize: maxSize})
}

// BodyLimitWithConfig rejects requests whose declared length exceeds the limit
// with 413 and wraps the body in http.MaxBytesReader for the rest.
func BodyLimitWithConfig(cfg BodyLimitConfig) func(http.Handler) http.Handler {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = MB
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			if n := r.ContentLength; n > cfg.MaxSize {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": fmt.Sprintf("Request body too large. Size: %s, Maximum allowed: %s",
						formatBytes(n), formatBytes(cfg.MaxSize)),
					"limit": cfg.MaxSize,
				})
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// formatBytes formats bytes into a human-readable string
func formatBytes(bytes int64) string {
	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
