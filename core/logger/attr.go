package logger

import (
	"log/slog"
	"time"
)

// Helpers that may receive an empty value return the zero slog.Attr, which
// slog drops, so log.Info("msg", logger.Error(err)) needs no nil check.

// Group nests attrs under name.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// ============================================================================
// Error Handling
// ============================================================================

// Error creates an attribute for a single error under the key "error".
// Returns empty Attr for nil errors, enabling safe usage without nil checks.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// ============================================================================
// Timing
// ============================================================================

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed logs the time since start under "elapsed".
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// RequestID creates an attribute for HTTP request IDs.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// ============================================================================
// Network and HTTP
// ============================================================================

// Method creates an attribute for HTTP methods.
func Method(method string) slog.Attr {
	return slog.String("method", method)
}

// Path creates an attribute for URL paths.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// StatusCode creates an attribute for HTTP status codes.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// ClientIP creates an attribute for client IP addresses.
func ClientIP(ip string) slog.Attr {
	return slog.String("client_ip", ip)
}

// UserAgent creates an attribute for user agent strings.
func UserAgent(ua string) slog.Attr {
	return slog.String("user_agent", ua)
}

// ============================================================================
// Generic Metadata
// ============================================================================

// Component creates an attribute for component names.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event creates an attribute for event names.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Action names an operator action for audit logs.
func Action(action string) slog.Attr {
	return slog.String("action", action)
}

// Result creates an attribute for an operation outcome, e.g. "terminated" or "not_found".
func Result(result string) slog.Attr {
	return slog.String("result", result)
}

// Count creates a generic counter attribute.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Key creates a generic key-value attribute.
func Key(key string, value any) slog.Attr {
	if value == nil {
		return slog.Attr{}
	}
	return slog.Any(key, value)
}

// RetryCount creates an attribute for retry attempts.
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// ============================================================================
// Sessions
// ============================================================================

// SessionID creates an attribute for a session identifier.
// Only the first 12 characters are logged; the full id is a bearer credential.
func SessionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return slog.String("session_id", id)
}

// Username creates an attribute for a username.
func Username(name string) slog.Attr {
	return slog.String("username", name)
}

// RiskScore creates an attribute for a session risk score.
func RiskScore(score int) slog.Attr {
	return slog.Int("risk_score", score)
}

// Reason creates an attribute for a termination or rejection reason.
func Reason(reason string) slog.Attr {
	if reason == "" {
		return slog.Attr{}
	}
	return slog.String("reason", reason)
}

// Status creates an attribute for a session status.
func Status(status string) slog.Attr {
	return slog.String("status", status)
}
