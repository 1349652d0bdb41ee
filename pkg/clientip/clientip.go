package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// DefaultIP is returned when no usable address can be found on the request.
const DefaultIP = "127.0.0.1"

// headers are checked in priority order before falling back to RemoteAddr.
var headers = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// GetIP returns the canonical client IP of the request.
// Proxy headers are consulted first, then RemoteAddr. The result is normalized
// with Normalize so IPv6 loopback and IPv4-mapped forms collapse to IPv4.
func GetIP(r *http.Request) string {
	if r == nil {
		return DefaultIP
	}

	for _, h := range headers {
		value := r.Header.Get(h)
		if value == "" {
			continue
		}
		// X-Forwarded-For is "client, proxy1, proxy2"; the leftmost entry is the client.
		if h == "X-Forwarded-For" {
			value, _, _ = strings.Cut(value, ",")
		}
		if ip, ok := parse(value); ok {
			return ip
		}
	}

	if ip, ok := parse(r.RemoteAddr); ok {
		return ip
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return DefaultIP
}

// Normalize canonicalizes an IP string. IPv4-mapped IPv6 addresses are unmapped,
// the IPv6 loopback becomes 127.0.0.1 and IPv6 zones are dropped.
// Values that are not IP addresses are returned trimmed but otherwise unchanged.
func Normalize(raw string) string {
	if ip, ok := parse(raw); ok {
		return ip
	}
	return strings.TrimSpace(raw)
}

func parse(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "", false
	}
	addr = addr.WithZone("").Unmap()
	if addr.IsUnspecified() {
		return "", false
	}
	if addr == netip.IPv6Loopback() {
		return DefaultIP, true
	}
	return addr.String(), true
}
