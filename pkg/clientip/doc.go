// Package clientip extracts real client IP addresses from HTTP requests.
//
// Session drift detection compares the IP recorded at login with the IP of every
// later request, so the value must be stable across equivalent notations. This
// package resolves the client address through proxy headers and canonicalizes it.
//
// # Header Priority
//
// The package checks headers in this specific order:
//  1. CF-Connecting-IP (Cloudflare)
//  2. DO-Connecting-IP (DigitalOcean)
//  3. X-Forwarded-For (leftmost entry)
//  4. X-Real-IP (nginx and other proxies)
//  5. RemoteAddr (direct connection)
//
// Malformed header values are skipped and the next source is tried.
//
// # Normalization
//
// Every address goes through Normalize:
//
//	clientip.Normalize("::1")              // "127.0.0.1"
//	clientip.Normalize("::ffff:10.0.0.5")  // "10.0.0.5"
//	clientip.Normalize("[2001:db8::1]:443") // "2001:db8::1"
//
// The unspecified addresses 0.0.0.0 and :: are rejected as header values.
//
// # Usage
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		ip := clientip.GetIP(r)
//		log.Info("request", logger.ClientIP(ip))
//	}
//
// GetIP never panics. When nothing parses it returns the raw RemoteAddr, or
// DefaultIP when RemoteAddr is empty.
package clientip
