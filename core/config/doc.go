// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package loads a .env file on first use and uses the caarlos0/env library
// for parsing environment variables into struct fields.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/sessionguard/core/config"
//
//	type SessionConfig struct {
//		RetentionHours int `env:"SESSION_RETENTION_HOURS" envDefault:"24"`
//		MaxConcurrent  int `env:"SESSION_MAX_CONCURRENT" envDefault:"5"`
//	}
//
//	func main() {
//		var cfg SessionConfig
//		config.MustLoad(&cfg)
//	}
//
// # Caching Behavior
//
// Each configuration type is parsed only once per process; different types are
// cached independently. Nested structs are parsed as part of their parent.
package config
