// Package logger provides structured logging utilities built on Go's standard slog package.
//
// # Basic Usage
//
//	import "github.com/dmitrymomot/sessionguard/core/logger"
//
//	log := logger.New(logger.WithDevelopment("sessiond"))
//	log := logger.New(logger.WithProduction("sessiond"), logger.WithLevel(slog.LevelWarn))
//
//	log.Info("session created",
//		logger.Component("session"),
//		logger.SessionID(id),
//		logger.Username(name),
//		logger.RiskScore(score),
//	)
//
// # Context-Aware Logging
//
// Extractors add request-scoped attributes to every *Context call:
//
//	log := logger.New(
//		logger.WithProduction("sessiond"),
//		logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	log.InfoContext(ctx, "validated")
//
// # Nil Safety
//
// Attribute helpers return an empty slog.Attr for nil or empty input, which slog
// omits, so logger.Error(err) needs no nil check.
//
// SessionID truncates the identifier to a short prefix because a full session
// id is a bearer credential.
package logger
