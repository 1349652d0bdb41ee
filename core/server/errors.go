package server

import "errors"

var (
	// ErrMissingAddress is returned by NewFromConfig when HTTP_ADDR is empty.
	ErrMissingAddress = errors.New("server address is required")
	// ErrServerAlreadyRunning is returned by Start on a running server.
	ErrServerAlreadyRunning = errors.New("server is already running")
	// ErrListen wraps the error of binding the listen address.
	ErrListen = errors.New("failed to listen on server address")
	// ErrHTTPShutdown wraps errors from graceful shutdown.
	ErrHTTPShutdown = errors.New("HTTP shutdown error")
)
