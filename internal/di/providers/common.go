// Package providers contains the samber/do providers wired by package di.
package providers

import "time"

const (
	// shutdownTimeout bounds graceful shutdown of the HTTP server.
	shutdownTimeout = 30 * time.Second
)
