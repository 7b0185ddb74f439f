// Package di provides dependency injection configuration for the circulation service.
package di

import (
	"github.com/samber/do/v2"

	"library-circulation/internal/config"
	"library-circulation/internal/di/providers"
	"library-circulation/internal/logger"
	"library-circulation/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
// Command-line flag values are registered first so ProvideConfig can honor them.
func NewContainer(flags config.Flags) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, flags)

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Domain
	do.Provide(injector, providers.ProvideManager)

	// HTTP
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes the services behind the HTTP API and starts listening.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.ManagerHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)

	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
