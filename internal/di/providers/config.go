package providers

import (
	"os"

	"github.com/samber/do/v2"

	"library-circulation/internal/config"
	"library-circulation/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	flags, err := do.Invoke[config.Flags](i)
	if err != nil {
		flags = config.Flags{}
	}
	return config.Load(flags)
}

// ProvideLogger provides the structured logger. Logs go to stderr so command output
// on stdout stays clean.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Writer:      os.Stderr,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Debug("Configuration loaded",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"database", cfg.Database.Path,
		"loan_period_days", cfg.Circulation.LoanPeriodDays,
		"time_zone", cfg.Circulation.TimeZone,
	)

	return log, nil
}
