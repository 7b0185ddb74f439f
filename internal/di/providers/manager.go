package providers

import (
	"github.com/samber/do/v2"

	"library-circulation/internal/config"
	"library-circulation/internal/logger"
	"library-circulation/library"
)

// ManagerHandle wraps the library manager with shutdown capability.
type ManagerHandle struct {
	*library.LibraryManager
}

// Shutdown implements do.Shutdownable.
func (h *ManagerHandle) Shutdown() error {
	return h.Close()
}

// ProvideManager opens the database and builds the circulation manager.
func ProvideManager(i do.Injector) (*ManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	mgr, err := library.NewLibraryManager(cfg.Database.Path,
		library.WithLoanPolicy(library.NewLoanPolicy(cfg.Circulation.LoanPeriodDays)),
		library.WithLocation(cfg.Circulation.Location),
		library.WithLogger(log.Logger),
	)
	if err != nil {
		return nil, err
	}

	log.Debug("Database initialized", "path", cfg.Database.Path)
	return &ManagerHandle{LibraryManager: mgr}, nil
}
