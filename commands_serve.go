package main

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"library-circulation/internal/di"
	"library-circulation/internal/di/providers"
	"library-circulation/internal/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			injector := di.NewContainer(opts.flags)
			if err := di.Bootstrap(injector); err != nil {
				injector.Shutdown()
				return fmt.Errorf("failed to bootstrap server: %w", err)
			}

			log := do.MustInvoke[*logger.Logger](injector)
			manager := do.MustInvoke[*providers.ManagerHandle](injector)

			// Counts are reported, never repaired.
			if err := manager.CheckIntegrity(cmd.Context()); err != nil {
				log.Warn("Integrity check found problems", "error", err)
			}

			<-cmd.Context().Done()
			log.Info("Shutting down server gracefully...")

			if err := injector.Shutdown(); err != nil {
				log.Error("Shutdown error", "error", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.flags.Port, "port", "", "HTTP port (env SERVER_PORT, default 8080)")
	return cmd
}
