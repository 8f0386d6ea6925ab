// Package httpd runs the validation HTTP server.
package httpd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/north-identity/reconvalidator/cmd/common"
	"github.com/north-identity/reconvalidator/internal/api"
	"github.com/north-identity/reconvalidator/internal/logger"
)

const shutdownTimeout = 30 * time.Second

// Command returns the httpd subcommand.
func Command(opts *common.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Run the validation HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
}

func run(ctx context.Context, opts *common.Options) error {
	deps, err := common.Build(*opts)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Logger.Sync() }()

	server := api.NewServer(
		deps.Config.Server,
		deps.Orchestrator,
		deps.Store,
		deps.Config.Validation,
		deps.Logger,
		deps.Registry,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	deps.Logger.Info("shutting down", logger.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
