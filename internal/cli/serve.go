package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/project-kessel/remoteclaim/internal/config"
	"github.com/project-kessel/remoteclaim/internal/server"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the remoteclaim HTTP server",
		Long: `Start the remoteclaim HTTP server.

The server exposes:
  - POST /v1/tokens      issue tokens for a user session
  - GET  /healthz/live   liveness
  - GET  /healthz/ready  readiness
  - GET  /metrics        Prometheus metrics

Configuration precedence (highest to lowest):
  1. Command-line flags
  2. Environment variables (REMOTECLAIM_*)
  3. Configuration file (if --config or REMOTECLAIM_CONFIG is set)
  4. Built-in defaults

Examples:
  # Start with default settings
  remoteclaim serve

  # Override the port and log level
  remoteclaim serve --server-http-port 8081 --log-level debug

  # Use a config file
  remoteclaim serve --config /etc/remoteclaim/config.yaml`,
		RunE: runServe,
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	provider := config.NewProvider(cfg)
	logger := provider.Logger()

	serverCfg, err := provider.ServerConfig()
	if err != nil {
		return fmt.Errorf("failed to build components: %w", err)
	}

	srv := server.New(serverCfg)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	srv.SetReady()

	logger.Info("remoteclaim is running",
		"addr", srv.Addr().String(),
		"issuer_url", cfg.IssuerURL,
		"data_sources", len(cfg.DataSources),
		"hermetic", len(cfg.Fixtures) > 0,
		"config", configPath(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := srv.Stop(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
