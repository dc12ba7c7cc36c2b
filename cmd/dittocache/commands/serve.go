package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittocache/internal/logger"
	"github.com/marmos91/dittocache/pkg/api"
	"github.com/marmos91/dittocache/pkg/cache"
	"github.com/marmos91/dittocache/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cache over HTTP",
	Long: `Serve the cache over HTTP.

Endpoints include object reads and writes under /v1/objects/{key}, key
listing, stats, trims, a liveness probe and (when metrics are enabled) the
Prometheus exposition endpoint.

Examples:
  # Serve with the default configuration
  dittocache serve

  # Override the port
  DITTOCACHE_SERVER_PORT=9000 dittocache serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(func(cfg *config.Config, c *cache.Cache) error {
			server := api.NewServer(api.Config{
				Port:            cfg.Server.Port,
				ReadTimeout:     cfg.Server.ReadTimeout,
				WriteTimeout:    cfg.Server.WriteTimeout,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
			}, c)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			go func() {
				<-sigChan
				logger.Info("Shutdown signal received, initiating graceful shutdown")
				cancel()
			}()

			logger.Info("Serving cache",
				"name", c.Name(),
				"dir", c.Dir(),
				"port", cfg.Server.Port,
				"metrics", cfg.Metrics.Enabled)

			return server.Start(ctx)
		})
	},
}
