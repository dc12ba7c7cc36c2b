// Package commands implements the dittocache CLI.
package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittocache/internal/logger"
	"github.com/marmos91/dittocache/pkg/cache"
	"github.com/marmos91/dittocache/pkg/config"
	"github.com/marmos91/dittocache/pkg/metrics"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dittocache",
	Short: "dittocache - Persistent on-disk object cache",
	Long: `dittocache is a persistent, on-disk object cache: a keyed store for
opaque binary payloads bounded by a byte budget and an optional age limit.

Use "dittocache [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called by main.main().
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrf("Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dittocache/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(trimCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(serveCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("dittocache %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

// loadConfig loads configuration honoring the global --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openCache builds the cache instance described by the configuration.
func openCache(cfg *config.Config) (*cache.Cache, error) {
	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	return cache.New(cache.Options{
		Name:      cfg.Cache.Name,
		Root:      cfg.Cache.Root,
		ByteLimit: cfg.Cache.ByteLimit.Int64(),
		AgeLimit:  cfg.Cache.AgeLimit,
		TTL:       cfg.Cache.TTL,
		Metrics:   metrics.NewCacheMetrics(cfg.Cache.Name),
	})
}

// withCache loads configuration, opens the cache and runs fn, closing the
// cache afterwards so queued work drains.
func withCache(fn func(cfg *config.Config, c *cache.Cache) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer c.Close()

	return fn(cfg, c)
}

// formatAge renders a duration for table output, "none" for zero.
func formatAge(d time.Duration) string {
	if d == 0 {
		return "none"
	}
	return d.String()
}
