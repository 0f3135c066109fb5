// btcview serves a live BTC technical-analysis dashboard backed by an
// external analysis service.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/btcview/internal/backend"
	"github.com/rewired-gh/btcview/internal/config"
	"github.com/rewired-gh/btcview/internal/logger"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:           "btcview",
	Short:         "Live BTC technical-analysis view",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		configFile, _ := cmd.Flags().GetString("config")
		configFile = config.ConfigFileFromEnv(configFile)

		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			loaded.Logging.Level = level
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		logger.Init(cfg.Logging.Level, cfg.Logging.Format)
		if configFile != "" {
			logger.Debug("Configuration loaded from %s", configFile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (env BTCVIEW_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(notifyTestCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("btcview %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

func newBackend(c *config.Config) *backend.Client {
	return backend.NewClient(c.API.BaseURL, backend.ClientConfig{
		Timeout:         c.API.Timeout,
		MaxRetries:      c.API.MaxRetries,
		RetryDelayBase:  c.API.RetryDelayBase,
		MaxIdleConns:    c.API.MaxIdleConns,
		IdleConnTimeout: c.API.IdleConnTimeout,
	})
}
