package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/utafrali/PoiCatalog/pkg/logger"
	"github.com/utafrali/PoiCatalog/services/poi/internal/config"
)

var logLevel string

// rootCmd is the base command called without any subcommands.
var rootCmd = &cobra.Command{
	Use:          "poictl",
	Short:        "Poi catalog maintenance CLI",
	Long:         "Applies schema migrations, recomputes popularity scores and issues tokens. Configuration comes from the same environment as the server.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// loadConfig reads the server configuration and builds a logger that writes
// to stderr so command output on stdout stays machine readable.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewWithWriter("poictl", logLevel, os.Stderr), nil
}
