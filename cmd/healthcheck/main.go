// Command healthcheck runs the Health Check engine: the HTTP API with its background
// reminder scheduler, and one-shot scans, reminder passes, test data, clears and
// migrations from the command line.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "healthcheck",
		Short:         "Scan hospitality sites for data problems and drive their remediation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"Path to a YAML config file (environment variables use the HEALTHCHECK_ prefix)")

	rootCmd.AddCommand(
		newServeCmd(),
		newScanCmd(),
		newRemindCmd(),
		newGenerateCmd(),
		newClearCmd(),
		newMigrateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("healthcheck failed")
		stop()
		os.Exit(1)
	}
}
