// Command fluxcast trains and serves weekly customer-flow forecasts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fluxcast",
		Short: "Weekly customer-flow forecasting for retail outlets",
		Long: `Trains one SARIMAX model per outlet on weekly counts and weather,
calendar and holiday features, and forecasts future weeks with empirical
confidence bounds.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(weeksCmd())
	rootCmd.AddCommand(aggregateHistoryCmd())
	rootCmd.AddCommand(updateWeatherCmd())
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(trainAllCmd())
	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sectorsCmd())
	rootCmd.AddCommand(outletsCmd())
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
