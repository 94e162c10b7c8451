package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "msgmon",
		Short:         "Monitor message queue workers, transports and processing history",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (defaults to CONFIG_FILE)")

	rootCmd.AddCommand(
		serveCmd(),
		statusCmd(),
		snapshotCmd(),
		purgeCmd(),
		schedulePurgeCmd(),
		migrateCmd(),
		tailCmd(),
	)
	return rootCmd
}
