package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"msgmon/internal/config"
	"msgmon/internal/logger"
	"msgmon/pkg/bootstrap"
	"msgmon/pkg/logging"
)

var configFile string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := demoOptions{}

	cmd := &cobra.Command{
		Use:   "demo-worker",
		Short: "Run a watermill worker that records its history with msgmon",
		Long: "Publishes demo messages to an in-process watermill channel and consumes them with\n" +
			"the monitoring middleware, so msgmon status, snapshot and serve have data to show.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
			}
			cfg, err := config.Load(configFile)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			base := bootstrap.NewBase(cfg, log)
			defer func() {
				if err := base.Shutdown(context.Background()); err != nil {
					log.ErrorwCtx(ctx, "Shutdown failed", "error", err)
				}
			}()
			if err := base.Init(ctx); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}

			log.InfowCtx(ctx, "Starting demo worker", "interval", opts.interval, "fail_every", opts.failEvery)
			return newDemo(base, opts).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to config file (defaults to CONFIG_FILE)")
	cmd.Flags().DurationVar(&opts.interval, "interval", time.Second, "Delay between published messages")
	cmd.Flags().IntVar(&opts.failEvery, "fail-every", 5, "Fail every n-th report (0 never fails)")
	cmd.Flags().IntVar(&opts.scheduleEvery, "schedule-every", 10, "Trigger every configured schedule task every n intervals")
	return cmd
}
