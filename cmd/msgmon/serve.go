package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"msgmon/internal/constants"
	"msgmon/internal/dashboard"
	"msgmon/pkg/metrics"
	"msgmon/pkg/ratelimit"
	"msgmon/pkg/tracing"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API, health and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			if err := app.Serve(ctx); err != nil {
				app.logger.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

// Serve runs the HTTP server next to the worker-cache maintenance loop until
// ctx is done or either fails.
func (a *App) Serve(ctx context.Context) error {
	metrics.RegisterAll()

	shutdownTracing, err := tracing.Setup(ctx, a.config.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			a.logger.ErrorwCtx(ctx, "Tracer provider shutdown error", "error", err)
		}
	}()

	opts := dashboard.RouterOptions{
		ServiceName: constants.DefaultServiceName,
		Tracing:     a.config.Tracing.Enabled,
		Health:      a.base.Health,
	}
	if rl := a.config.Dashboard.RateLimit; rl.Enabled {
		opts.Limiters = ratelimit.NewLimiters(ratelimit.FromConfig(rl))
		a.logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rl.RPS, "burst", rl.Burst)
	}

	router := dashboard.NewRouter(dashboard.NewHandler(a.service, a.logger), opts, a.logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.config.Server.ReadTimeout(),
		WriteTimeout: a.config.Server.WriteTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.InfowCtx(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	if opts.Limiters != nil {
		g.Go(func() error {
			opts.Limiters.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		a.maintain(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}

// maintain prunes expired workers and refreshes the monitor gauges once per
// heartbeat interval.
func (a *App) maintain(ctx context.Context) {
	interval := a.config.Worker.Heartbeat()
	if interval <= 0 {
		interval = constants.DefaultWorkerHeartbeat
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if pruned, err := a.base.Workers.Prune(ctx); err != nil {
			a.logger.WarnwCtx(ctx, "Failed to prune workers", "error", err)
		} else if pruned > 0 {
			a.logger.InfowCtx(ctx, "Pruned expired workers", "count", pruned)
		}

		if count, err := a.base.Workers.Count(ctx); err == nil {
			metrics.SetWorkersActive(count)
		}
		for _, view := range a.service.Transports(ctx, a.base.Transports.Countable()) {
			if view.Queued != nil {
				metrics.SetTransportQueuedMessages(view.Name, *view.Queued)
			}
		}
	}
}
