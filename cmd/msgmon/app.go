package main

import (
	"context"
	"fmt"
	"os"

	"msgmon/internal/config"
	"msgmon/internal/dashboard"
	"msgmon/internal/logger"
	"msgmon/pkg/bootstrap"
	"msgmon/pkg/logging"
)

// App is the loaded configuration plus the monitoring stack built from it.
type App struct {
	config  *config.Config
	logger  logger.Logger
	base    *bootstrap.Base
	service *dashboard.Service
}

func loadConfig() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}
	return cfg, log, nil
}

// newApp loads the config and builds every component. Callers must Close
// the app, even when newApp fails part way.
func newApp(ctx context.Context) (*App, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	base := bootstrap.NewBase(cfg, log)
	app := &App{config: cfg, logger: log, base: base}
	if err := base.Init(ctx); err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}

	app.service = dashboard.NewService(base.Storage, base.Workers, base.Transports, base.Schedules,
		dashboard.WithAlerts(base.Alerts))
	return app, nil
}

func (a *App) Close(ctx context.Context) {
	if err := a.base.Shutdown(ctx); err != nil {
		a.logger.ErrorwCtx(ctx, "Shutdown failed", "error", err)
	}
	_ = a.logger.Sync()
}
