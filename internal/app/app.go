// Package app wires configuration, stores, the advisory service and the HTTP
// server into one runnable unit.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"riskbook/internal/config"
	"riskbook/internal/logger"
	"riskbook/internal/preset"
	"riskbook/internal/store"
	"riskbook/internal/store/advisorylog"
	apihttp "riskbook/internal/transport/http/api"
)

type App struct {
	cfg *config.Config

	journal     store.JournalStore
	settings    store.SettingsStore
	advisoryLog *advisorylog.Log
	presets     *preset.Registry
	server      *apihttp.Server
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run serves until ctx is cancelled, then closes the stores.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.closeStores()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Server exposes the HTTP server (for test harnesses).
func (a *App) Server() *apihttp.Server {
	if a == nil {
		return nil
	}
	return a.server
}

func (a *App) closeStores() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warnf("[app] closing journal store failed: %v", err)
		}
	}
	if a.advisoryLog != nil {
		if err := a.advisoryLog.Close(); err != nil {
			logger.Warnf("[app] closing advisory log failed: %v", err)
		}
	}
}
