package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"riskbook/internal/advisor"
	"riskbook/internal/config"
	"riskbook/internal/journal"
	"riskbook/internal/logger"
	"riskbook/internal/pkg/circuit"
	"riskbook/internal/preset"
	"riskbook/internal/store"
	"riskbook/internal/store/advisorylog"
	"riskbook/internal/store/firestore"
	"riskbook/internal/store/memory"
	"riskbook/internal/store/sqlite"
	apihttp "riskbook/internal/transport/http/api"
)

// storeSetup bundles the two store faces of whichever backend was selected.
type storeSetup struct {
	journal  store.JournalStore
	settings store.SettingsStore
}

// AppBuilder assembles the App. Every constructor is a swappable func so
// tests can inject fakes without touching the wiring order.
type AppBuilder struct {
	cfg *config.Config

	storesFn      func(context.Context, *config.Config, journal.DefaultSettings) (storeSetup, error)
	advisoryLogFn func(config.StoreConfig) (*advisorylog.Log, error)
	advisorFn     func(config.AdvisorConfig, advisor.Recorder) *advisor.Service
	presetsFn     func(config.PresetsConfig) (*preset.Registry, error)
	serverFn      func(apihttp.ServerConfig) (*apihttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		storesFn:      buildStores,
		advisoryLogFn: buildAdvisoryLog,
		advisorFn:     buildAdvisor,
		presetsFn:     buildPresets,
		serverFn:      apihttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	defaults := configuredDefaults(cfg.Journal)

	stores, err := b.storesFn(ctx, cfg, defaults)
	if err != nil {
		return nil, err
	}

	var advLog *advisorylog.Log
	var advSvc *advisor.Service
	if cfg.Advisor.Enabled {
		advLog, err = b.advisoryLogFn(cfg.Store)
		if err != nil {
			return nil, err
		}
		var recorder advisor.Recorder
		if advLog != nil {
			recorder = advLog
		}
		advSvc = b.advisorFn(cfg.Advisor, recorder)
	} else {
		logger.Infof("[app] sentiment advisory disabled; records will carry the fallback text")
	}

	var presets *preset.Registry
	if cfg.Presets.Enabled {
		presets, err = b.presetsFn(cfg.Presets)
		if err != nil {
			return nil, fmt.Errorf("loading presets failed: %w", err)
		}
	}

	server, err := b.serverFn(apihttp.ServerConfig{
		Addr:        cfg.App.HTTPAddr,
		Backend:     cfg.Store.Backend,
		DefaultUser: cfg.App.DefaultUser,
		Defaults:    defaults,
		Journal:     stores.journal,
		Settings:    stores.settings,
		Advisor:     advSvc,
		Presets:     presets,
		AdvisoryLog: advLog,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:         cfg,
		journal:     stores.journal,
		settings:    stores.settings,
		advisoryLog: advLog,
		presets:     presets,
		server:      server,
	}, nil
}

func configuredDefaults(j config.JournalConfig) journal.DefaultSettings {
	return journal.DefaultSettings{
		AccountSize:     decimal.NewFromFloat(j.AccountSize),
		RiskPercent:     decimal.NewFromFloat(j.RiskPercent),
		TargetRMultiple: decimal.NewFromFloat(j.TargetRMultiple),
		TotalTradeCost:  decimal.NewFromFloat(j.TotalTradeCost),
	}
}

func buildStores(ctx context.Context, cfg *config.Config, defaults journal.DefaultSettings) (storeSetup, error) {
	switch cfg.Store.Backend {
	case "memory":
		mem := memory.New(defaults)
		logger.Infof("[app] using the in-memory store; records do not survive a restart")
		return storeSetup{journal: mem, settings: mem.Settings()}, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.Store.SQLitePath, defaults)
		if err != nil {
			return storeSetup{}, fmt.Errorf("opening the sqlite store failed: %w", err)
		}
		return storeSetup{journal: db, settings: db.Settings()}, nil
	case "firestore":
		fs, err := firestore.New(ctx, cfg.Store.Firestore.ProjectID, cfg.Store.Firestore.CredentialsFile, defaults)
		if err != nil {
			return storeSetup{}, fmt.Errorf("opening the firestore store failed: %w", err)
		}
		return storeSetup{journal: fs, settings: fs.Settings()}, nil
	default:
		return storeSetup{}, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildAdvisoryLog(cfg config.StoreConfig) (*advisorylog.Log, error) {
	if cfg.AdvisoryLog == "" {
		return nil, nil
	}
	l, err := advisorylog.Open(cfg.AdvisoryLog)
	if err != nil {
		return nil, fmt.Errorf("opening the advisory log failed: %w", err)
	}
	return l, nil
}

func buildAdvisor(cfg config.AdvisorConfig, recorder advisor.Recorder) *advisor.Service {
	client := &advisor.Client{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.MaxRetries,
	}
	breaker := circuit.NewBreaker("advisor",
		cfg.Breaker.Threshold,
		time.Duration(cfg.Breaker.CooldownSeconds)*time.Second)
	return advisor.NewService(client, breaker, recorder,
		time.Duration(cfg.CacheTTLSeconds)*time.Second)
}

func buildPresets(cfg config.PresetsConfig) (*preset.Registry, error) {
	return preset.NewRegistry(cfg.Path)
}

func WithStores(fn func(context.Context, *config.Config, journal.DefaultSettings) (storeSetup, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.storesFn = fn
		}
	}
}

func WithAdvisor(fn func(config.AdvisorConfig, advisor.Recorder) *advisor.Service) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.advisorFn = fn
		}
	}
}

func WithPresets(fn func(config.PresetsConfig) (*preset.Registry, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.presetsFn = fn
		}
	}
}

func WithServer(fn func(apihttp.ServerConfig) (*apihttp.Server, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.serverFn = fn
		}
	}
}
