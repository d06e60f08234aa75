package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"riskbook/internal/config"
	"riskbook/internal/journal"
	"riskbook/internal/store/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			LogLevel:    "info",
			HTTPAddr:    ":0",
			DefaultUser: "local",
		},
		Store: config.StoreConfig{Backend: "memory"},
		Journal: config.JournalConfig{
			AccountSize:     10000,
			RiskPercent:     1,
			TargetRMultiple: 2,
			TotalTradeCost:  5,
		},
	}
}

func TestBuildMemoryBackend(t *testing.T) {
	application, err := NewAppBuilder(testConfig()).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, application.Server())

	srv := httptest.NewServer(application.Server().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "mongodb"
	_, err := NewAppBuilder(cfg).Build(context.Background())
	require.ErrorContains(t, err, "unknown store backend")
}

func TestBuildUsesInjectedStores(t *testing.T) {
	called := false
	builder := NewAppBuilder(testConfig(), WithStores(
		func(_ context.Context, _ *config.Config, defaults journal.DefaultSettings) (storeSetup, error) {
			called = true
			mem := memory.New(defaults)
			return storeSetup{journal: mem, settings: mem.Settings()}, nil
		}))
	application, err := builder.Build(context.Background())
	require.NoError(t, err)
	require.True(t, called)
	require.NotNil(t, application.Server())
}
