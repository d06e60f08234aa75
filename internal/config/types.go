package config

import "strings"

// Config is the root configuration for riskbook.
type Config struct {
	App     AppConfig     `toml:"app"`
	Store   StoreConfig   `toml:"store"`
	Advisor AdvisorConfig `toml:"advisor"`
	Journal JournalConfig `toml:"journal"`
	Presets PresetsConfig `toml:"presets"`
}

type AppConfig struct {
	Env         string `toml:"env"`
	LogLevel    string `toml:"log_level"`
	LogPath     string `toml:"log_path"`
	HTTPAddr    string `toml:"http_addr"`
	DefaultUser string `toml:"default_user"`
}

// StoreConfig selects the journal/settings backend and its paths.
type StoreConfig struct {
	Backend     string          `toml:"backend"` // memory | sqlite | firestore
	SQLitePath  string          `toml:"sqlite_path"`
	AdvisoryLog string          `toml:"advisory_log_path"`
	Firestore   FirestoreConfig `toml:"firestore"`
}

type FirestoreConfig struct {
	CredentialsFile string `toml:"credentials_file"`
	ProjectID       string `toml:"project_id"`
}

// AdvisorConfig describes the sentiment advisory upstream.
type AdvisorConfig struct {
	Enabled         bool          `toml:"enabled"`
	BaseURL         string        `toml:"base_url"`
	APIKey          string        `toml:"api_key"`
	Model           string        `toml:"model"`
	TimeoutSeconds  int           `toml:"timeout_seconds"`
	MaxRetries      int           `toml:"max_retries"`
	CacheTTLSeconds int           `toml:"cache_ttl_seconds"`
	Breaker         BreakerConfig `toml:"breaker"`
}

type BreakerConfig struct {
	Threshold       int `toml:"threshold"`
	CooldownSeconds int `toml:"cooldown_seconds"`
}

// JournalConfig holds the account-level defaults used before a user saves
// their own settings.
type JournalConfig struct {
	AccountSize     float64 `toml:"account_size"`
	RiskPercent     float64 `toml:"risk_percent"`
	TargetRMultiple float64 `toml:"target_r_multiple"`
	TotalTradeCost  float64 `toml:"total_trade_cost"`
}

type PresetsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// keySet tracks which config paths were explicitly set in the file, so
// defaults never clobber a deliberate zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

// fieldDefault describes one field's defaulting rule.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
