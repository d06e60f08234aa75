package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":8780"
	defaultAppLogPath  = "data/logs/riskbook.log"
	defaultAppUser     = "local"

	defaultStoreBackend  = "memory"
	defaultSQLitePath    = "data/db/riskbook.db"
	defaultAdvisoryLog   = "data/db/advisory_log.db"
	defaultAdvisorURL    = "https://api.openai.com/v1"
	defaultAdvisorModel  = "gpt-4o-mini"
	defaultAdvisorWait   = 30
	defaultAdvisorRetry  = 3
	defaultAdvisorTTL    = 300
	defaultBreakerTrip   = 3
	defaultBreakerPause  = 60
	defaultAccountSize   = 10000
	defaultRiskPercent   = 1.0
	defaultTargetR       = 2.0
	defaultTradeCost     = 5.0
	defaultPresetsPath   = "configs/presets.yaml"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Advisor.applyDefaults(keys)
	c.Journal.applyDefaults(keys)
	c.Presets.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.default_user", &a.DefaultUser, defaultAppUser),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.backend", &s.Backend, defaultStoreBackend),
		stringFieldDefault("store.sqlite_path", &s.SQLitePath, defaultSQLitePath),
		stringFieldDefault("store.advisory_log_path", &s.AdvisoryLog, defaultAdvisoryLog),
	)
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
}

func (a *AdvisorConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("advisor.base_url", &a.BaseURL, defaultAdvisorURL),
		stringFieldDefault("advisor.model", &a.Model, defaultAdvisorModel),
		fieldDefault{
			key:   "advisor.timeout_seconds",
			need:  func() bool { return a.TimeoutSeconds <= 0 },
			apply: func() { a.TimeoutSeconds = defaultAdvisorWait },
		},
		fieldDefault{
			key:   "advisor.max_retries",
			need:  func() bool { return a.MaxRetries <= 0 },
			apply: func() { a.MaxRetries = defaultAdvisorRetry },
		},
		fieldDefault{
			key:   "advisor.cache_ttl_seconds",
			need:  func() bool { return a.CacheTTLSeconds <= 0 },
			apply: func() { a.CacheTTLSeconds = defaultAdvisorTTL },
		},
		fieldDefault{
			key:   "advisor.breaker.threshold",
			need:  func() bool { return a.Breaker.Threshold <= 0 },
			apply: func() { a.Breaker.Threshold = defaultBreakerTrip },
		},
		fieldDefault{
			key:   "advisor.breaker.cooldown_seconds",
			need:  func() bool { return a.Breaker.CooldownSeconds <= 0 },
			apply: func() { a.Breaker.CooldownSeconds = defaultBreakerPause },
		},
	)
}

func (j *JournalConfig) applyDefaults(keys keySet) {
	if j == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "journal.account_size",
			need:  func() bool { return j.AccountSize <= 0 },
			apply: func() { j.AccountSize = defaultAccountSize },
		},
		fieldDefault{
			key:   "journal.risk_percent",
			need:  func() bool { return j.RiskPercent <= 0 },
			apply: func() { j.RiskPercent = defaultRiskPercent },
		},
		fieldDefault{
			key:   "journal.target_r_multiple",
			need:  func() bool { return j.TargetRMultiple <= 0 },
			apply: func() { j.TargetRMultiple = defaultTargetR },
		},
		fieldDefault{
			key:   "journal.total_trade_cost",
			need:  func() bool { return j.TotalTradeCost < 0 },
			apply: func() { j.TotalTradeCost = defaultTradeCost },
		},
	)
}

func (p *PresetsConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("presets.path", &p.Path, defaultPresetsPath),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
