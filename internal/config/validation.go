package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Advisor.validate(); err != nil {
		return err
	}
	if err := c.Journal.validate(); err != nil {
		return err
	}
	if err := c.Presets.validate(); err != nil {
		return err
	}
	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Backend {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(s.SQLitePath) == "" {
			return fmt.Errorf("store.sqlite_path cannot be empty for the sqlite backend")
		}
	case "firestore":
		if strings.TrimSpace(s.Firestore.ProjectID) == "" {
			return fmt.Errorf("store.firestore.project_id is required for the firestore backend")
		}
	default:
		return fmt.Errorf("store.backend must be memory, sqlite or firestore, got %q", s.Backend)
	}
	return nil
}

func (a *AdvisorConfig) validate() error {
	if !a.Enabled {
		return nil
	}
	if strings.TrimSpace(a.BaseURL) == "" {
		return fmt.Errorf("advisor.base_url cannot be empty when the advisor is enabled")
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("advisor.model cannot be empty when the advisor is enabled")
	}
	if a.MaxRetries > 10 {
		return fmt.Errorf("advisor.max_retries must be <= 10")
	}
	return nil
}

func (j *JournalConfig) validate() error {
	if j.AccountSize <= 0 {
		return fmt.Errorf("journal.account_size must be > 0")
	}
	if j.RiskPercent <= 0 || j.RiskPercent > 100 {
		return fmt.Errorf("journal.risk_percent must be in (0, 100]")
	}
	if j.TargetRMultiple < 0.5 {
		return fmt.Errorf("journal.target_r_multiple must be >= 0.5")
	}
	if j.TotalTradeCost < 0 {
		return fmt.Errorf("journal.total_trade_cost must be >= 0")
	}
	return nil
}

func (p *PresetsConfig) validate() error {
	if p.Enabled && strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("presets.path cannot be empty when presets are enabled")
	}
	return nil
}
