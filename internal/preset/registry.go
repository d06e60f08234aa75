// Package preset serves named account-parameter presets from a YAML file,
// hot-reloading it on change. A preset applied to a user's settings fills all
// four account-level fields in one call.
package preset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"riskbook/internal/journal"
	"riskbook/internal/logger"
)

// presetSchema gates every entry before it reaches the API. An entry that
// fails validation is skipped and logged, never fatal.
const presetSchema = `{
	"type": "object",
	"properties": {
		"description": {"type": "string"},
		"account_size": {"type": "number", "exclusiveMinimum": 0},
		"risk_percent": {"type": "number", "exclusiveMinimum": 0, "maximum": 100},
		"target_r_multiple": {"type": "number", "minimum": 0.5},
		"total_trade_cost": {"type": "number", "minimum": 0}
	},
	"required": ["account_size", "risk_percent", "target_r_multiple", "total_trade_cost"],
	"additionalProperties": false
}`

// Preset is one named set of account parameters.
type Preset struct {
	ID              string  `json:"id"`
	Description     string  `json:"description,omitempty"`
	AccountSize     float64 `json:"accountSize"`
	RiskPercent     float64 `json:"riskPercent"`
	TargetRMultiple float64 `json:"targetRMultiple"`
	TotalTradeCost  float64 `json:"totalTradeCost"`
}

// Patch renders the preset as a settings patch filling all four fields.
func (p Preset) Patch() journal.SettingsPatch {
	size := decimal.NewFromFloat(p.AccountSize)
	risk := decimal.NewFromFloat(p.RiskPercent)
	target := decimal.NewFromFloat(p.TargetRMultiple)
	cost := decimal.NewFromFloat(p.TotalTradeCost)
	return journal.SettingsPatch{
		AccountSize:     &size,
		RiskPercent:     &risk,
		TargetRMultiple: &target,
		TotalTradeCost:  &cost,
	}
}

// Snapshot is the current preset set; Version bumps on every reload.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Presets  map[string]Preset
}

// List returns the presets ordered by ID.
func (s Snapshot) List() []Preset {
	out := make([]Preset, 0, len(s.Presets))
	for _, p := range s.Presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type ChangeListener func(Snapshot)

// Registry loads the preset file and watches it for edits.
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("preset registry requires a path")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("preset.json", strings.NewReader(presetSchema)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("preset.json")
	if err != nil {
		return nil, fmt.Errorf("compiling preset schema failed: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading preset file failed: %w", err)
	}
	r := &Registry{path: path, v: v, schema: schema}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("[preset] reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns a copy of the current preset set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Preset looks up one preset by ID.
func (r *Registry) Preset(id string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Presets[strings.TrimSpace(id)]
	return p, ok
}

// OnChange registers a listener invoked after each successful reload.
func (r *Registry) OnChange(fn ChangeListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

type fileConfig struct {
	Presets map[string]map[string]any `yaml:"presets"`
}

func (r *Registry) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("reading preset file failed: %w", err)
	}
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("parsing preset file failed: %w", err)
	}

	presets := make(map[string]Preset, len(cfg.Presets))
	for name, fields := range cfg.Presets {
		id := strings.TrimSpace(name)
		if id == "" {
			continue
		}
		if err := r.schema.Validate(normalizeForSchema(fields)); err != nil {
			logger.Warnf("[preset] skipping %q: %v", id, err)
			continue
		}
		presets[id] = Preset{
			ID:              id,
			Description:     stringField(fields, "description"),
			AccountSize:     numberField(fields, "account_size"),
			RiskPercent:     numberField(fields, "risk_percent"),
			TargetRMultiple: numberField(fields, "target_r_multiple"),
			TotalTradeCost:  numberField(fields, "total_trade_cost"),
		}
	}

	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now().UTC(),
		Presets:  presets,
	}
	r.mu.Unlock()
	logger.Infof("[preset] loaded %d preset(s) from %s", len(presets), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer safeRecover("preset listener")
			cb(snap)
		}(fn)
	}
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Presets:  make(map[string]Preset, len(src.Presets)),
	}
	for id, p := range src.Presets {
		dst.Presets[id] = p
	}
	return dst
}

func safeRecover(tag string) {
	if rec := recover(); rec != nil {
		logger.Errorf("[preset] %s panic: %v", tag, rec)
	}
}

// normalizeForSchema round-trips the decoded YAML map through JSON types so
// the schema sees plain float64 numbers regardless of what yaml.v3 produced.
func normalizeForSchema(fields map[string]any) any {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fields
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return fields
	}
	return out
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return strings.TrimSpace(s)
}

func numberField(fields map[string]any, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
