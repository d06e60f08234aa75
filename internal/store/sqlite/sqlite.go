// Package sqlite persists the journal in a local SQLite file through GORM.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"riskbook/internal/journal"
	"riskbook/internal/logger"
	"riskbook/internal/store"
)

var (
	_ store.JournalStore  = (*Store)(nil)
	_ store.SettingsStore = settingsView{}
)

type tradeRow struct {
	ID               string          `gorm:"primaryKey;size:64"`
	UserID           string          `gorm:"index:idx_trades_user;size:64;not null"`
	Ticker           string          `gorm:"size:32;not null"`
	MaxShares        int64           `gorm:"not null"`
	EntryPrice       decimal.Decimal `gorm:"type:numeric;not null"`
	ATRStopDistance  decimal.Decimal `gorm:"type:numeric;not null"`
	TotalRiskAmount  decimal.Decimal `gorm:"type:numeric;not null"`
	TotalCost        decimal.Decimal `gorm:"type:numeric;not null"`
	NetRisk          decimal.Decimal `gorm:"type:numeric;not null"`
	NetGain          decimal.Decimal `gorm:"type:numeric;not null"`
	TargetRMultiple  decimal.Decimal `gorm:"type:numeric;not null"`
	SentimentText    string          `gorm:"type:text"`
	SentimentSources datatypes.JSON  `gorm:"type:json"`
	Result           string          `gorm:"size:16;not null"`
	CreatedAt        time.Time       `gorm:"index:idx_trades_user;not null"`
}

func (tradeRow) TableName() string { return "trade_records" }

type settingsRow struct {
	UserID          string          `gorm:"primaryKey;size:64"`
	AccountSize     decimal.Decimal `gorm:"type:numeric;not null"`
	RiskPercent     decimal.Decimal `gorm:"type:numeric;not null"`
	TargetRMultiple decimal.Decimal `gorm:"type:numeric;not null"`
	TotalTradeCost  decimal.Decimal `gorm:"type:numeric;not null"`
	UpdatedAt       time.Time
}

func (settingsRow) TableName() string { return "user_settings" }

type Store struct {
	db     *gorm.DB
	mu     sync.Mutex
	lastTS time.Time
	base   journal.DefaultSettings

	tradeHub    *store.Hub[[]journal.TradeRecord]
	settingsHub *store.Hub[journal.DefaultSettings]
}

// Open creates the database file (and its directory) if needed, migrates the
// schema and caps the pool small: SQLite serializes writers anyway.
func Open(path string, base journal.DefaultSettings) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite dir failed: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	if err := db.AutoMigrate(&tradeRow{}, &settingsRow{}); err != nil {
		return nil, fmt.Errorf("migrating sqlite schema failed: %w", err)
	}
	logger.Infof("[store] sqlite journal open at %s", path)
	return &Store{
		db:          db,
		base:        base,
		tradeHub:    store.NewHub[[]journal.TradeRecord](),
		settingsHub: store.NewHub[journal.DefaultSettings](),
	}, nil
}

// stamp keeps creation times strictly increasing per process, matching the
// memory backend. Callers hold s.mu.
func (s *Store) stamp(now time.Time) time.Time {
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = now
	return now
}

func (s *Store) Create(ctx context.Context, userID string, rec journal.TradeRecord) (journal.TradeRecord, error) {
	if err := rec.Validate(); err != nil {
		return journal.TradeRecord{}, err
	}
	s.mu.Lock()
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.stamp(time.Now().UTC())
	s.mu.Unlock()

	row, err := toRow(userID, rec)
	if err != nil {
		return journal.TradeRecord{}, err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return journal.TradeRecord{}, fmt.Errorf("inserting trade failed: %w", err)
	}
	s.publishTrades(ctx, userID)
	return rec, nil
}

func (s *Store) Update(ctx context.Context, userID, id string, patch journal.RecordPatch) (journal.TradeRecord, error) {
	var row tradeRow
	err := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return journal.TradeRecord{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return journal.TradeRecord{}, fmt.Errorf("loading trade failed: %w", err)
	}
	if patch.Result != nil {
		if !patch.Result.Valid() {
			return journal.TradeRecord{}, fmt.Errorf("%w: result %q", journal.ErrInvalidRecord, *patch.Result)
		}
		row.Result = string(*patch.Result)
		if err := s.db.WithContext(ctx).Model(&tradeRow{}).
			Where("user_id = ? AND id = ?", userID, id).
			Update("result", row.Result).Error; err != nil {
			return journal.TradeRecord{}, fmt.Errorf("updating trade failed: %w", err)
		}
	}
	rec, err := fromRow(row)
	if err != nil {
		return journal.TradeRecord{}, err
	}
	s.publishTrades(ctx, userID)
	return rec, nil
}

func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&tradeRow{})
	if res.Error != nil {
		return fmt.Errorf("deleting trade failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	s.publishTrades(ctx, userID)
	return nil
}

func (s *Store) List(ctx context.Context, userID string) ([]journal.TradeRecord, error) {
	var rows []tradeRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing trades failed: %w", err)
	}
	out := make([]journal.TradeRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, userID string) (<-chan []journal.TradeRecord, func(), error) {
	ch, cancel := s.tradeHub.Subscribe(userID)
	snapshot, err := s.List(ctx, userID)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	s.tradeHub.Publish(userID, snapshot)
	return ch, cancel, nil
}

func (s *Store) publishTrades(ctx context.Context, userID string) {
	snapshot, err := s.List(ctx, userID)
	if err != nil {
		logger.Warnf("[store] snapshot after write failed: %v", err)
		return
	}
	s.tradeHub.Publish(userID, snapshot)
}

func (s *Store) Get(ctx context.Context, userID string) (journal.DefaultSettings, bool, error) {
	var row settingsRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return journal.DefaultSettings{}, false, nil
	}
	if err != nil {
		return journal.DefaultSettings{}, false, fmt.Errorf("loading settings failed: %w", err)
	}
	return journal.DefaultSettings{
		AccountSize:     row.AccountSize,
		RiskPercent:     row.RiskPercent,
		TargetRMultiple: row.TargetRMultiple,
		TotalTradeCost:  row.TotalTradeCost,
	}, true, nil
}

func (s *Store) Upsert(ctx context.Context, userID string, patch journal.SettingsPatch) (journal.DefaultSettings, error) {
	current, ok, err := s.Get(ctx, userID)
	if err != nil {
		return journal.DefaultSettings{}, err
	}
	if !ok {
		current = s.base
	}
	merged := current.Merge(patch)
	row := settingsRow{
		UserID:          userID,
		AccountSize:     merged.AccountSize,
		RiskPercent:     merged.RiskPercent,
		TargetRMultiple: merged.TargetRMultiple,
		TotalTradeCost:  merged.TotalTradeCost,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return journal.DefaultSettings{}, fmt.Errorf("saving settings failed: %w", err)
	}
	s.settingsHub.Publish(userID, merged)
	return merged, nil
}

func (s *Store) SubscribeSettings(ctx context.Context, userID string) (<-chan journal.DefaultSettings, func(), error) {
	ch, cancel := s.settingsHub.Subscribe(userID)
	current, ok, err := s.Get(ctx, userID)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if ok {
		s.settingsHub.Publish(userID, current)
	}
	return ch, cancel, nil
}

func (s *Store) Close() error {
	s.tradeHub.Close()
	s.settingsHub.Close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Settings exposes the store's SettingsStore face over the same database.
func (s *Store) Settings() store.SettingsStore { return settingsView{s} }

type settingsView struct{ *Store }

func (v settingsView) Subscribe(ctx context.Context, userID string) (<-chan journal.DefaultSettings, func(), error) {
	return v.SubscribeSettings(ctx, userID)
}

func toRow(userID string, rec journal.TradeRecord) (tradeRow, error) {
	row := tradeRow{
		ID:              rec.ID,
		UserID:          userID,
		Ticker:          rec.Ticker,
		MaxShares:       rec.MaxShares,
		EntryPrice:      rec.EntryPrice,
		ATRStopDistance: rec.ATRStopDistance,
		TotalRiskAmount: rec.TotalRiskAmount,
		TotalCost:       rec.TotalCost,
		NetRisk:         rec.NetRisk,
		NetGain:         rec.NetGain,
		TargetRMultiple: rec.TargetRMultiple,
		SentimentText:   rec.SentimentText,
		Result:          string(rec.Result),
		CreatedAt:       rec.CreatedAt,
	}
	if len(rec.SentimentSources) > 0 {
		raw, err := json.Marshal(rec.SentimentSources)
		if err != nil {
			return tradeRow{}, fmt.Errorf("encoding sentiment sources failed: %w", err)
		}
		row.SentimentSources = datatypes.JSON(raw)
	}
	return row, nil
}

func fromRow(row tradeRow) (journal.TradeRecord, error) {
	rec := journal.TradeRecord{
		ID:              row.ID,
		Ticker:          row.Ticker,
		MaxShares:       row.MaxShares,
		EntryPrice:      row.EntryPrice,
		ATRStopDistance: row.ATRStopDistance,
		TotalRiskAmount: row.TotalRiskAmount,
		TotalCost:       row.TotalCost,
		NetRisk:         row.NetRisk,
		NetGain:         row.NetGain,
		TargetRMultiple: row.TargetRMultiple,
		SentimentText:   row.SentimentText,
		Result:          journal.Result(row.Result),
		CreatedAt:       row.CreatedAt.UTC(),
	}
	if len(row.SentimentSources) > 0 {
		if err := json.Unmarshal(row.SentimentSources, &rec.SentimentSources); err != nil {
			return journal.TradeRecord{}, fmt.Errorf("decoding sentiment sources failed: %w", err)
		}
	}
	return rec, nil
}
