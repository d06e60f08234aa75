// Package memory holds the journal and settings in process memory. It is the
// reference backend for tests and the default for local runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"riskbook/internal/journal"
	"riskbook/internal/store"
)

var (
	_ store.JournalStore  = (*Store)(nil)
	_ store.SettingsStore = settingsView{}
)

type Store struct {
	mu       sync.RWMutex
	trades   map[string]map[string]journal.TradeRecord
	settings map[string]journal.DefaultSettings
	lastTS   time.Time
	base     journal.DefaultSettings

	tradeHub    *store.Hub[[]journal.TradeRecord]
	settingsHub *store.Hub[journal.DefaultSettings]
}

// New builds an empty store. base seeds a user's settings on their first
// Upsert.
func New(base journal.DefaultSettings) *Store {
	return &Store{
		trades:      make(map[string]map[string]journal.TradeRecord),
		settings:    make(map[string]journal.DefaultSettings),
		base:        base,
		tradeHub:    store.NewHub[[]journal.TradeRecord](),
		settingsHub: store.NewHub[journal.DefaultSettings](),
	}
}

// stamp returns a creation time that never runs backwards. Records created
// within the same clock instant get successive +1µs stamps, keeping the
// equity-curve replay order stable. Callers hold s.mu.
func (s *Store) stamp(now time.Time) time.Time {
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = now
	return now
}

func (s *Store) Create(_ context.Context, userID string, rec journal.TradeRecord) (journal.TradeRecord, error) {
	if err := rec.Validate(); err != nil {
		return journal.TradeRecord{}, err
	}
	s.mu.Lock()
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.stamp(time.Now().UTC())
	user := s.trades[userID]
	if user == nil {
		user = make(map[string]journal.TradeRecord)
		s.trades[userID] = user
	}
	user[rec.ID] = rec
	snapshot := s.listLocked(userID)
	s.mu.Unlock()

	s.tradeHub.Publish(userID, snapshot)
	return rec, nil
}

func (s *Store) Update(_ context.Context, userID, id string, patch journal.RecordPatch) (journal.TradeRecord, error) {
	s.mu.Lock()
	rec, ok := s.trades[userID][id]
	if !ok {
		s.mu.Unlock()
		return journal.TradeRecord{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if patch.Result != nil {
		if !patch.Result.Valid() {
			s.mu.Unlock()
			return journal.TradeRecord{}, fmt.Errorf("%w: result %q", journal.ErrInvalidRecord, *patch.Result)
		}
		rec.Result = *patch.Result
	}
	s.trades[userID][id] = rec
	snapshot := s.listLocked(userID)
	s.mu.Unlock()

	s.tradeHub.Publish(userID, snapshot)
	return rec, nil
}

func (s *Store) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	if _, ok := s.trades[userID][id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	delete(s.trades[userID], id)
	snapshot := s.listLocked(userID)
	s.mu.Unlock()

	s.tradeHub.Publish(userID, snapshot)
	return nil
}

func (s *Store) List(_ context.Context, userID string) ([]journal.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(userID), nil
}

func (s *Store) listLocked(userID string) []journal.TradeRecord {
	out := make([]journal.TradeRecord, 0, len(s.trades[userID]))
	for _, rec := range s.trades[userID] {
		out = append(out, rec)
	}
	journal.SortAscending(out)
	return out
}

// Subscribe primes the channel with the current set before any change lands.
func (s *Store) Subscribe(_ context.Context, userID string) (<-chan []journal.TradeRecord, func(), error) {
	ch, cancel := s.tradeHub.Subscribe(userID)
	s.mu.RLock()
	snapshot := s.listLocked(userID)
	s.mu.RUnlock()
	s.tradeHub.Publish(userID, snapshot)
	return ch, cancel, nil
}

func (s *Store) Get(_ context.Context, userID string) (journal.DefaultSettings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.settings[userID]
	return cfg, ok, nil
}

func (s *Store) Upsert(_ context.Context, userID string, patch journal.SettingsPatch) (journal.DefaultSettings, error) {
	s.mu.Lock()
	current, ok := s.settings[userID]
	if !ok {
		current = s.base
	}
	merged := current.Merge(patch)
	s.settings[userID] = merged
	s.mu.Unlock()

	s.settingsHub.Publish(userID, merged)
	return merged, nil
}

func (s *Store) SubscribeSettings(_ context.Context, userID string) (<-chan journal.DefaultSettings, func(), error) {
	ch, cancel := s.settingsHub.Subscribe(userID)
	s.mu.RLock()
	current, ok := s.settings[userID]
	s.mu.RUnlock()
	if ok {
		s.settingsHub.Publish(userID, current)
	}
	return ch, cancel, nil
}

func (s *Store) Close() error {
	s.tradeHub.Close()
	s.settingsHub.Close()
	return nil
}

// Settings exposes the store's SettingsStore face. Both faces share one lock
// and one lifetime.
func (s *Store) Settings() store.SettingsStore { return settingsView{s} }

type settingsView struct{ *Store }

func (v settingsView) Subscribe(ctx context.Context, userID string) (<-chan journal.DefaultSettings, func(), error) {
	return v.SubscribeSettings(ctx, userID)
}
