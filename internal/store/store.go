package store

import (
	"context"
	"errors"

	"riskbook/internal/journal"
)

// ErrNotFound is returned for operations on record IDs the store does not
// hold for the given user.
var ErrNotFound = errors.New("record not found")

// JournalStore persists one user's trade records. Implementations validate
// on create and never persist a malformed record. Subscribe delivers the full
// current set immediately and again after every change; the returned cancel
// releases the subscription.
type JournalStore interface {
	Create(ctx context.Context, userID string, rec journal.TradeRecord) (journal.TradeRecord, error)
	Update(ctx context.Context, userID, id string, patch journal.RecordPatch) (journal.TradeRecord, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string) ([]journal.TradeRecord, error)
	Subscribe(ctx context.Context, userID string) (<-chan []journal.TradeRecord, func(), error)
	Close() error
}

// SettingsStore persists one user's account-level defaults. Upsert merges the
// patch onto the stored snapshot, creating it from the configured baseline
// when the user has never saved before.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (journal.DefaultSettings, bool, error)
	Upsert(ctx context.Context, userID string, patch journal.SettingsPatch) (journal.DefaultSettings, error)
	Subscribe(ctx context.Context, userID string) (<-chan journal.DefaultSettings, func(), error)
	Close() error
}
