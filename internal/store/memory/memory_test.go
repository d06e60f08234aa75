package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskbook/internal/journal"
	"riskbook/internal/store"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func record(t *testing.T, ticker string) journal.TradeRecord {
	t.Helper()
	return journal.TradeRecord{
		Ticker:          ticker,
		MaxShares:       10,
		EntryPrice:      dec(t, "50"),
		ATRStopDistance: dec(t, "2"),
		TotalRiskAmount: dec(t, "100"),
		TotalCost:       dec(t, "5"),
		TargetRMultiple: dec(t, "2"),
		SentimentText:   journal.SentimentUnavailable,
		Result:          journal.ResultPending,
	}
}

func TestCreateAssignsIDAndTimestamp(t *testing.T) {
	s := New(journal.DefaultSettings{})
	defer s.Close()

	created, err := s.Create(context.Background(), "u1", record(t, "AAPL"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreateRejectsMalformed(t *testing.T) {
	s := New(journal.DefaultSettings{})
	defer s.Close()

	bad := record(t, "AAPL")
	bad.MaxShares = 0
	_, err := s.Create(context.Background(), "u1", bad)
	require.ErrorIs(t, err, journal.ErrInvalidRecord)

	records, err := s.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTimestampsAreStrictlyIncreasing(t *testing.T) {
	s := New(journal.DefaultSettings{})
	defer s.Close()
	ctx := context.Background()

	var prev time.Time
	for i := 0; i < 50; i++ {
		created, err := s.Create(ctx, "u1", record(t, "AAPL"))
		require.NoError(t, err)
		assert.True(t, created.CreatedAt.After(prev), "iteration %d", i)
		prev = created.CreatedAt
	}
}

func TestListIsAscendingAndIsolatedPerUser(t *testing.T) {
	s := New(journal.DefaultSettings{})
	defer s.Close()
	ctx := context.Background()

	first, err := s.Create(ctx, "u1", record(t, "AAPL"))
	require.NoError(t, err)
	second, err := s.Create(ctx, "u1", record(t, "MSFT"))
	require.NoError(t, err)
	_, err = s.Create(ctx, "u2", record(t, "TSLA"))
	require.NoError(t, err)

	records, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.ID, records[0].ID)
	assert.Equal(t, second.ID, records[1].ID)
}

func TestUpdateResultOnly(t *testing.T) {
	s := New(journal.DefaultSettings{})
	defer s.Close()
	ctx := context.Background()

	created, err := s.Create(ctx, "u1", record(t, "AAPL"))
	require.NoError(t, err)

	win := journal.ResultWin
	updated, err := s.Update(ctx, "u1", created.ID, journal.RecordPatch{Result: &win})
	require.NoError(t, err)
	assert.Equal(t, journal.ResultWin, updated.Result)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	bad := journal.Result("Maybe")
	_, err = s.Update(ctx, "u1", created.ID, journal.RecordPatch{Result: &bad})
	require.ErrorIs(t, err, journal.ErrInvalidRecord)

	_, err = s.Update(ctx, "u1", "missing", journal.RecordPatch{Result: &win})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := New(journal.DefaultSettings{})
	defer s.Close()
	ctx := context.Background()

	created, err := s.Create(ctx, "u1", record(t, "AAPL"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "u1", created.ID))
	assert.ErrorIs(t, s.Delete(ctx, "u1", created.ID), store.ErrNotFound)
}

func TestSubscribeEmitsInitialAndChangedSnapshots(t *testing.T) {
	s := New(journal.DefaultSettings{})
	defer s.Close()
	ctx := context.Background()

	ch, cancel, err := s.Subscribe(ctx, "u1")
	require.NoError(t, err)
	defer cancel()

	initial := waitSnapshot(t, ch)
	assert.Empty(t, initial)

	created, err := s.Create(ctx, "u1", record(t, "AAPL"))
	require.NoError(t, err)

	next := waitSnapshot(t, ch)
	require.Len(t, next, 1)
	assert.Equal(t, created.ID, next[0].ID)
}

func TestSubscribeLatestSnapshotWins(t *testing.T) {
	s := New(journal.DefaultSettings{})
	defer s.Close()
	ctx := context.Background()

	ch, cancel, err := s.Subscribe(ctx, "u1")
	require.NoError(t, err)
	defer cancel()

	// Nobody reads while three records land; the subscriber must still see
	// the final state, not a stale intermediate.
	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, "u1", record(t, "AAPL"))
		require.NoError(t, err)
	}
	final := waitSnapshot(t, ch)
	assert.Len(t, final, 3)
}

func TestSettingsUpsertMergesOntoBase(t *testing.T) {
	base := journal.DefaultSettings{
		AccountSize:     dec(t, "10000"),
		RiskPercent:     dec(t, "1"),
		TargetRMultiple: dec(t, "2"),
		TotalTradeCost:  dec(t, "5"),
	}
	s := New(base)
	defer s.Close()
	ctx := context.Background()
	settings := s.Settings()

	_, ok, err := settings.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	size := dec(t, "25000")
	merged, err := settings.Upsert(ctx, "u1", journal.SettingsPatch{AccountSize: &size})
	require.NoError(t, err)
	assert.True(t, merged.AccountSize.Equal(size))
	assert.True(t, merged.RiskPercent.Equal(base.RiskPercent))

	got, ok, err := settings.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.AccountSize.Equal(size))
}

func waitSnapshot(t *testing.T, ch <-chan []journal.TradeRecord) []journal.TradeRecord {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}
