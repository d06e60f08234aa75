package advisorylog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "advisory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendAndRecent(t *testing.T) {
	l := openLog(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, Entry{
		User: "u1", Ticker: "AAPL", Status: "ok", Attempts: 1, LatencyMS: 240,
		Summary: "Coverage skews positive.",
	}))
	require.NoError(t, l.Append(ctx, Entry{
		User: "u1", Ticker: "TSLA", Status: "error", Attempts: 3, LatencyMS: 9000,
		Error: "upstream returned 503",
	}))

	entries, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, "TSLA", entries[0].Ticker)
	assert.Equal(t, "error", entries[0].Status)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Equal(t, "AAPL", entries[1].Ticker)
	assert.False(t, entries[1].Timestamp.IsZero())
}

func TestRecentHonorsLimit(t *testing.T) {
	l := openLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(ctx, Entry{
			User: "u1", Ticker: "AAPL", Status: "ok", Attempts: 1,
			Timestamp: time.Now().UTC(),
		}))
	}
	entries, err := l.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSummaryIsExcerpted(t *testing.T) {
	l := openLog(t)
	ctx := context.Background()

	long := strings.Repeat("sentiment ", 60)
	require.NoError(t, l.Append(ctx, Entry{User: "u1", Ticker: "AAPL", Status: "ok", Attempts: 1, Summary: long}))

	entries, err := l.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.LessOrEqual(t, len(entries[0].Summary), summaryExcerptLimit+len("..."))
}
