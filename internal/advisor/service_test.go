package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskbook/internal/pkg/circuit"
	"riskbook/internal/store/advisorylog"
)

type stubFetcher struct {
	calls int
	snap  Snapshot
	err   error
}

func (f *stubFetcher) Fetch(_ context.Context, ticker string) (Snapshot, int, error) {
	f.calls++
	if f.err != nil {
		return Snapshot{}, 3, f.err
	}
	snap := f.snap
	snap.Ticker = ticker
	snap.FetchedAt = time.Now().UTC()
	return snap, 1, nil
}

type captureLog struct {
	entries []advisorylog.Entry
}

func (c *captureLog) Append(_ context.Context, e advisorylog.Entry) error {
	c.entries = append(c.entries, e)
	return nil
}

func newTestService(f Fetcher, log Recorder) *Service {
	return NewService(f, circuit.NewBreaker("advisor", 1, time.Minute), log, time.Minute)
}

func TestSentimentCachesPerTicker(t *testing.T) {
	fetcher := &stubFetcher{snap: Snapshot{Summary: "Bullish."}}
	log := &captureLog{}
	svc := newTestService(fetcher, log)
	ctx := context.Background()

	first, err := svc.Sentiment(ctx, "u1", "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", first.Ticker)

	second, err := svc.Sentiment(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, 1, fetcher.calls, "second call must hit the cache")

	_, err = svc.Sentiment(ctx, "u1", "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)

	require.Len(t, log.entries, 2)
	assert.Equal(t, "ok", log.entries[0].Status)
	assert.Equal(t, 1, log.entries[0].Attempts)
}

func TestSentimentErrorBackoff(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("upstream down")}
	svc := newTestService(fetcher, nil)
	ctx := context.Background()

	_, err := svc.Sentiment(ctx, "u1", "AAPL")
	require.Error(t, err)

	// The cached failure answers the second call; the upstream is left alone.
	_, err = svc.Sentiment(ctx, "u1", "AAPL")
	require.Error(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestSentimentFailsFastWhenBreakerOpen(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("upstream down")}
	log := &captureLog{}
	svc := newTestService(fetcher, log)
	ctx := context.Background()

	_, err := svc.Sentiment(ctx, "u1", "AAPL")
	require.Error(t, err)
	assert.True(t, svc.Degraded())

	// A different ticker misses the error cache but hits the open circuit.
	_, err = svc.Sentiment(ctx, "u1", "MSFT")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, fetcher.calls)

	require.Len(t, log.entries, 2)
	assert.Equal(t, "error", log.entries[0].Status)
	assert.Equal(t, "breaker_open", log.entries[1].Status)
}

func TestSentimentRejectsEmptyTicker(t *testing.T) {
	svc := newTestService(&stubFetcher{}, nil)
	_, err := svc.Sentiment(context.Background(), "u1", "   ")
	require.ErrorIs(t, err, ErrUnavailable)
}
