package advisor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"riskbook/internal/logger"
	"riskbook/internal/pkg/circuit"
	"riskbook/internal/store/advisorylog"
)

const errorBackoff = 2 * time.Minute

// Fetcher is the client-side contract the service caches over.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string) (Snapshot, int, error)
}

// Recorder receives one entry per fetch outcome. Satisfied by
// *advisorylog.Log; nil disables recording.
type Recorder interface {
	Append(ctx context.Context, e advisorylog.Entry) error
}

type cacheEntry struct {
	snap      Snapshot
	err       error
	erroredAt time.Time
}

// Service caches advisory snapshots per ticker so repeated form edits do not
// hammer the upstream, and fronts the client with a circuit breaker.
type Service struct {
	client  Fetcher
	breaker *circuit.Breaker
	log     Recorder
	ttl     time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry

	// refreshMu serializes cache refreshes so a burst of misses for the same
	// ticker costs one upstream call.
	refreshMu sync.Mutex
}

func NewService(client Fetcher, breaker *circuit.Breaker, log Recorder, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		client:  client,
		breaker: breaker,
		log:     log,
		ttl:     ttl,
		cache:   make(map[string]cacheEntry),
	}
}

// Sentiment returns the cached snapshot for ticker, refreshing it when stale.
// Failures are cached briefly too, so a broken upstream is not retried on
// every keystroke.
func (s *Service) Sentiment(ctx context.Context, userID, ticker string) (Snapshot, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Snapshot{}, fmt.Errorf("%w: empty ticker", ErrUnavailable)
	}

	if snap, ok := s.fresh(ticker); ok {
		return snap, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another caller may have refreshed while this one waited.
	if snap, ok := s.fresh(ticker); ok {
		return snap, nil
	}
	if err, ok := s.recentError(ticker); ok {
		return Snapshot{}, err
	}

	if !s.breaker.Allow() {
		state, _ := s.breaker.Snapshot()
		err := fmt.Errorf("%w: advisory circuit %s", ErrUnavailable, state)
		s.record(ctx, advisorylog.Entry{
			User: userID, Ticker: ticker, Status: "breaker_open", Attempts: 0,
		})
		return Snapshot{}, err
	}

	start := time.Now()
	snap, attempts, err := s.client.Fetch(ctx, ticker)
	latency := time.Since(start)
	if err != nil {
		s.breaker.RecordFailure()
		s.mu.Lock()
		s.cache[ticker] = cacheEntry{err: err, erroredAt: time.Now()}
		s.mu.Unlock()
		logger.Warnf("[advisor] fetch %s failed after %d attempt(s): %v", ticker, attempts, err)
		s.record(ctx, advisorylog.Entry{
			User: userID, Ticker: ticker, Status: "error", Attempts: attempts,
			LatencyMS: latency.Milliseconds(), Error: err.Error(),
		})
		return Snapshot{}, err
	}

	s.breaker.RecordSuccess()
	s.mu.Lock()
	s.cache[ticker] = cacheEntry{snap: snap}
	s.mu.Unlock()
	logger.Infof("[advisor] sentiment for %s refreshed in %s (%d attempt(s))", ticker, latency.Round(time.Millisecond), attempts)
	s.record(ctx, advisorylog.Entry{
		User: userID, Ticker: ticker, Status: "ok", Attempts: attempts,
		LatencyMS: latency.Milliseconds(), Summary: snap.Summary,
	})
	return snap, nil
}

// BreakerState reports the circuit for the status endpoint.
func (s *Service) BreakerState() (string, int) {
	state, failures := s.breaker.Snapshot()
	return state.String(), failures
}

// Degraded reports whether advisory calls are currently failing fast.
func (s *Service) Degraded() bool {
	state, _ := s.breaker.Snapshot()
	return state == circuit.StateOpen
}

func (s *Service) fresh(ticker string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[ticker]
	if !ok || entry.err != nil {
		return Snapshot{}, false
	}
	if time.Since(entry.snap.FetchedAt) > s.ttl {
		return Snapshot{}, false
	}
	return entry.snap, true
}

func (s *Service) recentError(ticker string) (error, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[ticker]
	if !ok || entry.err == nil {
		return nil, false
	}
	if time.Since(entry.erroredAt) > errorBackoff {
		return nil, false
	}
	return entry.err, true
}

func (s *Service) record(ctx context.Context, e advisorylog.Entry) {
	if s.log == nil {
		return
	}
	if err := s.log.Append(ctx, e); err != nil {
		logger.Warnf("[advisor] recording fetch outcome failed: %v", err)
	}
}
