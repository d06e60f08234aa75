package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"riskbook/internal/journal"
)

func TestComputePerformanceEmptyJournal(t *testing.T) {
	t.Parallel()

	size := dec(t, "10000")
	curve := BuildEquityCurve(nil, size)
	perf := ComputePerformance(nil, curve, size)

	assert.Zero(t, perf.TotalTrades)
	assert.Zero(t, perf.Wins)
	assert.Zero(t, perf.LossesAndScratches)
	assert.Zero(t, perf.Pending)
	assert.Zero(t, perf.WinRate)
	assertDec(t, "0", perf.TotalProfitLoss)
	assertDec(t, "0", perf.MaxDrawdown)
	assert.Zero(t, perf.MaxDrawdownPercent)
	assertDec(t, "0", perf.ExpectedValue)
}

func TestComputePerformanceMixedJournal(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	// Realized P&L per trade: +195, +100, -105, -10; AMD stays pending.
	records := []journal.TradeRecord{
		closedRecord(t, "AAPL", journal.ResultWin, "100", "2", "5", base),
		closedRecord(t, "MSFT", journal.ResultWin, "50", "2", "0", base.Add(1*time.Hour)),
		closedRecord(t, "TSLA", journal.ResultLoss, "100", "2", "5", base.Add(2*time.Hour)),
		closedRecord(t, "NVDA", journal.ResultScratch, "80", "2", "10", base.Add(3*time.Hour)),
		closedRecord(t, "AMD", journal.ResultPending, "60", "2", "5", base.Add(4*time.Hour)),
	}
	size := dec(t, "10000")
	curve := BuildEquityCurve(records, size)
	perf := ComputePerformance(records, curve, size)

	assert.Equal(t, 5, perf.TotalTrades)
	assert.Equal(t, 2, perf.Wins)
	assert.Equal(t, 2, perf.LossesAndScratches)
	assert.Equal(t, 1, perf.Pending)
	assert.InDelta(t, 50.0, perf.WinRate, 1e-9)
	assertDec(t, "180", perf.TotalProfitLoss)
	// Walk peaks at 10295 then slides to 10180.
	assertDec(t, "115", perf.MaxDrawdown)
	assert.InDelta(t, 1.15, perf.MaxDrawdownPercent, 1e-9)
	assertDec(t, "45", perf.ExpectedValue)
}

func TestComputePerformanceAllPending(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []journal.TradeRecord{
		closedRecord(t, "AAPL", journal.ResultPending, "100", "2", "5", base),
	}
	size := dec(t, "10000")
	curve := BuildEquityCurve(records, size)
	perf := ComputePerformance(records, curve, size)

	assert.Equal(t, 1, perf.TotalTrades)
	assert.Equal(t, 1, perf.Pending)
	assert.Zero(t, perf.WinRate)
	assertDec(t, "0", perf.TotalProfitLoss)
	assertDec(t, "0", perf.ExpectedValue)
}

func TestComputePerformanceZeroAccountSizeGuard(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []journal.TradeRecord{
		closedRecord(t, "AAPL", journal.ResultLoss, "100", "2", "0", base),
	}
	size := dec(t, "0")
	curve := BuildEquityCurve(records, size)
	perf := ComputePerformance(records, curve, size)

	// Division guard: a zero baseline reports 0%, not a fault.
	assert.Zero(t, perf.MaxDrawdownPercent)
	assertDec(t, "-100", perf.TotalProfitLoss)
}

func TestComputePerformanceIdempotent(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []journal.TradeRecord{
		closedRecord(t, "AAPL", journal.ResultWin, "100", "2", "5", base),
		closedRecord(t, "TSLA", journal.ResultLoss, "100", "2", "5", base.Add(time.Hour)),
	}
	size := dec(t, "10000")
	curve := BuildEquityCurve(records, size)

	first := ComputePerformance(records, curve, size)
	second := ComputePerformance(records, curve, size)
	assert.Equal(t, first, second)
}
