package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskbook/internal/journal"
)

func closedRecord(t *testing.T, ticker string, result journal.Result, risk, targetR, cost string, at time.Time) journal.TradeRecord {
	t.Helper()
	return journal.TradeRecord{
		ID:              ticker + at.Format("150405.000"),
		Ticker:          ticker,
		MaxShares:       10,
		EntryPrice:      dec(t, "100"),
		ATRStopDistance: dec(t, "1"),
		TotalRiskAmount: dec(t, risk),
		TotalCost:       dec(t, cost),
		TargetRMultiple: dec(t, targetR),
		Result:          result,
		CreatedAt:       at,
	}
}

func TestBuildEquityCurveSingleWin(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []journal.TradeRecord{
		closedRecord(t, "AAPL", journal.ResultWin, "100", "2", "5", base),
	}
	curve := BuildEquityCurve(records, dec(t, "10000"))

	require.Len(t, curve.Points, 2)
	assert.Equal(t, 0, curve.Points[0].TradeNumber)
	assertDec(t, "10000", curve.Points[0].Equity)
	assert.Equal(t, 1, curve.Points[1].TradeNumber)
	assertDec(t, "10195", curve.Points[1].Equity)
	assertDec(t, "195", curve.Points[1].RealizedGain)
	assertDec(t, "10195", curve.Points[1].HighWaterMark)
	assert.Equal(t, "AAPL", curve.Points[1].Ticker)
	assertDec(t, "0", curve.MaxDrawdown)
}

func TestBuildEquityCurveWinThenLoss(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []journal.TradeRecord{
		closedRecord(t, "AAPL", journal.ResultWin, "100", "2", "5", base),
		closedRecord(t, "TSLA", journal.ResultLoss, "100", "2", "5", base.Add(time.Hour)),
	}
	curve := BuildEquityCurve(records, dec(t, "10000"))

	require.Len(t, curve.Points, 3)
	assertDec(t, "10195", curve.Points[1].Equity)
	assertDec(t, "10090", curve.Points[2].Equity)
	assertDec(t, "-105", curve.Points[2].RealizedGain)
	assertDec(t, "10195", curve.Points[2].HighWaterMark)
	assertDec(t, "105", curve.MaxDrawdown)
}

func TestBuildEquityCurveEmptyJournal(t *testing.T) {
	t.Parallel()

	curve := BuildEquityCurve(nil, dec(t, "10000"))
	assert.Empty(t, curve.Points)
	assertDec(t, "0", curve.MaxDrawdown)
}

func TestBuildEquityCurveAllPending(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []journal.TradeRecord{
		closedRecord(t, "AAPL", journal.ResultPending, "100", "2", "5", base),
		closedRecord(t, "TSLA", journal.ResultPending, "50", "2", "0", base.Add(time.Hour)),
	}
	curve := BuildEquityCurve(records, dec(t, "10000"))

	// Pending trades contribute nothing, but a non-empty journal still gets
	// its synthetic starting point.
	require.Len(t, curve.Points, 1)
	assert.Equal(t, 0, curve.Points[0].TradeNumber)
	assertDec(t, "10000", curve.Points[0].Equity)
}

func TestBuildEquityCurveReplaysInCreationOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	older := closedRecord(t, "AAPL", journal.ResultLoss, "100", "2", "0", base)
	newer := closedRecord(t, "TSLA", journal.ResultWin, "100", "2", "0", base.Add(time.Hour))

	// Supplied newest-first: the walk must still start with the older trade.
	records := []journal.TradeRecord{newer, older}
	curve := BuildEquityCurve(records, dec(t, "10000"))

	require.Len(t, curve.Points, 3)
	assert.Equal(t, "AAPL", curve.Points[1].Ticker)
	assert.Equal(t, "TSLA", curve.Points[2].Ticker)
	// Loss first means the drawdown is realized before the recovery.
	assertDec(t, "100", curve.MaxDrawdown)

	// The caller's slice order is untouched.
	assert.Equal(t, "TSLA", records[0].Ticker)
	assert.Equal(t, "AAPL", records[1].Ticker)
}

func TestBuildEquityCurveRoundsToCents(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := closedRecord(t, "NVDA", journal.ResultWin, "33.333", "1.5", "0.111", base)
	curve := BuildEquityCurve([]journal.TradeRecord{rec}, dec(t, "10000"))

	// pnl = 33.333*1.5 - 0.111 = 49.8885 -> 49.89 on the point.
	require.Len(t, curve.Points, 2)
	assertDec(t, "49.89", curve.Points[1].RealizedGain)
	assertDec(t, "10049.89", curve.Points[1].Equity)
}

func TestBuildEquityCurveIdempotent(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []journal.TradeRecord{
		closedRecord(t, "AAPL", journal.ResultWin, "100", "2", "5", base),
		closedRecord(t, "TSLA", journal.ResultLoss, "100", "2", "5", base.Add(time.Hour)),
		closedRecord(t, "NVDA", journal.ResultScratch, "80", "2", "3", base.Add(2*time.Hour)),
	}
	size := dec(t, "10000")

	first := BuildEquityCurve(records, size)
	second := BuildEquityCurve(records, size)
	assert.Equal(t, first, second)
}
