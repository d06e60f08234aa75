package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskbook/internal/journal"
)

func TestBinRMultiplesEmptyJournal(t *testing.T) {
	t.Parallel()

	buckets := BinRMultiples(nil)
	require.Len(t, buckets, 6)

	labels := make([]string, 0, 6)
	for _, b := range buckets {
		assert.Zero(t, b.Count)
		labels = append(labels, b.Label)
	}
	assert.Equal(t, []string{
		"Worst Case (R < -1)",
		"-1R Standard Loss",
		"0R Scratch/Cost",
		"1R Small/Partial Win",
		"2R Target Hit",
		"Best Case (R > 2)",
	}, labels)

	assert.Equal(t, ToneLoss, buckets[0].Tone)
	assert.Equal(t, ToneLoss, buckets[1].Tone)
	assert.Equal(t, ToneScratch, buckets[2].Tone)
	assert.Equal(t, ToneWin, buckets[3].Tone)
	assert.Equal(t, ToneWin, buckets[4].Tone)
	assert.Equal(t, ToneWin, buckets[5].Tone)
}

func TestBinRMultiplesTargetHit(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	// pnl = 100*2 - 5 = 195 -> R = 1.95 -> "2R Target Hit".
	rec := closedRecord(t, "AAPL", journal.ResultWin, "100", "2", "5", base)
	buckets := BinRMultiples([]journal.TradeRecord{rec})

	assert.Equal(t, 1, buckets[4].Count)
	for i, b := range buckets {
		if i == 4 {
			continue
		}
		assert.Zero(t, b.Count, "bucket %s", b.Label)
	}
}

func TestBinRMultiplesBoundaries(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		result journal.Result
		risk   string
		target string
		cost   string
		bucket int
	}{
		// Loss with cost pushes R below -1.
		{"deep loss", journal.ResultLoss, "100", "2", "5", 0},
		// Cost-free loss lands exactly on -1, which is not "< -1".
		{"standard loss", journal.ResultLoss, "100", "2", "0", 1},
		// Scratch with cost over half the risk reads as a loss.
		{"expensive scratch", journal.ResultScratch, "100", "2", "51", 1},
		// Exactly -0.5 stays in the scratch band.
		{"half-risk scratch", journal.ResultScratch, "100", "2", "50", 2},
		{"free scratch", journal.ResultScratch, "100", "2", "0", 2},
		// Win at exactly 0.5R is still scratch territory.
		{"half-R win", journal.ResultWin, "100", "0.5", "0", 2},
		{"small win", journal.ResultWin, "100", "1", "0", 3},
		// Exactly 1.5R closes the small-win band.
		{"one-and-half win", journal.ResultWin, "100", "1.5", "0", 3},
		{"two R win", journal.ResultWin, "100", "2", "0", 4},
		// Exactly 2.5R closes the target band.
		{"two-and-half win", journal.ResultWin, "100", "2.5", "0", 4},
		{"runner", journal.ResultWin, "100", "3", "0", 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := closedRecord(t, "X", tc.result, tc.risk, tc.target, tc.cost, base)
			buckets := BinRMultiples([]journal.TradeRecord{rec})
			for i, b := range buckets {
				want := 0
				if i == tc.bucket {
					want = 1
				}
				assert.Equal(t, want, b.Count, "bucket %s", b.Label)
			}
		})
	}
}

func TestBinRMultiplesSkipsPendingAndZeroRisk(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []journal.TradeRecord{
		closedRecord(t, "AAPL", journal.ResultPending, "100", "2", "5", base),
		closedRecord(t, "TSLA", journal.ResultWin, "0", "2", "5", base.Add(time.Hour)),
	}
	for _, b := range BinRMultiples(records) {
		assert.Zero(t, b.Count, "bucket %s", b.Label)
	}
}

func TestBinRMultiplesIdempotent(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []journal.TradeRecord{
		closedRecord(t, "AAPL", journal.ResultWin, "100", "2", "5", base),
		closedRecord(t, "TSLA", journal.ResultLoss, "100", "2", "5", base.Add(time.Hour)),
	}
	assert.Equal(t, BinRMultiples(records), BinRMultiples(records))
}
