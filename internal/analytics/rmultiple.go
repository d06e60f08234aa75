package analytics

import (
	"github.com/shopspring/decimal"

	"riskbook/internal/journal"
)

// BucketTone is a display hint only, never part of the domain math.
type BucketTone string

const (
	ToneLoss    BucketTone = "loss"
	ToneScratch BucketTone = "scratch"
	ToneWin     BucketTone = "win"
)

// RBucket is one fixed histogram slot.
type RBucket struct {
	Label string     `json:"label"`
	Count int        `json:"count"`
	Tone  BucketTone `json:"tone"`
}

var bucketDefs = []RBucket{
	{Label: "Worst Case (R < -1)", Tone: ToneLoss},
	{Label: "-1R Standard Loss", Tone: ToneLoss},
	{Label: "0R Scratch/Cost", Tone: ToneScratch},
	{Label: "1R Small/Partial Win", Tone: ToneWin},
	{Label: "2R Target Hit", Tone: ToneWin},
	{Label: "Best Case (R > 2)", Tone: ToneWin},
}

var (
	rNegOne     = decimal.NewFromInt(-1)
	rNegHalf    = decimal.New(-5, -1)
	rHalf       = decimal.New(5, -1)
	rOneAndHalf = decimal.New(15, -1)
	rTwoAndHalf = decimal.New(25, -1)
)

// BinRMultiples distributes closed trades with positive gross risk over six
// fixed buckets. The realized R is the shared realized P&L divided by the
// gross dollar risk. All six buckets are always present, in order, even at
// count zero.
func BinRMultiples(records []journal.TradeRecord) []RBucket {
	buckets := make([]RBucket, len(bucketDefs))
	copy(buckets, bucketDefs)

	for _, rec := range records {
		if !rec.TotalRiskAmount.IsPositive() {
			continue
		}
		pnl, ok := rec.RealizedPnL()
		if !ok {
			continue
		}
		r := pnl.Div(rec.TotalRiskAmount)
		buckets[bucketIndex(r)].Count++
	}
	return buckets
}

// bucketIndex assigns R to exactly one bucket; the checks run in priority
// order so the ranges stay mutually exclusive.
func bucketIndex(r decimal.Decimal) int {
	switch {
	case r.LessThan(rNegOne):
		return 0
	case r.LessThan(rNegHalf):
		return 1
	case r.LessThanOrEqual(rHalf):
		return 2
	case r.LessThanOrEqual(rOneAndHalf):
		return 3
	case r.LessThanOrEqual(rTwoAndHalf):
		return 4
	default:
		return 5
	}
}
