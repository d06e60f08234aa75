package analytics

import (
	"github.com/shopspring/decimal"

	"riskbook/internal/journal"
)

// Report bundles every derived view over one journal snapshot. It is what the
// API returns and the live stream pushes after each change.
type Report struct {
	Curve       EquityCurve `json:"equityCurve"`
	Performance Performance `json:"performance"`
	Histogram   []RBucket   `json:"rHistogram"`
}

// BuildReport recomputes all derived views from scratch. Pure and idempotent:
// the same snapshot always yields the same report, and partial results are
// never observable.
func BuildReport(records []journal.TradeRecord, accountSize decimal.Decimal) Report {
	curve := BuildEquityCurve(records, accountSize)
	return Report{
		Curve:       curve,
		Performance: ComputePerformance(records, curve, accountSize),
		Histogram:   BinRMultiples(records),
	}
}
