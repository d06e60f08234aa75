package analytics

import (
	"github.com/shopspring/decimal"

	"riskbook/internal/journal"
)

// Performance is the flat scalar summary over the journal. Degenerate inputs
// (no trades, nothing closed) yield zeros, never an error.
type Performance struct {
	TotalTrades        int             `json:"totalTrades"`
	Wins               int             `json:"wins"`
	LossesAndScratches int             `json:"lossesAndScratches"`
	Pending            int             `json:"pending"`
	WinRate            float64         `json:"winRate"`
	TotalProfitLoss    decimal.Decimal `json:"totalProfitLoss"`
	MaxDrawdown        decimal.Decimal `json:"maxDrawdown"`
	MaxDrawdownPercent float64         `json:"maxDrawdownPercent"`
	ExpectedValue      decimal.Decimal `json:"expectedValue"`
}

// ComputePerformance derives the summary from the record list and the equity
// curve built over the same list with the same account size.
func ComputePerformance(records []journal.TradeRecord, curve EquityCurve, accountSize decimal.Decimal) Performance {
	perf := Performance{
		TotalTrades:     len(records),
		TotalProfitLoss: decimal.Zero,
		MaxDrawdown:     curve.MaxDrawdown,
		ExpectedValue:   decimal.Zero,
	}

	for _, rec := range records {
		switch rec.Result {
		case journal.ResultWin:
			perf.Wins++
		case journal.ResultLoss, journal.ResultScratch:
			perf.LossesAndScratches++
		default:
			perf.Pending++
		}
	}
	closed := perf.Wins + perf.LossesAndScratches
	if closed > 0 {
		perf.WinRate = float64(perf.Wins) / float64(closed) * 100
	}

	finalEquity := accountSize
	if len(curve.Points) > 0 {
		finalEquity = curve.Points[len(curve.Points)-1].Equity
	}
	perf.TotalProfitLoss = finalEquity.Sub(accountSize)

	if accountSize.IsPositive() {
		perf.MaxDrawdownPercent = curve.MaxDrawdown.Div(accountSize).Mul(hundred).InexactFloat64()
	}
	if closed > 0 {
		perf.ExpectedValue = perf.TotalProfitLoss.Div(decimal.NewFromInt(int64(closed))).Round(2)
	}
	return perf
}
