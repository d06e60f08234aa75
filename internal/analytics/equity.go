package analytics

import (
	"github.com/shopspring/decimal"

	"riskbook/internal/journal"
)

// CurvePoint is one step of the equity replay. Money is rounded to cents.
type CurvePoint struct {
	TradeNumber   int             `json:"tradeNumber"`
	Equity        decimal.Decimal `json:"equity"`
	Ticker        string          `json:"ticker,omitempty"`
	Result        journal.Result  `json:"result,omitempty"`
	RealizedGain  decimal.Decimal `json:"realizedGain"`
	HighWaterMark decimal.Decimal `json:"highWaterMark"`
}

// EquityCurve is the chronological equity series plus the worst drawdown seen
// across the whole walk.
type EquityCurve struct {
	Points      []CurvePoint    `json:"points"`
	MaxDrawdown decimal.Decimal `json:"maxDrawdown"`
}

// BuildEquityCurve replays the journal oldest-first from the current account
// size. The baseline is deliberately today's account size, not the size in
// effect when each trade was recorded.
//
// A non-empty journal starts with a synthetic point (trade 0, accountSize);
// an empty journal yields an empty curve, which the caller must treat as "no
// data yet" rather than a flat line.
func BuildEquityCurve(records []journal.TradeRecord, accountSize decimal.Decimal) EquityCurve {
	curve := EquityCurve{Points: make([]CurvePoint, 0, len(records)+1), MaxDrawdown: decimal.Zero}
	if len(records) == 0 {
		return curve
	}

	ordered := append([]journal.TradeRecord(nil), records...)
	journal.SortAscending(ordered)

	equity := accountSize
	highWaterMark := accountSize
	maxDrawdown := decimal.Zero

	curve.Points = append(curve.Points, CurvePoint{
		TradeNumber:   0,
		Equity:        accountSize.Round(2),
		RealizedGain:  decimal.Zero,
		HighWaterMark: accountSize.Round(2),
	})

	n := 0
	for _, rec := range ordered {
		pnl, ok := rec.RealizedPnL()
		if !ok {
			continue
		}
		n++
		equity = equity.Add(pnl)
		if equity.GreaterThan(highWaterMark) {
			highWaterMark = equity
		}
		if drawdown := highWaterMark.Sub(equity); drawdown.GreaterThan(maxDrawdown) {
			maxDrawdown = drawdown
		}
		curve.Points = append(curve.Points, CurvePoint{
			TradeNumber:   n,
			Equity:        equity.Round(2),
			Ticker:        rec.Ticker,
			Result:        rec.Result,
			RealizedGain:  pnl.Round(2),
			HighWaterMark: highWaterMark.Round(2),
		})
	}
	curve.MaxDrawdown = maxDrawdown.Round(2)
	return curve
}
