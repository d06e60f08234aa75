package analytics

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"riskbook/internal/journal"
)

var (
	// ErrInvalidParameters blocks the sizing computation entirely.
	ErrInvalidParameters = errors.New("invalid sizing parameters")
	// ErrZeroShares rejects confirming a trade that sizes to zero shares.
	ErrZeroShares = errors.New("position sizes to zero shares")
)

var (
	hundred   = decimal.NewFromInt(100)
	warnFloor = decimal.New(1, -2)
)

// Sizing is the synchronous result of one sizing computation. Recomputed on
// every parameter change, never cached.
type Sizing struct {
	Shares        int64           `json:"shares"`
	RiskAmount    decimal.Decimal `json:"riskAmount"`
	ActualRisk    decimal.Decimal `json:"actualRisk"`
	StopPrice     decimal.Decimal `json:"stopPrice"`
	TargetPrice   decimal.Decimal `json:"targetPrice"`
	PotentialGain decimal.Decimal `json:"potentialGain"`
	NetRisk       decimal.Decimal `json:"netRisk"`
	NetGain       decimal.Decimal `json:"netGain"`
	// Warning is set when the stop distance eats the whole risk budget.
	// Non-blocking: the sizing result is still valid, just not saveable.
	Warning string `json:"warning,omitempty"`
}

// ComputeSizing turns account parameters into a position size.
//
//	riskAmount = accountSize * riskPercent/100
//	shares     = floor(riskAmount / atrStopDistance)
//
// Share count is floored, so the realized dollar risk never exceeds the
// budget. A zero-share outcome still reports net figures (the cost of a trade
// that cannot be taken) plus a warning naming the offending stop distance.
func ComputeSizing(p journal.AccountParameters) (Sizing, error) {
	if err := validateParameters(p); err != nil {
		return Sizing{}, err
	}

	riskAmount := p.AccountSize.Mul(p.RiskPercent).Div(hundred)

	var shares int64
	if p.ATRStopDistance.IsPositive() && riskAmount.IsPositive() {
		shares = riskAmount.Div(p.ATRStopDistance).Floor().IntPart()
	}

	s := Sizing{Shares: shares, RiskAmount: riskAmount}
	if shares > 0 {
		sharesDec := decimal.NewFromInt(shares)
		s.ActualRisk = sharesDec.Mul(p.ATRStopDistance)
		s.StopPrice = p.EntryPrice.Sub(p.ATRStopDistance)
		s.PotentialGain = s.ActualRisk.Mul(p.TargetRMultiple)
		s.TargetPrice = p.EntryPrice.Add(p.ATRStopDistance.Mul(p.TargetRMultiple))
		s.NetRisk = s.ActualRisk.Add(p.TotalTradeCost)
		s.NetGain = s.PotentialGain.Sub(p.TotalTradeCost)
	} else {
		s.NetRisk = riskAmount.Add(p.TotalTradeCost)
		s.NetGain = p.TotalTradeCost.Neg()
		if riskAmount.GreaterThan(warnFloor) {
			s.Warning = fmt.Sprintf("stop distance %s exceeds the %s risk budget; position rounds to zero shares",
				p.ATRStopDistance, riskAmount.Round(2))
		}
	}

	// Rounding must never surface negative shares or prices.
	if s.Shares < 0 {
		s.Shares = 0
	}
	s.RiskAmount = clampNonNegative(s.RiskAmount)
	s.StopPrice = clampNonNegative(s.StopPrice)
	s.PotentialGain = clampNonNegative(s.PotentialGain)
	return s, nil
}

func validateParameters(p journal.AccountParameters) error {
	if !p.AccountSize.IsPositive() {
		return fmt.Errorf("%w: account size must be positive", ErrInvalidParameters)
	}
	if !p.RiskPercent.IsPositive() {
		return fmt.Errorf("%w: risk percent must be positive", ErrInvalidParameters)
	}
	if !p.EntryPrice.IsPositive() {
		return fmt.Errorf("%w: entry price must be positive", ErrInvalidParameters)
	}
	if !p.ATRStopDistance.IsPositive() {
		return fmt.Errorf("%w: stop distance must be positive", ErrInvalidParameters)
	}
	if p.TargetRMultiple.LessThan(journal.MinTargetRMultiple) {
		return fmt.Errorf("%w: target R multiple must be at least %s", ErrInvalidParameters, journal.MinTargetRMultiple)
	}
	if p.TotalTradeCost.IsNegative() {
		return fmt.Errorf("%w: trade cost must not be negative", ErrInvalidParameters)
	}
	return nil
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// NewTradeRecord assembles the journal record for a confirmed sizing. A
// zero-share sizing is rejected here with ErrZeroShares; it must never be
// silently persisted. ID and CreatedAt are left for the store to assign.
func NewTradeRecord(p journal.AccountParameters, ticker string, s Sizing, sentiment string, sources []journal.SourceRef) (journal.TradeRecord, error) {
	if s.Shares <= 0 {
		return journal.TradeRecord{}, fmt.Errorf("%w: raise the risk budget or tighten the %s stop", ErrZeroShares, p.ATRStopDistance)
	}
	if sentiment == "" {
		sentiment = journal.SentimentUnavailable
		sources = nil
	}
	rec := journal.TradeRecord{
		Ticker:           ticker,
		MaxShares:        s.Shares,
		EntryPrice:       p.EntryPrice,
		ATRStopDistance:  p.ATRStopDistance,
		TotalRiskAmount:  s.ActualRisk,
		TotalCost:        p.TotalTradeCost,
		NetRisk:          s.NetRisk,
		NetGain:          s.NetGain,
		TargetRMultiple:  p.TargetRMultiple,
		SentimentText:    sentiment,
		SentimentSources: sources,
		Result:           journal.ResultPending,
	}
	if err := rec.Validate(); err != nil {
		return journal.TradeRecord{}, err
	}
	return rec, nil
}
