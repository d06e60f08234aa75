package journal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Result is the outcome of a journaled trade. It is the only mutable field of
// a record; it starts Pending and may be overwritten any number of times.
type Result string

const (
	ResultPending Result = "Pending"
	ResultWin     Result = "Win"
	ResultLoss    Result = "Loss"
	ResultScratch Result = "Scratch"
)

// SentimentUnavailable is stored when no advisory snapshot could be captured.
const SentimentUnavailable = "Sentiment analysis not available."

// MinTargetRMultiple is the lowest reward-to-risk ratio a trade may target.
var MinTargetRMultiple = decimal.New(5, -1)

// ErrInvalidRecord marks a record that must not be persisted.
var ErrInvalidRecord = errors.New("invalid trade record")

func ParseResult(raw string) (Result, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return ResultPending, nil
	case "win":
		return ResultWin, nil
	case "loss":
		return ResultLoss, nil
	case "scratch":
		return ResultScratch, nil
	default:
		return "", fmt.Errorf("unknown result %q", raw)
	}
}

func (r Result) Valid() bool {
	switch r {
	case ResultPending, ResultWin, ResultLoss, ResultScratch:
		return true
	default:
		return false
	}
}

// Closed reports whether the trade has an outcome.
func (r Result) Closed() bool {
	return r.Valid() && r != ResultPending
}

// SourceRef is one advisory citation captured with the sentiment snapshot.
type SourceRef struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// TradeRecord is one journaled trade. Everything except Result is fixed at
// creation; NetRisk and NetGain are stored as computed then, never rebuilt.
type TradeRecord struct {
	ID               string          `json:"id"`
	Ticker           string          `json:"ticker"`
	MaxShares        int64           `json:"maxShares"`
	EntryPrice       decimal.Decimal `json:"entryPrice"`
	ATRStopDistance  decimal.Decimal `json:"atrStopDistance"`
	TotalRiskAmount  decimal.Decimal `json:"totalRiskAmount"`
	TotalCost        decimal.Decimal `json:"totalCost"`
	NetRisk          decimal.Decimal `json:"netRisk"`
	NetGain          decimal.Decimal `json:"netGain"`
	TargetRMultiple  decimal.Decimal `json:"targetRMultiple"`
	SentimentText    string          `json:"sentimentText"`
	SentimentSources []SourceRef     `json:"sentimentSources,omitempty"`
	Result           Result          `json:"result"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Validate enforces the persistence invariants. Stores call it on create and
// reject anything malformed.
func (r TradeRecord) Validate() error {
	if strings.TrimSpace(r.Ticker) == "" {
		return fmt.Errorf("%w: ticker is required", ErrInvalidRecord)
	}
	if r.MaxShares <= 0 {
		return fmt.Errorf("%w: share count must be positive", ErrInvalidRecord)
	}
	if !r.EntryPrice.IsPositive() {
		return fmt.Errorf("%w: entry price must be positive", ErrInvalidRecord)
	}
	if !r.ATRStopDistance.IsPositive() {
		return fmt.Errorf("%w: stop distance must be positive", ErrInvalidRecord)
	}
	if r.TotalRiskAmount.IsNegative() {
		return fmt.Errorf("%w: risk amount must not be negative", ErrInvalidRecord)
	}
	if r.TotalCost.IsNegative() {
		return fmt.Errorf("%w: trade cost must not be negative", ErrInvalidRecord)
	}
	if r.TargetRMultiple.LessThan(MinTargetRMultiple) {
		return fmt.Errorf("%w: target R multiple must be at least %s", ErrInvalidRecord, MinTargetRMultiple)
	}
	if !r.Result.Valid() {
		return fmt.Errorf("%w: result %q", ErrInvalidRecord, r.Result)
	}
	return nil
}

// RealizedPnL applies the shared outcome rule used by the equity curve and
// the R-multiple histogram. Pending trades carry no realized value (ok=false).
//
//	Win     ->  grossRisk*targetR - cost
//	Loss    -> -(grossRisk + cost)
//	Scratch -> -cost
func (r TradeRecord) RealizedPnL() (decimal.Decimal, bool) {
	grossRisk := r.TotalRiskAmount
	cost := r.TotalCost
	switch r.Result {
	case ResultWin:
		return grossRisk.Mul(r.TargetRMultiple).Sub(cost), true
	case ResultLoss:
		return grossRisk.Add(cost).Neg(), true
	case ResultScratch:
		return cost.Neg(), true
	default:
		return decimal.Zero, false
	}
}

// SortAscending orders records oldest first; creation timestamps are
// non-decreasing per store, the ID tiebreak keeps replay deterministic.
func SortAscending(records []TradeRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

// AccountParameters is the ephemeral form state feeding a sizing computation.
// Never persisted as an entity.
type AccountParameters struct {
	AccountSize     decimal.Decimal `json:"accountSize"`
	RiskPercent     decimal.Decimal `json:"riskPercent"`
	EntryPrice      decimal.Decimal `json:"entryPrice"`
	ATRStopDistance decimal.Decimal `json:"atrStopDistance"`
	TargetRMultiple decimal.Decimal `json:"targetRMultiple"`
	TotalTradeCost  decimal.Decimal `json:"totalTradeCost"`
}

// DefaultSettings is the per-user snapshot of the four account-level fields,
// saved on request and reloaded on session start.
type DefaultSettings struct {
	AccountSize     decimal.Decimal `json:"accountSize"`
	RiskPercent     decimal.Decimal `json:"riskPercent"`
	TargetRMultiple decimal.Decimal `json:"targetRMultiple"`
	TotalTradeCost  decimal.Decimal `json:"totalTradeCost"`
}

// SettingsPatch carries only the fields the caller wants to change.
type SettingsPatch struct {
	AccountSize     *decimal.Decimal `json:"accountSize"`
	RiskPercent     *decimal.Decimal `json:"riskPercent"`
	TargetRMultiple *decimal.Decimal `json:"targetRMultiple"`
	TotalTradeCost  *decimal.Decimal `json:"totalTradeCost"`
}

// Merge applies the patch field by field, leaving unset fields untouched.
func (s DefaultSettings) Merge(p SettingsPatch) DefaultSettings {
	if p.AccountSize != nil {
		s.AccountSize = *p.AccountSize
	}
	if p.RiskPercent != nil {
		s.RiskPercent = *p.RiskPercent
	}
	if p.TargetRMultiple != nil {
		s.TargetRMultiple = *p.TargetRMultiple
	}
	if p.TotalTradeCost != nil {
		s.TotalTradeCost = *p.TotalTradeCost
	}
	return s
}

// RecordPatch is the partial-update shape for a stored record. Result is the
// only mutable field today.
type RecordPatch struct {
	Result *Result `json:"result"`
}
