package analytics

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
)

// DefaultATRPeriod matches the common charting default.
const DefaultATRPeriod = 14

// Bar is one user-supplied OHLC bar for the ATR helper. Only the fields the
// true-range needs are required.
type Bar struct {
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// ATRFromBars computes a Wilder-smoothed ATR over the supplied bars and
// returns the latest value, for deriving a stop distance without any market
// data feed. Needs at least period+1 bars.
func ATRFromBars(bars []Bar, period int) (decimal.Decimal, error) {
	if period <= 0 {
		period = DefaultATRPeriod
	}
	if len(bars) <= period {
		return decimal.Zero, fmt.Errorf("need at least %d bars for a %d-period ATR, got %d", period+1, period, len(bars))
	}
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High.InexactFloat64()
		lows[i] = b.Low.InexactFloat64()
		closes[i] = b.Close.InexactFloat64()
		if lows[i] > highs[i] {
			return decimal.Zero, fmt.Errorf("bar %d: low %s above high %s", i, b.Low, b.High)
		}
	}
	series := talib.Atr(highs, lows, closes, period)
	last := series[len(series)-1]
	if math.IsNaN(last) || math.IsInf(last, 0) {
		return decimal.Zero, fmt.Errorf("ATR undefined for the supplied bars")
	}
	return decimal.NewFromFloat(last).Round(4), nil
}
