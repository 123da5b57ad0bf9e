// Package indicator provides technical indicator calculations over a price
// series: simple moving averages, RSI, and price-action pattern detection.
//
// Too little data is never an error; each function returns its documented
// neutral or empty value instead.
package indicator

import (
	"fmt"
	"strconv"
)

// DefaultMAPeriods are the moving-average windows computed when none are given.
var DefaultMAPeriods = []int{5, 10, 20}

// DefaultRSIPeriod is the standard RSI lookback.
const DefaultRSIPeriod = 14

// MovingAverages returns the mean of the last p prices for each period p with
// enough data, keyed "MA{p}". Periods with insufficient data are absent from
// the result.
func MovingAverages(prices []float64, periods ...int) map[string]float64 {
	if len(periods) == 0 {
		periods = DefaultMAPeriods
	}
	out := make(map[string]float64, len(periods))
	for _, p := range periods {
		if p <= 0 || len(prices) < p {
			continue
		}
		out["MA"+strconv.Itoa(p)] = mean(prices[len(prices)-p:])
	}
	return out
}

// RSI computes the Relative Strength Index over the last `period` deltas.
// Returns the neutral value 50.0 when len(prices) < period+1, and 100.0 when
// the series has no losses in the window.
func RSI(prices []float64, period int) float64 {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if len(prices) < period+1 {
		return 50.0
	}

	gains := make([]float64, len(prices)-1)
	losses := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains[i-1] = delta
		} else {
			losses[i-1] = -delta
		}
	}

	avgGain := mean(gains[len(gains)-period:])
	avgLoss := mean(losses[len(losses)-period:])

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// Pattern types detected over the last 10 prices.
const (
	PatternUptrend       = "Uptrend"
	PatternDowntrend     = "Downtrend"
	PatternConsolidation = "Consolidation"
)

// Pattern is a detected price-action pattern with a heuristic strength.
type Pattern struct {
	Type        string  `json:"type"`
	Strength    float64 `json:"strength"`
	Description string  `json:"description"`
}

// DetectPatterns classifies the last 10 prices. Uptrend and Downtrend are
// mutually exclusive; Consolidation is checked independently, so zero, one,
// or two patterns may be returned. Requires at least 10 prices.
func DetectPatterns(prices []float64) []Pattern {
	if len(prices) < 10 {
		return nil
	}
	recent := prices[len(prices)-10:]
	n := len(recent)

	var patterns []Pattern

	if recent[n-1] > recent[n-3] && recent[n-2] > recent[n-4] {
		patterns = append(patterns, Pattern{
			Type:        PatternUptrend,
			Strength:    0.8,
			Description: "Higher highs and higher lows detected over recent prices.",
		})
	} else if recent[n-1] < recent[n-3] && recent[n-2] < recent[n-4] {
		patterns = append(patterns, Pattern{
			Type:        PatternDowntrend,
			Strength:    0.8,
			Description: "Lower highs and lower lows detected over recent prices.",
		})
	}

	lo, hi := recent[0], recent[0]
	for _, p := range recent[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	avg := mean(recent)
	if avg > 0 && (hi-lo)/avg < 0.005 {
		patterns = append(patterns, Pattern{
			Type:        PatternConsolidation,
			Strength:    0.7,
			Description: fmt.Sprintf("Price consolidating in a tight range (%.3f%%), indicating potential breakout.", (hi-lo)/avg*100),
		})
	}

	return patterns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
