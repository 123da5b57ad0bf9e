// Package signal combines support/resistance levels and indicator values
// into scored trading signals with entry, stop, and target levels.
package signal

import (
	"fmt"
	"sort"

	"tickflow/internal/extrema"
	"tickflow/internal/indicator"
)

// Action is the suggested trade direction.
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionWatch Action = "WATCH"
)

// Signal is a scored, directional trade suggestion.
type Signal struct {
	Type        string  `json:"type"`
	Action      Action  `json:"action"`
	EntryPrice  float64 `json:"entry_price"`
	StopLoss    float64 `json:"stop_loss"`
	TakeProfit  float64 `json:"take_profit"`
	Confidence  float64 `json:"confidence"` // [0,1]
	Description string  `json:"description"`
	RiskReward  float64 `json:"risk_reward"`
}

const (
	// minPrices is the minimum series length for signal generation.
	minPrices = 20
	// levelProximity is the "near a level" threshold (0.2%).
	levelProximity = 0.002
	// recentLevels caps how many of the latest support/resistance levels
	// are examined.
	recentLevels = 3
	// maxSignals caps the result to the highest-confidence entries.
	maxSignals = 3
	// riskReward is fixed for all heuristic signals.
	riskReward = 2.0
)

// Generate produces up to 3 signals from the price series and the detected
// support/resistance levels, sorted by confidence descending. Returns nil
// when fewer than 20 prices are available.
func Generate(prices []float64, supports, resistances []extrema.Point) []Signal {
	if len(prices) < minPrices {
		return nil
	}

	current := prices[len(prices)-1]
	prev := prices[len(prices)-2]

	mas := indicator.MovingAverages(prices)
	rsi := indicator.RSI(prices, indicator.DefaultRSIPeriod)

	var signals []Signal
	signals = append(signals, levelSignals(current, prev, supports, resistances)...)
	signals = append(signals, rsiSignals(current, prev, rsi)...)
	signals = append(signals, crossoverSignals(current, prev, mas)...)

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Confidence > signals[j].Confidence
	})
	if len(signals) > maxSignals {
		signals = signals[:maxSignals]
	}
	return signals
}

// levelSignals checks the most recent support and resistance levels for
// bounces and breaks. Only levels within 0.2% of the current price are
// considered.
func levelSignals(current, prev float64, supports, resistances []extrema.Point) []Signal {
	var signals []Signal

	for _, s := range lastN(supports, recentLevels) {
		level := s.Price
		if dist(current, level) >= levelProximity {
			continue
		}
		if current > level && prev <= level {
			signals = append(signals, Signal{
				Type:        "Support Bounce",
				Action:      ActionBuy,
				EntryPrice:  current,
				StopLoss:    level * 0.999,
				TakeProfit:  level * 1.006,
				Confidence:  0.85,
				Description: fmt.Sprintf("Price bounced off support at %.5f. Potential uptrend.", level),
				RiskReward:  riskReward,
			})
		} else if current < level*0.999 {
			signals = append(signals, Signal{
				Type:        "Support Break",
				Action:      ActionSell,
				EntryPrice:  current,
				StopLoss:    level * 1.001,
				TakeProfit:  level * 0.994,
				Confidence:  0.80,
				Description: fmt.Sprintf("Price broke below support at %.5f. Potential downtrend.", level),
				RiskReward:  riskReward,
			})
		}
	}

	for _, r := range lastN(resistances, recentLevels) {
		level := r.Price
		if dist(current, level) >= levelProximity {
			continue
		}
		if current < level && prev >= level {
			signals = append(signals, Signal{
				Type:        "Resistance Rejection",
				Action:      ActionSell,
				EntryPrice:  current,
				StopLoss:    level * 1.001,
				TakeProfit:  level * 0.994,
				Confidence:  0.85,
				Description: fmt.Sprintf("Price rejected at resistance %.5f. Potential downtrend.", level),
				RiskReward:  riskReward,
			})
		} else if current > level*1.001 {
			signals = append(signals, Signal{
				Type:        "Resistance Break",
				Action:      ActionBuy,
				EntryPrice:  current,
				StopLoss:    level * 0.999,
				TakeProfit:  level * 1.006,
				Confidence:  0.80,
				Description: fmt.Sprintf("Price broke above resistance at %.5f. Potential uptrend.", level),
				RiskReward:  riskReward,
			})
		}
	}

	return signals
}

// rsiSignals fires when RSI is past an extreme and the price has already
// started turning back.
func rsiSignals(current, prev, rsi float64) []Signal {
	if rsi > 70 && prev > current {
		return []Signal{{
			Type:        "RSI Overbought",
			Action:      ActionSell,
			EntryPrice:  current,
			StopLoss:    current * 1.002,
			TakeProfit:  current * 0.996,
			Confidence:  0.70,
			Description: fmt.Sprintf("RSI overbought at %.1f, indicating potential reversal down.", rsi),
			RiskReward:  riskReward,
		}}
	}
	if rsi < 30 && prev < current {
		return []Signal{{
			Type:        "RSI Oversold",
			Action:      ActionBuy,
			EntryPrice:  current,
			StopLoss:    current * 0.998,
			TakeProfit:  current * 1.004,
			Confidence:  0.70,
			Description: fmt.Sprintf("RSI oversold at %.1f, indicating potential reversal up.", rsi),
			RiskReward:  riskReward,
		}}
	}
	return nil
}

// crossoverSignals detects the price crossing MA5 while MA5 and MA10 are
// stacked in trend order. Requires both averages to be present.
func crossoverSignals(current, prev float64, mas map[string]float64) []Signal {
	ma5, ok5 := mas["MA5"]
	ma10, ok10 := mas["MA10"]
	if !ok5 || !ok10 {
		return nil
	}

	if current > ma5 && ma5 > ma10 && prev <= ma5 {
		return []Signal{{
			Type:        "MA Crossover (Bullish)",
			Action:      ActionBuy,
			EntryPrice:  current,
			StopLoss:    ma10,
			TakeProfit:  current + (current-ma10)*2,
			Confidence:  0.75,
			Description: "Price crossed above MA5, with MA5 above MA10. Strong uptrend.",
			RiskReward:  riskReward,
		}}
	}
	if current < ma5 && ma5 < ma10 && prev >= ma5 {
		return []Signal{{
			Type:        "MA Crossover (Bearish)",
			Action:      ActionSell,
			EntryPrice:  current,
			StopLoss:    ma10,
			TakeProfit:  current - (ma10-current)*2,
			Confidence:  0.75,
			Description: "Price crossed below MA5, with MA5 below MA10. Strong downtrend.",
			RiskReward:  riskReward,
		}}
	}
	return nil
}

func dist(price, level float64) float64 {
	d := price - level
	if d < 0 {
		d = -d
	}
	return d / level
}

func lastN(points []extrema.Point, n int) []extrema.Point {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}
