package signal

import (
	"testing"

	"tickflow/internal/extrema"
)

// flatThen returns 20 prices: mostly flat at base with the given final two.
func flatThen(base, prev, current float64) []float64 {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = base
	}
	prices[18] = prev
	prices[19] = current
	return prices
}

func supportAt(price float64) extrema.Point {
	return extrema.Point{Index: 0, Price: price, Kind: extrema.Support}
}

func resistanceAt(price float64) extrema.Point {
	return extrema.Point{Index: 0, Price: price, Kind: extrema.Resistance}
}

func TestGenerate_TooFewPrices(t *testing.T) {
	prices := make([]float64, 19)
	for i := range prices {
		prices[i] = 100
	}
	if got := Generate(prices, []extrema.Point{supportAt(100)}, nil); got != nil {
		t.Fatalf("expected nil for <20 prices, got %+v", got)
	}
}

func TestGenerate_SupportBounce(t *testing.T) {
	prices := flatThen(100, 99.9, 100.1)
	signals := Generate(prices, []extrema.Point{supportAt(100)}, nil)

	if len(signals) == 0 {
		t.Fatal("expected at least one signal")
	}
	s := signals[0]
	if s.Type != "Support Bounce" || s.Action != ActionBuy {
		t.Fatalf("signals[0] = %+v, want Support Bounce BUY", s)
	}
	if s.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", s.Confidence)
	}
	if s.EntryPrice != 100.1 {
		t.Errorf("entry = %v, want 100.1", s.EntryPrice)
	}
	if s.StopLoss != 100*0.999 || s.TakeProfit != 100*1.006 {
		t.Errorf("stop/target = %v/%v, want %v/%v", s.StopLoss, s.TakeProfit, 100*0.999, 100*1.006)
	}
	if s.RiskReward != 2.0 {
		t.Errorf("risk_reward = %v, want 2.0", s.RiskReward)
	}
}

func TestGenerate_RSIOversold(t *testing.T) {
	// Steady decline then one up-tick: RSI deeply oversold, price turning up.
	prices := make([]float64, 25)
	for i := 0; i < 24; i++ {
		prices[i] = 100 - float64(i)
	}
	prices[24] = prices[23] + 0.5
	signals := Generate(prices, nil, nil)

	if len(signals) != 1 {
		t.Fatalf("signals = %+v, want exactly one", signals)
	}
	s := signals[0]
	if s.Type != "RSI Oversold" || s.Action != ActionBuy || s.Confidence != 0.70 {
		t.Fatalf("signal = %+v, want RSI Oversold BUY 0.70", s)
	}
}

func TestGenerate_MACrossoverBullish(t *testing.T) {
	prices := flatThen(100, 100, 103)
	signals := Generate(prices, nil, nil)

	if len(signals) != 1 {
		t.Fatalf("signals = %+v, want exactly one", signals)
	}
	s := signals[0]
	if s.Type != "MA Crossover (Bullish)" || s.Action != ActionBuy || s.Confidence != 0.75 {
		t.Fatalf("signal = %+v, want bullish crossover 0.75", s)
	}
	// Stop at MA10, target mirrored twice the MA10 distance.
	if s.StopLoss >= s.EntryPrice {
		t.Errorf("stop %v should sit below entry %v", s.StopLoss, s.EntryPrice)
	}
	wantTP := s.EntryPrice + (s.EntryPrice-s.StopLoss)*2
	if s.TakeProfit != wantTP {
		t.Errorf("take_profit = %v, want %v", s.TakeProfit, wantTP)
	}
}

func TestGenerate_SortedByConfidenceDescending(t *testing.T) {
	// Bounce off support 100 (0.85), break above resistance 100 (0.80),
	// bullish MA crossover (0.75).
	prices := flatThen(100, 99.9, 100.15)
	signals := Generate(prices, []extrema.Point{supportAt(100)}, []extrema.Point{resistanceAt(100)})

	if len(signals) != 3 {
		t.Fatalf("signals = %+v, want three", signals)
	}
	for i := 1; i < len(signals); i++ {
		if signals[i].Confidence > signals[i-1].Confidence {
			t.Errorf("signals not sorted by confidence: %v before %v",
				signals[i-1].Confidence, signals[i].Confidence)
		}
	}
	if signals[0].Type != "Support Bounce" {
		t.Errorf("signals[0] = %+v, want Support Bounce first", signals[0])
	}
}

func TestGenerate_OnlyRecentLevelsExamined(t *testing.T) {
	// Four supports; only the oldest is near price, and only the 3 most
	// recent are examined, so no level signal fires.
	prices := flatThen(100, 99.9, 100.05)
	supports := []extrema.Point{supportAt(100), supportAt(50), supportAt(60), supportAt(70)}
	signals := Generate(prices, supports, nil)

	for _, s := range signals {
		if s.Type == "Support Bounce" || s.Type == "Support Break" {
			t.Fatalf("stale support level produced signal: %+v", s)
		}
	}
}

func TestGenerate_SupportBreak(t *testing.T) {
	// Price just below support*0.999 but within the 0.2% proximity band.
	prices := flatThen(100, 100, 99.85)
	signals := Generate(prices, []extrema.Point{supportAt(100)}, nil)

	found := false
	for _, s := range signals {
		if s.Type == "Support Break" {
			found = true
			if s.Action != ActionSell || s.Confidence != 0.80 {
				t.Errorf("signal = %+v, want SELL 0.80", s)
			}
		}
	}
	if !found {
		t.Fatalf("signals = %+v, want a Support Break", signals)
	}
}
