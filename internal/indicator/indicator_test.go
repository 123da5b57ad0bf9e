package indicator

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMovingAverages_AbsentKeysWhenShort(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7} // enough for MA5, not MA10/MA20
	mas := MovingAverages(prices)

	ma5, ok := mas["MA5"]
	if !ok {
		t.Fatal("MA5 should be present")
	}
	if !almostEqual(ma5, 5) { // mean(3,4,5,6,7)
		t.Errorf("MA5 = %v, want 5", ma5)
	}
	if _, ok := mas["MA10"]; ok {
		t.Error("MA10 should be absent with 7 prices")
	}
	if _, ok := mas["MA20"]; ok {
		t.Error("MA20 should be absent with 7 prices")
	}
}

func TestMovingAverages_CustomPeriods(t *testing.T) {
	prices := []float64{2, 4, 6, 8}
	mas := MovingAverages(prices, 2, 4)
	if !almostEqual(mas["MA2"], 7) {
		t.Errorf("MA2 = %v, want 7", mas["MA2"])
	}
	if !almostEqual(mas["MA4"], 5) {
		t.Errorf("MA4 = %v, want 5", mas["MA4"])
	}
}

func TestRSI_NeutralWhenInsufficient(t *testing.T) {
	for n := 0; n <= DefaultRSIPeriod; n++ {
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = float64(i + 1)
		}
		if got := RSI(prices, DefaultRSIPeriod); got != 50.0 {
			t.Errorf("RSI with %d prices = %v, want exactly 50.0", n, got)
		}
	}
}

func TestRSI_AllGains(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	if got := RSI(prices, 14); got != 100.0 {
		t.Errorf("RSI of strictly rising series = %v, want 100.0", got)
	}
}

func TestRSI_AllLosses(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 - float64(i)
	}
	if got := RSI(prices, 14); got != 0.0 {
		t.Errorf("RSI of strictly falling series = %v, want 0.0", got)
	}
}

func TestRSI_BalancedMoves(t *testing.T) {
	// Alternating +1/-1 deltas: avgGain == avgLoss, RSI == 50.
	prices := make([]float64, 30)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		if i%2 == 1 {
			prices[i] = prices[i-1] + 1
		} else {
			prices[i] = prices[i-1] - 1
		}
	}
	if got := RSI(prices, 14); !almostEqual(got, 50.0) {
		t.Errorf("RSI of alternating series = %v, want 50", got)
	}
}

func TestDetectPatterns_Uptrend(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	patterns := DetectPatterns(prices)
	if len(patterns) != 1 || patterns[0].Type != PatternUptrend {
		t.Fatalf("patterns = %+v, want single Uptrend", patterns)
	}
	if patterns[0].Strength != 0.8 {
		t.Errorf("strength = %v, want 0.8", patterns[0].Strength)
	}
}

func TestDetectPatterns_Downtrend(t *testing.T) {
	prices := []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	patterns := DetectPatterns(prices)
	if len(patterns) != 1 || patterns[0].Type != PatternDowntrend {
		t.Fatalf("patterns = %+v, want single Downtrend", patterns)
	}
}

func TestDetectPatterns_FlatIsConsolidationOnly(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 50
	}
	patterns := DetectPatterns(prices)
	if len(patterns) != 1 {
		t.Fatalf("patterns = %+v, want exactly one", patterns)
	}
	if patterns[0].Type != PatternConsolidation || patterns[0].Strength != 0.7 {
		t.Errorf("pattern = %+v, want Consolidation strength 0.7", patterns[0])
	}
}

func TestDetectPatterns_TrendAndConsolidation(t *testing.T) {
	// Rising but inside a <0.5% band: both Uptrend and Consolidation.
	prices := make([]float64, 10)
	for i := range prices {
		prices[i] = 1000 + float64(i)*0.2
	}
	patterns := DetectPatterns(prices)
	if len(patterns) != 2 {
		t.Fatalf("patterns = %+v, want two", patterns)
	}
	if patterns[0].Type != PatternUptrend || patterns[1].Type != PatternConsolidation {
		t.Errorf("patterns = %+v, want [Uptrend Consolidation]", patterns)
	}
}

func TestDetectPatterns_TooFewPrices(t *testing.T) {
	if got := DetectPatterns([]float64{1, 2, 3}); got != nil {
		t.Errorf("expected nil for short series, got %+v", got)
	}
}
