package agg

import (
	"bytes"
	"testing"

	"tickflow/internal/model"
)

func ingestAll(t *testing.T, a *Aggregator, ticks []model.Tick, closedCh chan model.Candle) {
	t.Helper()
	for _, tk := range ticks {
		a.Ingest(tk, closedCh)
	}
}

func drain(ch chan model.Candle) []model.Candle {
	var out []model.Candle
	for {
		select {
		case c := <-ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

func TestAggregator_SinglePeriod(t *testing.T) {
	a, err := New([]int{60}, 900)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	closedCh := make(chan model.Candle, 16)

	// Ticks at epochs 0..50 with prices [10,12,9,15,11,14], granularity 60.
	prices := []float64{10, 12, 9, 15, 11, 14}
	for i, p := range prices {
		a.Ingest(model.Tick{Symbol: "XAUUSD", Price: p, Epoch: int64(i * 10)}, closedCh)
	}

	if got := drain(closedCh); len(got) != 0 {
		t.Fatalf("expected no closed candles yet, got %d", len(got))
	}

	c, ok := a.OpenCandle("XAUUSD", 60)
	if !ok {
		t.Fatal("expected an open candle")
	}
	if c.PeriodStart != 0 {
		t.Errorf("expected period_start=0, got %d", c.PeriodStart)
	}
	if c.Open != 10 || c.High != 15 || c.Low != 9 || c.Close != 14 {
		t.Errorf("OHLC = %v/%v/%v/%v, want 10/15/9/14", c.Open, c.High, c.Low, c.Close)
	}
	if c.TickCount != 6 {
		t.Errorf("expected tick_count=6, got %d", c.TickCount)
	}
}

func TestAggregator_Rollover(t *testing.T) {
	a, _ := New([]int{60}, 900)
	closedCh := make(chan model.Candle, 16)

	prices := []float64{10, 12, 9, 15, 11, 14}
	for i, p := range prices {
		a.Ingest(model.Tick{Symbol: "XAUUSD", Price: p, Epoch: int64(i * 10)}, closedCh)
	}

	// A tick in the next period closes the first candle unchanged.
	a.Ingest(model.Tick{Symbol: "XAUUSD", Price: 20, Epoch: 65}, closedCh)

	closed := drain(closedCh)
	if len(closed) != 1 {
		t.Fatalf("expected 1 closed candle, got %d", len(closed))
	}
	c := closed[0]
	if c.PeriodStart != 0 || c.Open != 10 || c.High != 15 || c.Low != 9 || c.Close != 14 || c.TickCount != 6 {
		t.Errorf("closed candle = %+v, want ps=0 O=10 H=15 L=9 C=14 n=6", c)
	}

	next, ok := a.OpenCandle("XAUUSD", 60)
	if !ok {
		t.Fatal("expected a new open candle")
	}
	if next.PeriodStart != 60 {
		t.Errorf("expected period_start=60, got %d", next.PeriodStart)
	}
	if next.Open != 20 || next.High != 20 || next.Low != 20 || next.Close != 20 {
		t.Errorf("new candle OHLC = %v/%v/%v/%v, want all 20", next.Open, next.High, next.Low, next.Close)
	}

	// The closed candle is also in the history buffer.
	hist := a.CandlesFor("XAUUSD", 60, 10)
	if len(hist) != 1 || hist[0].PeriodStart != 0 {
		t.Errorf("history = %+v, want the period-0 candle", hist)
	}
}

func TestAggregator_DropsLateTick(t *testing.T) {
	a, _ := New([]int{60}, 900)
	dropped := 0
	a.OnDroppedTick = func() { dropped++ }
	closedCh := make(chan model.Candle, 16)

	a.Ingest(model.Tick{Symbol: "XAUUSD", Price: 100, Epoch: 70}, closedCh)
	// Tick for the already-rolled-over period 0 must be dropped.
	a.Ingest(model.Tick{Symbol: "XAUUSD", Price: 999, Epoch: 30}, closedCh)

	if dropped != 1 {
		t.Errorf("expected 1 dropped tick, got %d", dropped)
	}
	c, _ := a.OpenCandle("XAUUSD", 60)
	if c.High != 100 || c.TickCount != 1 {
		t.Errorf("late tick mutated candle: %+v", c)
	}
}

func TestAggregator_OHLCInvariant(t *testing.T) {
	a, _ := New([]int{10, 60}, 900)
	closedCh := make(chan model.Candle, 256)

	prices := []float64{50, 53.2, 48.7, 51.1, 60.4, 44.9, 52, 52, 49.3, 58.8, 41.2, 55.5}
	for i, p := range prices {
		a.Ingest(model.Tick{Symbol: "EURUSD", Price: p, Epoch: int64(i * 7)}, closedCh)
	}
	a.FlushAll(closedCh)

	for _, c := range drain(closedCh) {
		if c.High < c.Open || c.High < c.Close || c.High < c.Low {
			t.Errorf("high invariant violated: %+v", c)
		}
		if c.Low > c.Open || c.Low > c.Close || c.Low > c.High {
			t.Errorf("low invariant violated: %+v", c)
		}
	}
}

func TestAggregator_Deterministic(t *testing.T) {
	ticks := []model.Tick{
		{Symbol: "XAUUSD", Price: 2650.1, Epoch: 5},
		{Symbol: "XAUUSD", Price: 2651.7, Epoch: 20},
		{Symbol: "XAUUSD", Price: 2648.9, Epoch: 61},
		{Symbol: "XAUUSD", Price: 2652.3, Epoch: 90},
		{Symbol: "XAUUSD", Price: 2649.5, Epoch: 125},
		{Symbol: "XAUUSD", Price: 2653.0, Epoch: 180},
	}

	run := func() []byte {
		a, _ := New([]int{60}, 900)
		closedCh := make(chan model.Candle, 64)
		ingestAll(t, a, ticks, closedCh)
		a.FlushAll(closedCh)
		var buf bytes.Buffer
		for _, c := range drain(closedCh) {
			buf.Write(c.JSON())
			buf.WriteByte('\n')
		}
		return buf.Bytes()
	}

	first := run()
	for i := 0; i < 5; i++ {
		if got := run(); !bytes.Equal(first, got) {
			t.Fatalf("replay %d produced different candles:\n%s\nvs\n%s", i, first, got)
		}
	}
}

func TestAggregator_MultipleSymbols(t *testing.T) {
	a, _ := New([]int{60}, 900)
	closedCh := make(chan model.Candle, 16)

	a.Ingest(model.Tick{Symbol: "XAUUSD", Price: 2650, Epoch: 10}, closedCh)
	a.Ingest(model.Tick{Symbol: "EURUSD", Price: 1.08, Epoch: 10}, closedCh)
	a.Ingest(model.Tick{Symbol: "XAUUSD", Price: 2651, Epoch: 70}, closedCh)

	closed := drain(closedCh)
	if len(closed) != 1 || closed[0].Symbol != "XAUUSD" {
		t.Fatalf("expected only the XAUUSD candle to close, got %+v", closed)
	}
	if _, ok := a.OpenCandle("EURUSD", 60); !ok {
		t.Error("EURUSD candle should still be open")
	}
}

func TestAggregator_BadConfig(t *testing.T) {
	if _, err := New([]int{0}, 900); err == nil {
		t.Error("expected error for zero granularity")
	}
	if _, err := New([]int{60}, 0); err == nil {
		t.Error("expected error for zero capacity")
	}
	if _, err := New(nil, 900); err == nil {
		t.Error("expected error for empty granularities")
	}
}
