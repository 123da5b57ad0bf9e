package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"tickflow/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New[model.Candle](10)
	out1 := fo.Subscribe()
	out2 := fo.Subscribe()

	input := make(chan model.Candle, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go fo.Run(ctx, input)

	candle := model.Candle{
		Symbol:      "XAUUSD",
		Granularity: 60,
		Open:        100,
		High:        110,
		Low:         90,
		Close:       105,
	}

	input <- candle
	time.Sleep(50 * time.Millisecond)

	select {
	case c := <-out1:
		if c.Symbol != "XAUUSD" {
			t.Errorf("out1: expected symbol XAUUSD, got %s", c.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("out1: timed out waiting for candle")
	}

	select {
	case c := <-out2:
		if c.Symbol != "XAUUSD" {
			t.Errorf("out2: expected symbol XAUUSD, got %s", c.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("out2: timed out waiting for candle")
	}

	cancel()
}

func TestFanOut_SlowConsumerDrops(t *testing.T) {
	fo := New[model.Candle](1)
	fo.Subscribe() // never drained

	var drops atomic.Int32
	fo.OnDrop = func(idx int) { drops.Add(1) }

	input := make(chan model.Candle, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	for i := 0; i < 3; i++ {
		input <- model.Candle{Symbol: "EURUSD", Granularity: 60, PeriodStart: int64(i * 60)}
	}
	time.Sleep(50 * time.Millisecond)

	// Buffer of 1 absorbs the first candle, the rest are dropped.
	if got := drops.Load(); got != 2 {
		t.Errorf("drops = %d, want 2", got)
	}
}
