// Package agg folds a stream of price ticks into fixed-interval OHLC candles
// across multiple configured granularities. Each (symbol, granularity) pair
// has at most one open candle; a tick belonging to a newer period closes and
// emits the previous candle before a new one opens.
package agg

import (
	"fmt"
	"log"
	"strconv"
	"sync"

	"tickflow/internal/model"
	"tickflow/internal/series"
)

// Aggregator builds OHLC candles from ticks. All mutation goes through a
// single writer (the per-symbol worker); readers take snapshots via the
// accessor methods.
type Aggregator struct {
	mu            sync.RWMutex
	granularities []int
	historyCap    int

	open    map[string]*model.Candle                 // key = "symbol:granularity"
	candles map[string]*series.Buffer[model.Candle]  // closed candles per key
	ticks   map[string]*series.Buffer[model.Tick]    // raw ticks per symbol

	// OnDroppedTick is called when a late tick is rejected (optional).
	OnDroppedTick func()
}

// New creates an Aggregator for the given granularities (seconds) keeping
// historyCap closed candles/ticks per series. Fails on non-positive
// granularity or capacity.
func New(granularities []int, historyCap int) (*Aggregator, error) {
	if len(granularities) == 0 {
		return nil, fmt.Errorf("agg: at least one granularity required")
	}
	for _, g := range granularities {
		if g <= 0 {
			return nil, fmt.Errorf("agg: granularity must be positive (got %d)", g)
		}
	}
	if historyCap <= 0 {
		return nil, fmt.Errorf("agg: history capacity must be positive (got %d)", historyCap)
	}
	return &Aggregator{
		granularities: granularities,
		historyCap:    historyCap,
		open:          make(map[string]*model.Candle),
		candles:       make(map[string]*series.Buffer[model.Candle]),
		ticks:         make(map[string]*series.Buffer[model.Tick]),
	}, nil
}

// Ingest applies one tick to every configured granularity. Candles whose
// period ended before this tick are finalized and sent to closedCh.
// Late ticks (older than the open candle's period) are dropped.
func (a *Aggregator) Ingest(tick model.Tick, closedCh chan<- model.Candle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tb, ok := a.ticks[tick.Symbol]
	if !ok {
		tb, _ = series.New[model.Tick](a.historyCap)
		a.ticks[tick.Symbol] = tb
	}
	tb.Append(tick)

	for _, g := range a.granularities {
		periodStart := tick.Epoch - tick.Epoch%int64(g)
		key := tick.Symbol + ":" + strconv.Itoa(g)

		c, exists := a.open[key]

		if exists && periodStart < c.PeriodStart {
			// Late tick: belongs to an already-rolled-over period, drop it.
			if a.OnDroppedTick != nil {
				a.OnDroppedTick()
			}
			continue
		}

		if exists && periodStart > c.PeriodStart {
			// New period: finalize the old candle first.
			a.finalize(key, c, closedCh)
			exists = false
		}

		if !exists {
			a.open[key] = &model.Candle{
				Symbol:      tick.Symbol,
				Granularity: g,
				PeriodStart: periodStart,
				Open:        tick.Price,
				High:        tick.Price,
				Low:         tick.Price,
				Close:       tick.Price,
				TickCount:   1,
			}
			continue
		}

		// Same period: update OHLC.
		if tick.Price > c.High {
			c.High = tick.Price
		}
		if tick.Price < c.Low {
			c.Low = tick.Price
		}
		c.Close = tick.Price
		c.TickCount++
	}
}

// FlushAll finalizes and emits every open candle. Called on shutdown so
// in-flight state is not lost.
func (a *Aggregator) FlushAll(closedCh chan<- model.Candle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key, c := range a.open {
		a.finalize(key, c, closedCh)
	}
}

// finalize pushes a closed candle to its history buffer and emits it.
// Caller must hold a.mu.
func (a *Aggregator) finalize(key string, c *model.Candle, closedCh chan<- model.Candle) {
	cb, ok := a.candles[key]
	if !ok {
		cb, _ = series.New[model.Candle](a.historyCap)
		a.candles[key] = cb
	}
	cb.Append(*c)
	delete(a.open, key)

	if closedCh == nil {
		return
	}
	select {
	case closedCh <- *c:
	default:
		log.Printf("[agg] closedCh full, dropping candle %s ps=%d", c.Key(), c.PeriodStart)
	}
}

// CandlesFor returns the most recent n closed candles for (symbol, granularity).
func (a *Aggregator) CandlesFor(symbol string, granularity, n int) []model.Candle {
	a.mu.RLock()
	cb, ok := a.candles[symbol+":"+strconv.Itoa(granularity)]
	a.mu.RUnlock()
	if !ok {
		return nil
	}
	return cb.LastN(n)
}

// TicksFor returns the most recent n raw ticks for symbol.
func (a *Aggregator) TicksFor(symbol string, n int) []model.Tick {
	a.mu.RLock()
	tb, ok := a.ticks[symbol]
	a.mu.RUnlock()
	if !ok {
		return nil
	}
	return tb.LastN(n)
}

// OpenCandle returns a copy of the in-progress candle for (symbol,
// granularity), if one exists.
func (a *Aggregator) OpenCandle(symbol string, granularity int) (model.Candle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.open[symbol+":"+strconv.Itoa(granularity)]
	if !ok {
		return model.Candle{}, false
	}
	return *c, true
}

// ClosePrices returns the close prices of up to n closed candles for
// (symbol, granularity), oldest first, with the open candle's latest close
// appended so the last element tracks the live price.
func (a *Aggregator) ClosePrices(symbol string, granularity, n int) []float64 {
	closed := a.CandlesFor(symbol, granularity, n)
	prices := make([]float64, 0, len(closed)+1)
	for i := range closed {
		prices = append(prices, closed[i].Close)
	}
	if c, ok := a.OpenCandle(symbol, granularity); ok {
		prices = append(prices, c.Close)
	}
	return prices
}

// Granularities returns the configured candle periods in seconds.
func (a *Aggregator) Granularities() []int {
	return a.granularities
}
