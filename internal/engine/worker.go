// Package engine runs the per-symbol processing pipeline: a single worker
// goroutine per symbol drains an ordered tick queue, feeds the candle
// aggregator, and periodically runs the extrema → indicator → signal →
// alert chain. All mutation for a symbol goes through its worker, so the
// hot path takes no contended locks.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"tickflow/internal/alert"
	"tickflow/internal/extrema"
	"tickflow/internal/indicator"
	"tickflow/internal/marketdata/agg"
	"tickflow/internal/model"
	"tickflow/internal/signal"
)

// Config controls the per-symbol pipeline.
type Config struct {
	Granularities      []int   // candle periods in seconds
	PrimaryGranularity int     // series used for analysis (default: first granularity)
	HistorySize        int     // candles/ticks kept per series
	SignalEvery        int     // run analysis every K ticks
	ExtremaWindow      int     // neighbors per side for support/resistance
	MinAlertConfidence float64 // signals at or above become alerts
	AlertExpiryMinutes int
	QueueSize          int // per-symbol tick queue depth
}

func (c *Config) defaults() {
	if c.PrimaryGranularity == 0 && len(c.Granularities) > 0 {
		c.PrimaryGranularity = c.Granularities[0]
	}
	if c.SignalEvery <= 0 {
		c.SignalEvery = 10
	}
	if c.ExtremaWindow <= 0 {
		c.ExtremaWindow = extrema.DefaultWindow
	}
	if c.MinAlertConfidence <= 0 {
		c.MinAlertConfidence = 0.8
	}
	if c.AlertExpiryMinutes <= 0 {
		c.AlertExpiryMinutes = 5
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
}

// Worker owns all mutable state for one symbol.
type Worker struct {
	symbol string
	cfg    Config

	agg    *agg.Aggregator
	alerts *alert.Manager
	queue  chan model.Tick

	closedCh chan<- model.Candle

	ticksSeen int

	mu           sync.RWMutex
	lastSignals  []signal.Signal
	lastPatterns []indicator.Pattern

	// OnSignalEval reports the duration of each analysis pass (optional).
	OnSignalEval func(time.Duration)
	// OnLateTick is forwarded to the aggregator's dropped-tick hook.
	OnLateTick func()
}

func newWorker(symbol string, cfg Config, alerts *alert.Manager, closedCh chan<- model.Candle) (*Worker, error) {
	a, err := agg.New(cfg.Granularities, cfg.HistorySize)
	if err != nil {
		return nil, err
	}
	w := &Worker{
		symbol:   symbol,
		cfg:      cfg,
		agg:      a,
		alerts:   alerts,
		queue:    make(chan model.Tick, cfg.QueueSize),
		closedCh: closedCh,
	}
	a.OnDroppedTick = func() {
		if w.OnLateTick != nil {
			w.OnLateTick()
		}
	}
	return w, nil
}

// Enqueue adds a tick to the worker's queue. Returns false when the queue is
// full (the tick is dropped rather than blocking the dispatcher).
func (w *Worker) Enqueue(t model.Tick) bool {
	select {
	case w.queue <- t:
		return true
	default:
		return false
	}
}

// Run drains the tick queue until ctx is cancelled, then processes any
// queued ticks and flushes in-flight candle state.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case t := <-w.queue:
					w.process(t)
				default:
					w.agg.FlushAll(w.closedCh)
					return
				}
			}
		case t := <-w.queue:
			w.process(t)
		}
	}
}

func (w *Worker) process(t model.Tick) {
	w.agg.Ingest(t, w.closedCh)
	w.ticksSeen++
	if w.ticksSeen%w.cfg.SignalEvery == 0 {
		w.analyze()
	}
}

// analyze runs the full analysis chain over the primary granularity's close
// prices and raises alerts for high-confidence signals.
func (w *Worker) analyze() {
	start := time.Now()

	prices := w.agg.ClosePrices(w.symbol, w.cfg.PrimaryGranularity, w.cfg.HistorySize)
	supports, resistances := extrema.FindSupportResistance(prices, w.cfg.ExtremaWindow)
	signals := signal.Generate(prices, supports, resistances)
	patterns := indicator.DetectPatterns(prices)

	w.mu.Lock()
	w.lastSignals = signals
	w.lastPatterns = patterns
	w.mu.Unlock()

	for _, s := range signals {
		if s.Confidence < w.cfg.MinAlertConfidence {
			continue
		}
		if a := w.alerts.AddAlert(s.Type, string(s.Action), s.EntryPrice, s.Confidence, s.Description, w.cfg.AlertExpiryMinutes); a != nil {
			log.Printf("[engine] %s alert %s: %s %s @ %.5f (conf %.2f)",
				w.symbol, a.ID, a.Type, a.Direction, a.Price, a.Confidence)
		}
	}

	if w.OnSignalEval != nil {
		w.OnSignalEval(time.Since(start))
	}
}

// OpenCandle returns a copy of the in-progress candle for a granularity.
func (w *Worker) OpenCandle(granularity int) (model.Candle, bool) {
	return w.agg.OpenCandle(w.symbol, granularity)
}

// PrimaryGranularity returns the granularity the analysis chain runs on.
func (w *Worker) PrimaryGranularity() int {
	return w.cfg.PrimaryGranularity
}

// Candles returns the most recent n closed candles for a granularity.
func (w *Worker) Candles(granularity, n int) []model.Candle {
	return w.agg.CandlesFor(w.symbol, granularity, n)
}

// Ticks returns the most recent n raw ticks.
func (w *Worker) Ticks(n int) []model.Tick {
	return w.agg.TicksFor(w.symbol, n)
}

// LastPrice returns the most recent tick price.
func (w *Worker) LastPrice() (float64, bool) {
	ticks := w.agg.TicksFor(w.symbol, 1)
	if len(ticks) == 0 {
		return 0, false
	}
	return ticks[0].Price, true
}

// Signals returns the signals from the latest analysis pass.
func (w *Worker) Signals() []signal.Signal {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSignals
}

// Patterns returns the price-action patterns from the latest analysis pass.
func (w *Worker) Patterns() []indicator.Pattern {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastPatterns
}
