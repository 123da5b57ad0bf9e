package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tickflow/internal/alert"
	"tickflow/internal/model"
)

// Registry maps symbols to their workers. The registry lock is taken only
// for worker registration; steady-state tick processing is lock-free from
// the registry's point of view.
type Registry struct {
	mu      sync.RWMutex
	cfg     Config
	alerts  *alert.Manager
	workers map[string]*Worker

	closedCh chan<- model.Candle

	ctx context.Context
	wg  sync.WaitGroup

	// OnQueueFull is called when a tick is dropped because a worker's
	// queue is saturated (optional).
	OnQueueFull func()
	// OnLateTick is installed on every worker (optional).
	OnLateTick func()
	// OnSignalEval is installed on every worker (optional).
	OnSignalEval func(time.Duration)
}

// NewRegistry validates cfg and creates an empty registry. Closed candles
// from all workers are emitted on closedCh.
func NewRegistry(cfg Config, alerts *alert.Manager, closedCh chan<- model.Candle) (*Registry, error) {
	cfg.defaults()
	if len(cfg.Granularities) == 0 {
		return nil, fmt.Errorf("engine: at least one granularity required")
	}
	if cfg.HistorySize <= 0 {
		return nil, fmt.Errorf("engine: history size must be positive (got %d)", cfg.HistorySize)
	}
	if alerts == nil {
		return nil, fmt.Errorf("engine: alert manager required")
	}
	return &Registry{
		cfg:      cfg,
		alerts:   alerts,
		workers:  make(map[string]*Worker),
		closedCh: closedCh,
	}, nil
}

// Start binds the registry to ctx. Workers created afterwards run until ctx
// is cancelled.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
}

// Dispatch routes a tick to its symbol's worker, creating the worker on
// first sight of the symbol. Returns false if the tick was dropped.
func (r *Registry) Dispatch(t model.Tick) bool {
	r.mu.RLock()
	w, ok := r.workers[t.Symbol]
	r.mu.RUnlock()

	if !ok {
		var err error
		w, err = r.register(t.Symbol)
		if err != nil {
			return false
		}
	}

	if !w.Enqueue(t) {
		if r.OnQueueFull != nil {
			r.OnQueueFull()
		}
		return false
	}
	return true
}

// register creates and starts a worker for symbol, or returns the existing
// one if another goroutine won the race.
func (r *Registry) register(symbol string) (*Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.workers[symbol]; ok {
		return w, nil
	}
	if r.ctx == nil {
		return nil, fmt.Errorf("engine: registry not started")
	}

	w, err := newWorker(symbol, r.cfg, r.alerts, r.closedCh)
	if err != nil {
		return nil, err
	}
	w.OnLateTick = r.OnLateTick
	w.OnSignalEval = r.OnSignalEval
	r.workers[symbol] = w

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		w.Run(r.ctx)
	}()
	return w, nil
}

// Worker returns the worker for symbol, if one exists.
func (r *Registry) Worker(symbol string) (*Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[symbol]
	return w, ok
}

// Symbols returns the symbols with registered workers.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.workers))
	for s := range r.workers {
		out = append(out, s)
	}
	return out
}

// Wait blocks until all workers have drained and flushed after ctx
// cancellation.
func (r *Registry) Wait() {
	r.wg.Wait()
}
