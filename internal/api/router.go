// Package api exposes read-only HTTP endpoints over the engine's in-memory
// state: candle history, raw ticks, latest signals and patterns, and the
// active alert set.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"tickflow/internal/alert"
	"tickflow/internal/engine"
)

// Server serves snapshot queries against the symbol registry.
type Server struct {
	registry *engine.Registry
	alerts   *alert.Manager
	srv      *http.Server
}

// NewServer wires the snapshot routes onto a ServeMux.
func NewServer(addr string, registry *engine.Registry, alerts *alert.Manager) *Server {
	s := &Server{
		registry: registry,
		alerts:   alerts,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/candles", s.handleCandles)
	mux.HandleFunc("/api/v1/ticks", s.handleTicks)
	mux.HandleFunc("/api/v1/price", s.handlePrice)
	mux.HandleFunc("/api/v1/signals", s.handleSignals)
	mux.HandleFunc("/api/v1/alerts", s.handleAlerts)
	mux.HandleFunc("/api/v1/symbols", s.handleSymbols)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the underlying handler. Intended for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine. Errors other than a clean
// shutdown are reported on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

func (s *Server) worker(w http.ResponseWriter, r *http.Request) (*engine.Worker, bool) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, `{"error":"symbol parameter required"}`, http.StatusBadRequest)
		return nil, false
	}
	wk, ok := s.registry.Worker(symbol)
	if !ok {
		http.Error(w, `{"error":"unknown symbol"}`, http.StatusNotFound)
		return nil, false
	}
	return wk, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// handleCandles returns the most recent closed candles for a symbol.
// GET /api/v1/candles?symbol=XAUUSD&granularity=60&count=50
func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	wk, ok := s.worker(w, r)
	if !ok {
		return
	}
	granularity := queryInt(r, "granularity", wk.PrimaryGranularity())
	count := queryInt(r, "count", 50)

	candles := wk.Candles(granularity, count)
	writeJSON(w, map[string]interface{}{
		"symbol":      r.URL.Query().Get("symbol"),
		"granularity": granularity,
		"count":       len(candles),
		"candles":     candles,
	})
}

// handleTicks returns the most recent raw ticks for a symbol.
// GET /api/v1/ticks?symbol=XAUUSD&count=100
func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	wk, ok := s.worker(w, r)
	if !ok {
		return
	}
	count := queryInt(r, "count", 100)
	ticks := wk.Ticks(count)
	writeJSON(w, map[string]interface{}{
		"symbol": r.URL.Query().Get("symbol"),
		"count":  len(ticks),
		"ticks":  ticks,
	})
}

// handlePrice returns the latest tick price for a symbol.
// GET /api/v1/price?symbol=XAUUSD
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	wk, ok := s.worker(w, r)
	if !ok {
		return
	}
	price, ok := wk.LastPrice()
	if !ok {
		http.Error(w, `{"error":"no ticks yet"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{
		"symbol": r.URL.Query().Get("symbol"),
		"price":  price,
	})
}

// handleSignals returns the latest analysis output for a symbol.
// GET /api/v1/signals?symbol=XAUUSD
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	wk, ok := s.worker(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]interface{}{
		"symbol":   r.URL.Query().Get("symbol"),
		"signals":  wk.Signals(),
		"patterns": wk.Patterns(),
	})
}

// handleAlerts returns active alerts, or recent history with ?history=n.
// GET /api/v1/alerts
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if n := queryInt(r, "history", 0); n > 0 {
		writeJSON(w, map[string]interface{}{"alerts": s.alerts.History(n)})
		return
	}
	active := s.alerts.ListActive()
	writeJSON(w, map[string]interface{}{
		"count":  len(active),
		"alerts": active,
	})
}

// handleSymbols lists symbols with live workers.
// GET /api/v1/symbols
func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"symbols": s.registry.Symbols()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
