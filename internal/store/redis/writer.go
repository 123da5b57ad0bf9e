package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tickflow/internal/alert"
	"tickflow/internal/model"
)

const (
	alertListKey     = "alerts:recent"
	alertListMaxLen  = 100
	writeTimeout     = 3 * time.Second
	defaultLatestTTL = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// HistoryCap bounds the candle snapshot hash per (granularity, symbol).
	HistoryCap int
}

// Writer mirrors closed candles and alerts into Redis so dashboards and
// other processes can read live snapshots.
//
// Candles live in hashes keyed "candle:{granularity}:{symbol}" with the
// period start as field, trimmed to HistoryCap entries. Alerts go to a
// capped list plus a pubsub channel.
type Writer struct {
	client     *goredis.Client
	historyCap int

	// OnWrite reports each write's duration (optional).
	OnWrite func(time.Duration)
	// OnError is called when a write fails (optional).
	OnError func()
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client, historyCap: cfg.HistoryCap}, nil
}

// Run reads closed candles from candleCh and writes them to Redis.
// Blocks until ctx is cancelled or candleCh is closed.
func (w *Writer) Run(ctx context.Context, candleCh <-chan model.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-candleCh:
			if !ok {
				return
			}
			w.writeCandle(ctx, candle)
		}
	}
}

// RunAlerts reads created alerts from alertCh and writes them to Redis.
func (w *Writer) RunAlerts(ctx context.Context, alertCh <-chan alert.Alert) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-alertCh:
			if !ok {
				return
			}
			w.writeAlert(ctx, a)
		}
	}
}

// writeCandle performs pipelined writes for a closed candle: snapshot hash
// update plus a pubsub publish for live subscribers.
func (w *Writer) writeCandle(ctx context.Context, candle model.Candle) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	hashKey := "candle:" + strconv.Itoa(candle.Granularity) + ":" + candle.Symbol
	pubsubCh := "pub:candle:" + strconv.Itoa(candle.Granularity) + ":" + candle.Symbol
	jsonData := string(candle.JSON())

	start := time.Now()
	pipe := w.client.Pipeline()
	pipe.HSet(wctx, hashKey, candle.Field(), jsonData)
	pipe.Publish(wctx, pubsubCh, jsonData)
	_, err := pipe.Exec(wctx)
	if w.OnWrite != nil {
		w.OnWrite(time.Since(start))
	}
	if err != nil {
		log.Printf("[redis] pipeline error for %s: %v", candle.Key(), err)
		if w.OnError != nil {
			w.OnError()
		}
		return
	}

	w.trimCandleHash(wctx, hashKey)
}

// trimCandleHash deletes the oldest period fields once the snapshot hash
// exceeds the history cap. Fields are period-start integers, so numeric
// order is age order.
func (w *Writer) trimCandleHash(ctx context.Context, hashKey string) {
	if w.historyCap <= 0 {
		return
	}
	n, err := w.client.HLen(ctx, hashKey).Result()
	if err != nil || n <= int64(w.historyCap) {
		return
	}

	fields, err := w.client.HKeys(ctx, hashKey).Result()
	if err != nil {
		return
	}
	periods := make([]int64, 0, len(fields))
	for _, f := range fields {
		p, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			continue
		}
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })

	excess := len(periods) - w.historyCap
	if excess <= 0 {
		return
	}
	stale := make([]string, excess)
	for i := 0; i < excess; i++ {
		stale[i] = strconv.FormatInt(periods[i], 10)
	}
	if err := w.client.HDel(ctx, hashKey, stale...).Err(); err != nil {
		log.Printf("[redis] trim error for %s: %v", hashKey, err)
	}
}

// WriteLatest stores the in-progress candle under a latest key with TTL so
// dashboards can read the forming bar. Invoked by the periodic snapshot job.
func (w *Writer) WriteLatest(ctx context.Context, candle model.Candle) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	latestKey := "candle:latest:" + strconv.Itoa(candle.Granularity) + ":" + candle.Symbol
	start := time.Now()
	err := w.client.Set(wctx, latestKey, string(candle.JSON()), defaultLatestTTL).Err()
	if w.OnWrite != nil {
		w.OnWrite(time.Since(start))
	}
	if err != nil {
		log.Printf("[redis] latest write error for %s: %v", candle.Key(), err)
		if w.OnError != nil {
			w.OnError()
		}
	}
}

// writeAlert pushes the alert onto a capped list and publishes it.
func (w *Writer) writeAlert(ctx context.Context, a alert.Alert) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	jsonData, err := json.Marshal(a)
	if err != nil {
		log.Printf("[redis] alert %s marshal error: %v", a.ID, err)
		return
	}

	start := time.Now()
	pipe := w.client.Pipeline()
	pipe.LPush(wctx, alertListKey, jsonData)
	pipe.LTrim(wctx, alertListKey, 0, alertListMaxLen-1)
	pipe.Publish(wctx, "pub:alerts", jsonData)
	_, err = pipe.Exec(wctx)
	if w.OnWrite != nil {
		w.OnWrite(time.Since(start))
	}
	if err != nil {
		log.Printf("[redis] alert pipeline error for %s: %v", a.ID, err)
		if w.OnError != nil {
			w.OnError()
		}
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
