// cmd/engine is the real-time tick analysis engine.
//
// Pipeline: [Feed WS] → [per-symbol workers: OHLC agg → extrema →
// indicators → signals → alerts] → [Redis/SQLite sinks + notifications].
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"tickflow/config"
	"tickflow/internal/alert"
	"tickflow/internal/api"
	"tickflow/internal/engine"
	"tickflow/internal/feed"
	"tickflow/internal/logger"
	"tickflow/internal/marketdata/bus"
	"tickflow/internal/metrics"
	"tickflow/internal/model"
	"tickflow/internal/notification"
	redisstore "tickflow/internal/store/redis"
	sqlitestore "tickflow/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	slg := logger.Init("engine", slog.LevelInfo)
	slg.Info("starting")

	// ---- Load config ----
	cfgPath := getEnv("CONFIG_PATH", "config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[engine] config load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[engine] config invalid: %v", err)
	}
	slg.Info("config loaded",
		slog.String("path", cfgPath),
		slog.Any("symbols", cfg.Engine.Symbols),
		slog.Any("granularities", cfg.Engine.Granularities))

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetSymbols(cfg.Engine.Symbols)
	metricsSrv := metrics.NewServer(cfg.HTTP.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown context ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite writer (off hot path) ----
	os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.Database.SQLitePath})
	if err != nil {
		log.Fatalf("[engine] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	sqlWriter.OnWrite = func(d time.Duration) {
		prom.SinkWriteDur.WithLabelValues("sqlite").Observe(d.Seconds())
	}
	sqlWriter.OnError = func() {
		prom.SinkErrors.WithLabelValues("sqlite").Inc()
	}
	health.SetSQLiteOK(true)
	log.Println("[engine] sqlite writer ready")

	// ---- Redis writer (optional) ----
	var redisWriter *redisstore.Writer
	if !cfg.Redis.Disabled {
		redisWriter, err = redisstore.New(redisstore.WriterConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			HistoryCap: cfg.Engine.HistorySize,
		})
		if err != nil {
			log.Printf("[engine] WARNING: redis init failed: %v (continuing without redis)", err)
			health.SetRedisConnected(false)
			redisWriter = nil
		} else {
			redisWriter.OnWrite = func(d time.Duration) {
				prom.SinkWriteDur.WithLabelValues("redis").Observe(d.Seconds())
			}
			redisWriter.OnError = func() {
				prom.SinkErrors.WithLabelValues("redis").Inc()
			}
			health.SetRedisConnected(true)
			log.Println("[engine] redis writer ready")
		}
	}

	// ---- Periodic liveness checks ----
	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Alert manager + sinks ----
	alerts, err := alert.NewManager(cfg.Alerts.HistorySize)
	if err != nil {
		log.Fatalf("[engine] alert manager init failed: %v", err)
	}

	alertCh := make(chan alert.Alert, 256)
	alerts.OnAlert = func(a alert.Alert) {
		prom.AlertsCreated.Inc()
		select {
		case alertCh <- a:
		default:
			log.Printf("[engine] alert channel full, dropping alert %s", a.ID)
		}
	}
	alerts.OnSuppressed = func() {
		prom.AlertsSuppressed.Inc()
	}
	alerts.OnExpired = func(a alert.Alert) {
		prom.AlertsExpired.Inc()
	}

	alertFan := bus.New[alert.Alert](256)
	sqliteAlertCh := alertFan.Subscribe()
	go sqlWriter.RunAlerts(ctx, sqliteAlertCh)
	if redisWriter != nil {
		redisAlertCh := alertFan.Subscribe()
		go redisWriter.RunAlerts(ctx, redisAlertCh)
	}

	// Notification backends
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.Notify.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID))
	}
	dispatcher := notification.NewDispatcher(backends...)
	notifyCh := alertFan.Subscribe()
	go func() {
		for a := range notifyCh {
			sendCtx, sendCancel := context.WithTimeout(ctx, 15*time.Second)
			dispatcher.Send(sendCtx, a)
			sendCancel()
		}
	}()

	go alertFan.Run(ctx, alertCh)

	// ---- Symbol registry (per-symbol workers) ----
	candleCh := make(chan model.Candle, 5000)
	registry, err := engine.NewRegistry(engine.Config{
		Granularities:      cfg.Engine.Granularities,
		PrimaryGranularity: cfg.Engine.PrimaryGranularity,
		HistorySize:        cfg.Engine.HistorySize,
		SignalEvery:        cfg.Engine.SignalEvery,
		ExtremaWindow:      cfg.Engine.ExtremaWindow,
		MinAlertConfidence: cfg.Alerts.MinConfidence,
		AlertExpiryMinutes: cfg.Alerts.ExpiryMinutes,
	}, alerts, candleCh)
	if err != nil {
		log.Fatalf("[engine] registry init failed: %v", err)
	}
	registry.OnQueueFull = func() {
		prom.QueueDrops.Inc()
	}
	registry.OnLateTick = func() {
		prom.LateTicks.Inc()
	}
	registry.OnSignalEval = func(d time.Duration) {
		prom.SignalEvalDur.Observe(d.Seconds())
	}
	registry.Start(ctx)

	// ---- Fan out closed candles to sinks ----
	fanout := bus.New[model.Candle](5000)
	fanout.OnDrop = func(subscriberIdx int) {
		log.Printf("[engine] candle fanout drop for subscriber %d", subscriberIdx)
	}

	sqliteCandleCh := fanout.Subscribe()
	go sqlWriter.Run(ctx, sqliteCandleCh)
	if redisWriter != nil {
		redisCandleCh := fanout.Subscribe()
		go redisWriter.Run(ctx, redisCandleCh)
	}
	counterCh := fanout.Subscribe()
	go func() {
		for c := range counterCh {
			prom.CandlesClosed.WithLabelValues(strconv.Itoa(c.Granularity)).Inc()
		}
	}()

	go fanout.Run(ctx, candleCh)

	// ---- Alert expiry sweep ----
	cronRunner := cron.New()
	_, err = cronRunner.AddFunc(cfg.Alerts.SweepCron, func() {
		expired := alerts.SweepExpired()
		if len(expired) == 0 {
			return
		}
		ids := make([]string, len(expired))
		for i, a := range expired {
			ids[i] = a.ID
		}
		if err := sqlWriter.MarkExpired(ids); err != nil {
			log.Printf("[engine] mark expired error: %v", err)
		}
		log.Printf("[engine] swept %d expired alerts", len(expired))
	})
	if err != nil {
		log.Fatalf("[engine] cron schedule %q invalid: %v", cfg.Alerts.SweepCron, err)
	}
	if redisWriter != nil {
		cronRunner.AddFunc("@every 1m", func() {
			for _, symbol := range registry.Symbols() {
				w, ok := registry.Worker(symbol)
				if !ok {
					continue
				}
				for _, g := range cfg.Engine.Granularities {
					if c, ok := w.OpenCandle(g); ok {
						redisWriter.WriteLatest(ctx, c)
					}
				}
			}
		})
	}
	cronRunner.Start()

	// ---- Snapshot API ----
	apiSrv := api.NewServer(cfg.HTTP.APIAddr, registry, alerts)
	apiErrCh := apiSrv.Start()
	log.Printf("[engine] api listening on %s", cfg.HTTP.APIAddr)

	// ---- Feed ingest ----
	ingest, err := feed.New(feed.Config{
		URL:               cfg.Feed.URL,
		ReconnectDelay:    2 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
	})
	if err != nil {
		log.Fatalf("[engine] feed init failed: %v", err)
	}
	ingest.OnReconnect = func() {
		prom.FeedReconnects.Inc()
	}
	ingest.OnMalformed = func() {
		prom.MalformedTicks.Inc()
	}
	ingest.OnConnected = health.SetFeedConnected

	tickCh := make(chan model.Tick, 10000)
	go func() {
		if err := ingest.Start(ctx, tickCh); err != nil {
			log.Printf("[engine] feed error: %v", err)
		}
	}()

	// Dispatch loop: route ticks to their symbol workers.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-tickCh:
				prom.TicksTotal.Inc()
				health.SetLastTickTime(time.Now())
				registry.Dispatch(t)
			}
		}
	}()

	slg.Info("pipeline ready",
		slog.String("feed", cfg.Feed.URL),
		slog.String("api", cfg.HTTP.APIAddr),
		slog.String("metrics", cfg.HTTP.MetricsAddr))

	// ---- Wait for shutdown ----
	select {
	case <-sigCh:
		log.Println("[engine] shutdown signal received, cleaning up...")
	case err := <-apiErrCh:
		log.Printf("[engine] api server failed: %v", err)
	}
	cancel()

	// Workers drain their queues and flush open candles on cancellation.
	registry.Wait()
	cronRunner.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiSrv.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	if redisWriter != nil {
		redisWriter.Close()
	}

	log.Println("[engine] shutdown complete.")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
