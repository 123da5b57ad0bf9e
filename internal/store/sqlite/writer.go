package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"tickflow/internal/alert"
	"tickflow/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/tickflow.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db *sqlx.DB

	// OnWrite reports each batch commit's duration (optional).
	OnWrite func(time.Duration)
	// OnError is called when a write fails (optional).
	OnError func()
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db.DB }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sqlx.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol      TEXT    NOT NULL,
			granularity INTEGER NOT NULL,
			ts          INTEGER NOT NULL,
			open        REAL    NOT NULL,
			high        REAL    NOT NULL,
			low         REAL    NOT NULL,
			close       REAL    NOT NULL,
			tick_count  INTEGER,
			PRIMARY KEY (symbol, granularity, ts)
		);

		CREATE TABLE IF NOT EXISTS alerts (
			id          TEXT    PRIMARY KEY,
			type        TEXT    NOT NULL,
			direction   TEXT    NOT NULL,
			price       REAL    NOT NULL,
			confidence  REAL    NOT NULL,
			description TEXT,
			created_at  INTEGER NOT NULL,
			expires_at  INTEGER NOT NULL,
			status      TEXT    NOT NULL
		);
	`)
	return err
}

// Run reads closed candles from candleCh and inserts them in batched
// transactions. Flushes every batchSize candles OR every flushDelay,
// whichever first. Blocks until ctx is cancelled or candleCh is closed.
func (w *Writer) Run(ctx context.Context, candleCh <-chan model.Candle) {
	batch := make([]model.Candle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
			if w.OnError != nil {
				w.OnError()
			}
		} else {
			log.Printf("[sqlite] committed %d candles in %v", len(batch), time.Since(start))
			if w.OnWrite != nil {
				w.OnWrite(time.Since(start))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case candle, ok := <-candleCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, candle)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertBatch inserts a batch of candles in a single transaction.
func (w *Writer) insertBatch(candles []model.Candle) error {
	tx, err := w.db.Beginx()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, granularity, ts, open, high, low, close, tick_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.Exec(c.Symbol, c.Granularity, c.PeriodStart, c.Open, c.High, c.Low, c.Close, c.TickCount)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// RunAlerts reads created alerts from alertCh and inserts them one by one.
// Alert volume is low, so there is no batching here.
func (w *Writer) RunAlerts(ctx context.Context, alertCh <-chan alert.Alert) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-alertCh:
			if !ok {
				return
			}
			if err := w.insertAlert(a); err != nil {
				log.Printf("[sqlite] alert insert error for %s: %v", a.ID, err)
				if w.OnError != nil {
					w.OnError()
				}
			}
		}
	}
}

func (w *Writer) insertAlert(a alert.Alert) error {
	_, err := w.db.Exec(`
		INSERT OR REPLACE INTO alerts (id, type, direction, price, confidence, description, created_at, expires_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Type, a.Direction, a.Price, a.Confidence, a.Description, a.CreatedAt.Unix(), a.ExpiresAt.Unix(), string(a.Status))
	return err
}

// MarkExpired updates the stored status for alerts removed by the expiry sweep.
func (w *Writer) MarkExpired(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE alerts SET status = 'expired' WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	_, err = w.db.Exec(w.db.Rebind(query), args...)
	return err
}

// LastPeriodStart returns the newest stored candle period for an instrument.
// Returns 0 if no candles exist.
func (w *Writer) LastPeriodStart(symbol string, granularity int) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM candles WHERE symbol = ? AND granularity = ?`,
		symbol, granularity,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
