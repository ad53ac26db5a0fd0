// Package observability provides SQLite-native monitoring for the
// translation pipeline: batch timings, pass sizes, and dynamic-site flips
// land in a metrics table that any local tool can query.
//
// Persistence is async and non-blocking: buffer overflow silently drops
// datapoints rather than applying backpressure to the pipeline.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/domgloss/dbopen"
)

// Schema for the metrics table. Call Init once on the shared DB.
const schema = `
CREATE TABLE IF NOT EXISTS gloss_metrics (
	name       TEXT NOT NULL,
	ts         INTEGER NOT NULL,
	value      REAL NOT NULL,
	labels     TEXT DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_gloss_metrics_name_ts ON gloss_metrics (name, ts);
`

// Init creates the metrics table.
func Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

type point struct {
	name   string
	at     time.Time
	value  float64
	labels map[string]string
}

// Metrics buffers datapoints and flushes them to SQLite in batches.
type Metrics struct {
	db            *sql.DB
	logger        *slog.Logger
	bufferSize    int
	flushInterval time.Duration

	mu     sync.Mutex
	buffer []point
	stop   chan struct{}
	done   chan struct{}
}

// NewMetrics creates a manager and starts its flush loop.
// Recommended defaults: bufferSize=100, flushInterval=5s (pass zero for
// either to get them).
func NewMetrics(db *sql.DB, bufferSize int, flushInterval time.Duration, logger *slog.Logger) *Metrics {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Metrics{
		db:            db,
		logger:        logger,
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		buffer:        make([]point, 0, bufferSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go m.loop()
	return m
}

// Record buffers one datapoint. Never blocks; drops when the buffer is
// full and a flush is already behind.
func (m *Metrics) Record(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.buffer) >= m.bufferSize*2 {
		return // flusher is behind, drop rather than grow unbounded
	}
	m.buffer = append(m.buffer, point{name: name, at: time.Now(), value: value, labels: labels})
}

// Close flushes outstanding datapoints and stops the loop.
func (m *Metrics) Close() {
	close(m.stop)
	<-m.done
}

func (m *Metrics) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			m.flush()
			return
		case <-ticker.C:
			m.flush()
		}
	}
}

func (m *Metrics) flush() {
	m.mu.Lock()
	if len(m.buffer) == 0 {
		m.mu.Unlock()
		return
	}
	batch := m.buffer
	m.buffer = make([]point, 0, m.bufferSize)
	m.mu.Unlock()

	err := dbopen.RunTx(context.Background(), m.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO gloss_metrics (name, ts, value, labels) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, pt := range batch {
			labels := "{}"
			if len(pt.labels) > 0 {
				if data, err := json.Marshal(pt.labels); err == nil {
					labels = string(data)
				}
			}
			if _, err := stmt.Exec(pt.name, pt.at.UnixMilli(), pt.value, labels); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.logger.Warn("observability: flush failed", "count", len(batch), "error", err)
	}
}
