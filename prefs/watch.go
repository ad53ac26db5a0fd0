package prefs

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"
)

// WatchOptions tunes the preference watcher.
type WatchOptions struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change is detected before the
	// callback fires; further changes inside the window reset the timer.
	// 0 fires immediately.
	Debounce time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *WatchOptions) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls the preferences table and invokes a callback with the
// fresh enabled value when something changed. Changes are detected via
// MAX(updated_at), which sees writes from any connection, including this
// process's own pool.
type Watcher struct {
	store *Store
	opts  WatchOptions

	version atomic.Int64

	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
}

// WatchStats are point-in-time counters.
type WatchStats struct {
	Checks          int64 `json:"checks"`
	ChangesDetected int64 `json:"changes_detected"`
	Errors          int64 `json:"errors"`
}

// NewWatcher creates a Watcher over a store. Call Run to start the loop.
func NewWatcher(store *Store, opts WatchOptions) *Watcher {
	opts.defaults()
	return &Watcher{store: store, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() WatchStats {
	return WatchStats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
	}
}

// Run blocks until ctx is cancelled, polling at opts.Interval. When the
// table's latest updated_at advances and the debounce window passes
// without further writes, onEnabled is called with the current toggle.
//
// If reading the toggle fails the version is NOT advanced, so the read is
// retried on the next poll cycle.
func (w *Watcher) Run(ctx context.Context, onEnabled func(bool)) {
	log := w.opts.Logger

	if v, err := w.detect(ctx); err != nil {
		log.Warn("prefs: initial version check failed", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pendingVersion := int64(-1)

	log.Info("prefs: watcher started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Info("prefs: watcher stopped")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.detect(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("prefs: version check failed", "error", err)
				continue
			}
			if cur != w.version.Load() && cur != pendingVersion {
				w.changes.Add(1)
				pendingVersion = cur

				if w.opts.Debounce <= 0 {
					w.fire(ctx, log, onEnabled, pendingVersion)
					pendingVersion = -1
				} else {
					if debounceTimer != nil {
						debounceTimer.Stop()
					}
					debounceTimer = time.NewTimer(w.opts.Debounce)
					debounceCh = debounceTimer.C
					log.Debug("prefs: change detected, debouncing", "pending_version", cur)
				}
			}

		case <-debounceCh:
			debounceCh = nil
			if pendingVersion >= 0 {
				w.fire(ctx, log, onEnabled, pendingVersion)
				pendingVersion = -1
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context, log *slog.Logger, onEnabled func(bool), ver int64) {
	enabled, err := w.store.Enabled(ctx)
	if err != nil {
		w.errors.Add(1)
		log.Error("prefs: reload failed", "error", err, "version", ver)
		return
	}
	w.version.Store(ver)
	log.Info("prefs: toggle reloaded", "enabled", enabled, "version", ver)
	onEnabled(enabled)
}

func (w *Watcher) detect(ctx context.Context) (int64, error) {
	var v sql.NullInt64
	err := w.store.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(updated_at), 0) FROM gloss_prefs`).Scan(&v)
	return v.Int64, err
}
