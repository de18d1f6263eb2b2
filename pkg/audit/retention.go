package audit

import (
	"context"
	"log/slog"
	"time"
)

// RetentionWorker deletes audit events older than the configured retention
// window. It runs one cleanup at startup, then on a daily ticker.
type RetentionWorker struct {
	store     *Store
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

func NewRetentionWorker(store *Store, cfg *Config, logger *slog.Logger) *RetentionWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionWorker{
		store:     store,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  24 * time.Hour,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) {
	w.cleanup()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup()
		}
	}
}

func (w *RetentionWorker) cleanup() {
	cutoff := time.Now().Add(-w.retention)
	deleted, err := w.store.DeleteOlderThan(cutoff)
	if err != nil {
		w.logger.Error("audit retention cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		w.logger.Info("audit retention cleanup", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
}
