package service

import (
	"context"
	"time"

	"github.com/securesearch/securesearch/internal/logging"
	"github.com/securesearch/securesearch/internal/repository"
)

// MaintenanceWorker periodically purges LSH posting rows orphaned by
// soft-deleted embeddings once they pass a configured retention horizon.
type MaintenanceWorker struct {
	store    repository.EmbeddingStore
	logger   *logging.StructuredLogger
	interval time.Duration
	horizon  time.Duration
}

// NewMaintenanceWorker constructs a MaintenanceWorker that runs every
// interval, purging postings for embeddings soft-deleted longer than
// horizon ago.
func NewMaintenanceWorker(store repository.EmbeddingStore, logger *logging.StructuredLogger, interval, horizon time.Duration) *MaintenanceWorker {
	return &MaintenanceWorker{store: store, logger: logger, interval: interval, horizon: horizon}
}

// Run blocks, purging on each tick until ctx is canceled.
func (w *MaintenanceWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.purgeOnce(ctx)
		}
	}
}

func (w *MaintenanceWorker) purgeOnce(ctx context.Context) {
	cutoff := time.Now().Add(-w.horizon)
	removed, err := w.store.PurgeOrphanPostings(ctx, cutoff)
	if err != nil {
		if w.logger != nil {
			w.logger.WithError(ctx, err).Error("orphan posting purge failed")
		}
		return
	}
	if removed > 0 && w.logger != nil {
		w.logger.WithContext(ctx).WithField("removed", removed).Info("purged orphan lsh postings")
	}
}
