package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconcileWorker replays Sync for donations whose aggregates are out of
// step with their status, e.g. after a failed inline fan-out.
type ReconcileWorker struct {
	reconciler *Reconciler
	donations  DonationRepository
	interval   time.Duration
	batch      int
	logger     *zap.Logger
	stopChan   chan struct{}
	stopOnce   sync.Once
}

func NewReconcileWorker(
	reconciler *Reconciler,
	donations DonationRepository,
	interval time.Duration,
	batch int,
	logger *zap.Logger,
) *ReconcileWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	return &ReconcileWorker{
		reconciler: reconciler,
		donations:  donations,
		interval:   interval,
		batch:      batch,
		logger:     logger,
		stopChan:   make(chan struct{}),
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	w.logger.Info("Starting reconcile worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("Reconcile pass failed", zap.Error(err))
			}

		case <-w.stopChan:
			w.logger.Info("Stopping reconcile worker")
			return

		case <-ctx.Done():
			w.logger.Info("Context cancelled, stopping reconcile worker")
			return
		}
	}
}

// RunOnce syncs one batch of out-of-sync donations and returns how many were
// brought back in line. Per-donation failures are logged and skipped.
func (w *ReconcileWorker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.donations.ListOutOfSync(ctx, w.batch)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, d := range pending {
		if ctx.Err() != nil {
			return fixed, ctx.Err()
		}
		if _, err := w.reconciler.Sync(ctx, d.ID); err != nil {
			w.logger.Warn("Reconcile failed",
				zap.String("donation_id", d.ID.Hex()),
				zap.String("status", d.Status),
				zap.Error(err))
			continue
		}
		fixed++
	}
	if fixed > 0 {
		w.logger.Info("Reconcile pass", zap.Int("fixed", fixed), zap.Int("seen", len(pending)))
	}
	return fixed, nil
}

func (w *ReconcileWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}
