package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bookstore-payments/internal/domain/ports/repository"
	"bookstore-payments/internal/infra/metrics"
)

// ReviewGaugeWorker periodically refreshes the pending-review gauge so the
// dashboard stays honest even when no admin is paging through the queue.
type ReviewGaugeWorker struct {
	interval  time.Duration
	purchases repository.PurchaseRepository
	log       *zerolog.Logger
}

func NewReviewGaugeWorker(interval time.Duration, purchases repository.PurchaseRepository, logger *zerolog.Logger) *ReviewGaugeWorker {
	wl := logger.With().Str("component", "ReviewGaugeWorker").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReviewGaugeWorker{interval: interval, purchases: purchases, log: &wl}
}

func (w *ReviewGaugeWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting review gauge worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping review gauge worker")
			return ctx.Err()
		case <-ticker.C:
			_, total, err := w.purchases.ListPending(ctx, repository.NoTX, 0, 1)
			if err != nil {
				w.log.Error().Err(err).Msg("pending count failed")
				continue
			}
			metrics.SetPendingReview(total)
		}
	}
}
