package scheduler

import (
	"context"
	"time"

	"admissions_backend/platform/logger"
)

const feeDispatchBatchSize = 25

// FeeDispatcher drains the fee-request outbox against the finance system.
type FeeDispatcher interface {
	DispatchPendingFeeRequests(ctx context.Context, limit int) (int, error)
}

// FeeRequestDispatcher periodically pushes queued fee requests to finance.
// Failed rows are rescheduled by the enquiries service with backoff, so the
// loop only has to keep polling.
type FeeRequestDispatcher struct {
	svc      FeeDispatcher
	interval time.Duration
	log      *logger.Logger
}

func NewFeeRequestDispatcher(svc FeeDispatcher, log *logger.Logger) *FeeRequestDispatcher {
	return &FeeRequestDispatcher{
		svc:      svc,
		interval: 30 * time.Second,
		log:      log,
	}
}

func (d *FeeRequestDispatcher) Run(ctx context.Context) {
	if d == nil || d.svc == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sent, err := d.svc.DispatchPendingFeeRequests(ctx, feeDispatchBatchSize)
		if err != nil {
			d.log.Warn("fee request dispatch failed", "error", err)
			continue
		}
		if sent > 0 {
			d.log.Info("fee requests dispatched", "count", sent)
		}
	}
}
