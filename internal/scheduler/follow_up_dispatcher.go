package scheduler

import (
	"context"
	"time"

	"admissions_backend/platform/logger"
)

const followUpBatchSize = 50

// FollowUpNotifier claims due follow-up tasks and publishes reminder events.
type FollowUpNotifier interface {
	NotifyDue(ctx context.Context, limit int) (int, error)
}

// FollowUpDispatcher periodically surfaces follow-up tasks whose due time
// has passed so counsellors and parents get reminded.
type FollowUpDispatcher struct {
	svc      FollowUpNotifier
	interval time.Duration
	log      *logger.Logger
}

func NewFollowUpDispatcher(svc FollowUpNotifier, log *logger.Logger) *FollowUpDispatcher {
	return &FollowUpDispatcher{
		svc:      svc,
		interval: time.Minute,
		log:      log,
	}
}

func (d *FollowUpDispatcher) Run(ctx context.Context) {
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

		notified, err := d.svc.NotifyDue(ctx, followUpBatchSize)
		if err != nil {
			d.log.Warn("follow-up notify failed", "error", err)
			continue
		}
		if notified > 0 {
			d.log.Info("follow-up reminders published", "count", notified)
		}
	}
}
