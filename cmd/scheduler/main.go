package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admissions_backend/internal/adapters"
	"admissions_backend/internal/adapters/storage"
	"admissions_backend/internal/enquiries"
	enqrepo "admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/events"
	"admissions_backend/internal/exports"
	"admissions_backend/internal/finance"
	"admissions_backend/internal/notification"
	"admissions_backend/internal/scheduler"
	"admissions_backend/internal/tasks"
	"admissions_backend/platform/config"
	"admissions_backend/platform/db"
	"admissions_backend/platform/logger"
	"admissions_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// Worker-side wiring: the fee-request outbox needs the finance client and
	// the follow-up reminders need notification delivery.
	deps := enquiries.Dependencies{}
	if cfg.GetFinanceBaseURL() != "" {
		deps.Finance = finance.New(cfg.GetFinanceBaseURL(), cfg.GetFinanceAPIKey(), cfg.HTTPClientTimeout, log)
	} else {
		log.Warn("FINANCE_BASE_URL not configured; fee requests will stay queued")
	}

	tasksModule := tasks.NewModule(pool, eventBus, log)
	deps.FollowUps = adapters.NewFollowUpScheduler(tasksModule.Service())
	enquiriesModule := enquiries.NewModule(pool, eventBus, val, cfg, log, deps)

	var storageSvc storage.Service
	if cfg.IsMinIOEnabled() {
		minioSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		storageSvc = minioSvc
	} else {
		log.Warn("MINIO_ENDPOINT not configured; export jobs will fail until storage is available")
	}

	enquiryRepo := enqrepo.New(pool)
	exportsModule := exports.NewModule(pool, eventBus, val, log,
		adapters.NewEnquiryExportSource(enquiryRepo), storageSvc, cfg.GetMinioBucketExports(), nil)

	// Subscribes its event handlers on construction; reminders published by
	// the follow-up dispatcher are delivered from this process.
	notification.NewModule(cfg, eventBus, log, adapters.NewEnquiryContactReader(enquiryRepo))

	worker, err := scheduler.NewWorker(cfg, exportsModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	feeDispatcher := scheduler.NewFeeRequestDispatcher(enquiriesModule.Service(), log)
	followUpDispatcher := scheduler.NewFollowUpDispatcher(tasksModule.Service(), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		feeDispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		followUpDispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped", "error", err)
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
