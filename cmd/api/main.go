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
	"admissions_backend/internal/adminpanel"
	"admissions_backend/internal/admissions"
	"admissions_backend/internal/enquiries"
	"admissions_backend/internal/enquiries/ports"
	enqrepo "admissions_backend/internal/enquiries/repository"
	enqservice "admissions_backend/internal/enquiries/service"
	"admissions_backend/internal/events"
	"admissions_backend/internal/exports"
	"admissions_backend/internal/finance"
	apphttp "admissions_backend/internal/http"
	"admissions_backend/internal/http/router"
	"admissions_backend/internal/mdm"
	"admissions_backend/internal/notification"
	"admissions_backend/internal/scheduler"
	"admissions_backend/internal/tasks"
	"admissions_backend/platform/config"
	"admissions_backend/platform/db"
	"admissions_backend/platform/logger"
	"admissions_backend/platform/redislock"
	"admissions_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const enquiryLockTTL = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Redis backs the per-enquiry locks and the export job queue. Both
	// degrade gracefully when REDIS_URL is absent.
	var locker enqservice.Locker
	var enqueuer exports.Enqueuer
	if cfg.GetRedisURL() != "" {
		redisClient, err := newRedisClient(cfg)
		if err != nil {
			log.Error("failed to initialize redis client", "error", err)
			panic("failed to initialize redis client: " + err.Error())
		}
		defer func() { _ = redisClient.Close() }()
		locker = adapters.NewEnquiryLocker(redislock.New(redisClient, enquiryLockTTL))

		schedClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize scheduler client", "error", err)
			panic("failed to initialize scheduler client: " + err.Error())
		}
		defer func() { _ = schedClient.Close() }()
		enqueuer = schedClient
	} else {
		log.Warn("REDIS_URL not configured; enquiry locking and exports disabled")
	}

	// Storage service for enquiry documents and export files (MinIO)
	var storageSvc storage.Service
	var docStore ports.ObjectStore
	if cfg.IsMinIOEnabled() {
		minioSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		ensureBucket(ctx, log, minioSvc, "enquiry-documents", cfg.GetMinioBucketEnquiryDocuments())
		ensureBucket(ctx, log, minioSvc, "exports", cfg.GetMinioBucketExports())
		storageSvc = minioSvc
		docStore = adapters.NewEnquiryDocumentStore(minioSvc, cfg.GetMinioBucketEnquiryDocuments())
		log.Info("storage service initialized",
			"documentsBucket", cfg.GetMinioBucketEnquiryDocuments(),
			"exportsBucket", cfg.GetMinioBucketExports(),
		)
	} else {
		log.Warn("MINIO_ENDPOINT not configured; document uploads and exports disabled")
	}

	// Outbound clients for the finance, master-data and admin-panel systems.
	deps := enquiries.Dependencies{
		Storage: docStore,
		Locker:  locker,
	}
	if cfg.GetFinanceBaseURL() != "" {
		deps.Finance = finance.New(cfg.GetFinanceBaseURL(), cfg.GetFinanceAPIKey(), cfg.HTTPClientTimeout, log)
	}
	if cfg.GetMDMBaseURL() != "" {
		deps.MasterData = mdm.New(cfg.GetMDMBaseURL(), cfg.GetMDMAPIKey(), cfg.HTTPClientTimeout, log)
	}
	if cfg.GetAdminPanelBaseURL() != "" {
		deps.AdminPanel = adminpanel.New(cfg.GetAdminPanelBaseURL(), cfg.GetAdminPanelAPIKey(), cfg.HTTPClientTimeout, log)
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	tasksModule := tasks.NewModule(pool, eventBus, log)
	deps.FollowUps = adapters.NewFollowUpScheduler(tasksModule.Service())

	enquiriesModule := enquiries.NewModule(pool, eventBus, val, cfg, log, deps)

	// Cross-context reads go through thin adapters over the enquiries
	// repository so the downstream modules stay decoupled.
	enquiryRepo := enqrepo.New(pool)
	admissionsModule := admissions.NewModule(pool, eventBus, val, log, adapters.NewAdmissionEnquiryReader(enquiryRepo))
	exportsModule := exports.NewModule(pool, eventBus, val, log,
		adapters.NewEnquiryExportSource(enquiryRepo), storageSvc, cfg.GetMinioBucketExports(), enqueuer)

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.NewModule(cfg, eventBus, log, adapters.NewEnquiryContactReader(enquiryRepo))

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			enquiriesModule,
			tasksModule,
			admissionsModule,
			exportsModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.Service, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func newRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	if opt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
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
