package scheduler

import (
	"context"
	"fmt"

	"admissions_backend/platform/config"
	"admissions_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ExportProcessor builds and uploads a claimed export job.
type ExportProcessor interface {
	Process(ctx context.Context, jobID uuid.UUID) error
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	exports ExportProcessor
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, exports ExportProcessor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		exports: exports,
		log:     log,
	}

	mux.HandleFunc(TaskExportJob, w.handleExportJob)

	return w, nil
}

func (w *Worker) handleExportJob(ctx context.Context, task *asynq.Task) error {
	if w.exports == nil {
		return nil
	}

	payload, err := ParseExportJobPayload(task)
	if err != nil {
		return err
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return err
	}

	return w.exports.Process(ctx, jobID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
