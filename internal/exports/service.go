package exports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admissions_backend/internal/adapters/storage"
	"admissions_backend/internal/events"
	"admissions_backend/platform/apperr"
	"admissions_backend/platform/logger"

	"github.com/google/uuid"
)

// downloadURLExpiry bounds how long an export download link stays valid.
const downloadURLExpiry = 15 * time.Minute

// SourceRow is one enquiry flattened for the report.
type SourceRow struct {
	EnquiryNumber string
	EnquiryType   string
	Status        string
	School        string
	AcademicYear  string
	Grade         string
	StudentName   string
	StudentDOB    string
	ParentName    string
	ParentPhone   string
	ParentEmail   string
	CurrentStage  string
	CreatedAt     time.Time
}

// SourceParams filters the report rows.
type SourceParams struct {
	SchoolID       int64
	AcademicYearID int64
	Status         string
}

// Source supplies report rows from the enquiries context. The adapter in
// the composition root implements it.
type Source interface {
	ExportRows(ctx context.Context, params SourceParams) ([]SourceRow, error)
}

// Enqueuer hands the job to the background worker. Implemented by the
// scheduler client.
type Enqueuer interface {
	EnqueueExportJob(ctx context.Context, jobID uuid.UUID) error
}

// Service implements the export job operations.
type Service struct {
	repo     *Repository
	source   Source
	storage  storage.Service
	bucket   string
	enqueuer Enqueuer
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates the export service. storage and enqueuer may be nil in
// deployments without MinIO/Redis; requesting an export then fails with a
// clear error instead of at dispatch time.
func NewService(repo *Repository, source Source, store storage.Service, bucket string, enqueuer Enqueuer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		source:   source,
		storage:  store,
		bucket:   bucket,
		enqueuer: enqueuer,
		bus:      bus,
		log:      log,
	}
}

// RequestParams describes an export request.
type RequestParams struct {
	Format         string
	SchoolID       int64
	AcademicYearID int64
	EnquiryStatus  string
}

// Request creates a pending job and schedules it for processing.
func (s *Service) Request(ctx context.Context, params RequestParams, actorID uuid.UUID) (Job, error) {
	if params.Format != FormatCSV && params.Format != FormatXLSX {
		return Job{}, apperr.Validation("format must be csv or xlsx")
	}
	if s.storage == nil || s.enqueuer == nil {
		return Job{}, apperr.New(apperr.KindBusinessRule, "exports are not configured on this deployment")
	}

	job, err := s.repo.CreateJob(ctx, CreateJobParams{
		Format:         params.Format,
		RequestedBy:    actorID,
		SchoolID:       params.SchoolID,
		AcademicYearID: params.AcademicYearID,
		EnquiryStatus:  params.EnquiryStatus,
	})
	if err != nil {
		return Job{}, apperr.Internal("failed to create export job", err)
	}

	if err := s.enqueuer.EnqueueExportJob(ctx, job.ID); err != nil {
		if failErr := s.repo.FailJob(ctx, job.ID, "failed to schedule"); failErr != nil {
			s.log.Error("failed to park unschedulable export job", "jobId", job.ID, "error", failErr)
		}
		return Job{}, apperr.Internal("failed to schedule export job", err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.ExportRequested{
			BaseEvent:     events.NewBaseEvent(),
			JobID:         job.ID,
			SchoolID:      job.SchoolID,
			RequestedByID: actorID,
			Format:        job.Format,
		})
	}
	return job, nil
}

// JobStatus is a job plus its download link once completed.
type JobStatus struct {
	Job
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// Get returns the job and, when completed, a presigned download URL.
// Requesters only see their own jobs.
func (s *Service) Get(ctx context.Context, id, actorID uuid.UUID) (JobStatus, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return JobStatus{}, apperr.NotFound("export job not found")
		}
		return JobStatus{}, apperr.Internal("failed to load export job", err)
	}
	if job.RequestedBy != actorID {
		return JobStatus{}, apperr.NotFound("export job not found")
	}

	status := JobStatus{Job: job}
	if job.Status == JobCompleted && job.FileKey != nil && s.storage != nil {
		presigned, err := s.storage.GenerateDownloadURL(ctx, s.bucket, *job.FileKey, downloadURLExpiry)
		if err != nil {
			return JobStatus{}, apperr.Internal("failed to sign download url", err)
		}
		status.DownloadURL = presigned.URL
	}
	return status, nil
}

// Process builds and stores the report file. Run from the scheduler worker.
// Returning nil on a missing/claimed job makes task redelivery harmless.
func (s *Service) Process(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.repo.ClaimJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil
		}
		return fmt.Errorf("claim export job: %w", err)
	}

	rows, err := s.source.ExportRows(ctx, SourceParams{
		SchoolID:       job.SchoolID,
		AcademicYearID: job.AcademicYearID,
		Status:         job.EnquiryStatus,
	})
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("collect rows: %w", err))
	}

	content, contentType, err := buildFile(job.Format, rows)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("build %s: %w", job.Format, err))
	}

	fileKey := fmt.Sprintf("exports/%s/enquiries-%s.%s",
		job.CreatedAt.Format("2006-01"), job.ID, job.Format)
	if err := s.storage.UploadFile(ctx, s.bucket, fileKey, content, int64(content.Len()), contentType); err != nil {
		return s.fail(ctx, job, fmt.Errorf("upload: %w", err))
	}

	if err := s.repo.CompleteJob(ctx, job.ID, fileKey, len(rows)); err != nil {
		return fmt.Errorf("complete export job: %w", err)
	}

	s.log.Info("export job completed", "jobId", job.ID, "rows", len(rows), "fileKey", fileKey)
	if s.bus != nil {
		s.bus.Publish(ctx, events.ExportCompleted{
			BaseEvent:     events.NewBaseEvent(),
			JobID:         job.ID,
			SchoolID:      job.SchoolID,
			RequestedByID: job.RequestedBy,
			FileKey:       fileKey,
			RowCount:      len(rows),
		})
	}
	return nil
}

func (s *Service) fail(ctx context.Context, job Job, cause error) error {
	s.log.Error("export job failed", "jobId", job.ID, "error", cause)
	if err := s.repo.FailJob(ctx, job.ID, cause.Error()); err != nil {
		return fmt.Errorf("park export job: %w", err)
	}
	// The failure is recorded on the job; do not bounce the task.
	return nil
}
