// Package exports provides asynchronous enquiry report generation: a job
// row is created on request, the scheduler worker builds the CSV/XLSX file,
// uploads it to object storage and completes the job.
package exports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrJobNotFound = errors.New("export job not found")

// Job statuses.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Job is one export job record.
type Job struct {
	ID             uuid.UUID  `json:"id"`
	Format         string     `json:"format"`
	Status         string     `json:"status"`
	FileKey        *string    `json:"-"`
	RowCount       int        `json:"rowCount"`
	RequestedBy    uuid.UUID  `json:"requestedBy"`
	SchoolID       int64      `json:"schoolId,omitempty"`
	AcademicYearID int64      `json:"academicYearId,omitempty"`
	EnquiryStatus  string     `json:"enquiryStatus,omitempty"`
	Error          *string    `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// Repository provides data access for export jobs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new export job repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const jobColumns = `
	id, format, status, file_key, row_count, requested_by,
	school_id, academic_year_id, enquiry_status, error, created_at, completed_at`

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Format, &j.Status, &j.FileKey, &j.RowCount, &j.RequestedBy,
		&j.SchoolID, &j.AcademicYearID, &j.EnquiryStatus, &j.Error, &j.CreatedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return j, err
}

// CreateJobParams seeds a pending export job.
type CreateJobParams struct {
	Format         string
	RequestedBy    uuid.UUID
	SchoolID       int64
	AcademicYearID int64
	EnquiryStatus  string
}

func (r *Repository) CreateJob(ctx context.Context, params CreateJobParams) (Job, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO export_jobs (id, format, status, requested_by, school_id, academic_year_id, enquiry_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING`+jobColumns,
		uuid.New(), params.Format, JobPending, params.RequestedBy,
		params.SchoolID, params.AcademicYearID, params.EnquiryStatus)
	return scanJob(row)
}

func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+jobColumns+` FROM export_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ClaimJob moves a pending job to processing. Returns the job or
// ErrJobNotFound when the job is gone or already taken, which makes task
// redelivery harmless.
func (r *Repository) ClaimJob(ctx context.Context, id uuid.UUID) (Job, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE export_jobs SET status = $2 WHERE id = $1 AND status = $3
		RETURNING`+jobColumns,
		id, JobProcessing, JobPending)
	return scanJob(row)
}

// CompleteJob records the stored file and row count.
func (r *Repository) CompleteJob(ctx context.Context, id uuid.UUID, fileKey string, rowCount int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE export_jobs
		SET status = $2, file_key = $3, row_count = $4, completed_at = now()
		WHERE id = $1`,
		id, JobCompleted, fileKey, rowCount)
	return err
}

// FailJob parks the job with its error message.
func (r *Repository) FailJob(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE export_jobs
		SET status = $2, error = $3, completed_at = now()
		WHERE id = $1`,
		id, JobFailed, message)
	return err
}
