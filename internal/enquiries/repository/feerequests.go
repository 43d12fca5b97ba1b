package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Fee request outbox statuses. A request is written as pending inside the
// triggering transaction, claimed by the scheduler, and settled as
// acknowledged or failed after the finance call.
type FeeRequestStatus string

const (
	FeeRequestPending      FeeRequestStatus = "pending"
	FeeRequestSent         FeeRequestStatus = "sent"
	FeeRequestAcknowledged FeeRequestStatus = "acknowledged"
	FeeRequestFailed       FeeRequestStatus = "failed"
)

const (
	FeeTypeRegistration = "registration"
	FeeTypeAdmission    = "admission"
)

// ErrFeeRequestNotFound is returned when a fee request row does not exist.
var ErrFeeRequestNotFound = errors.New("fee request not found")

// FeeRequest is one outbox row for an external fee trigger.
type FeeRequest struct {
	ID             uuid.UUID
	EnquiryID      uuid.UUID
	FeeType        string
	AcademicYearID int64
	Status         FeeRequestStatus
	Attempts       int
	LastError      *string
	RunAt          time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EnqueueFeeRequest inserts a pending outbox row unless an unsettled one for
// the same enquiry and fee type already exists, which makes re-evaluation of
// the trigger conditions idempotent.
func (r *Repository) EnqueueFeeRequest(ctx context.Context, enquiryID uuid.UUID, feeType string, academicYearID int64) (FeeRequest, bool, error) {
	var req FeeRequest
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, enquiry_id, fee_type, academic_year_id, status, attempts, last_error, run_at, created_at, updated_at
		FROM fee_requests
		WHERE enquiry_id = $1 AND fee_type = $2 AND status IN ('pending', 'sent')
		ORDER BY created_at DESC
		LIMIT 1`, enquiryID, feeType,
	).Scan(&req.ID, &req.EnquiryID, &req.FeeType, &req.AcademicYearID, &status,
		&req.Attempts, &req.LastError, &req.RunAt, &req.CreatedAt, &req.UpdatedAt)
	if err == nil {
		req.Status = FeeRequestStatus(status)
		return req, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return FeeRequest{}, false, err
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO fee_requests (enquiry_id, fee_type, academic_year_id, status, run_at)
		VALUES ($1, $2, $3, 'pending', now())
		RETURNING id, enquiry_id, fee_type, academic_year_id, status, attempts, last_error, run_at, created_at, updated_at`,
		enquiryID, feeType, academicYearID,
	).Scan(&req.ID, &req.EnquiryID, &req.FeeType, &req.AcademicYearID, &status,
		&req.Attempts, &req.LastError, &req.RunAt, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return FeeRequest{}, false, err
	}
	req.Status = FeeRequestStatus(status)
	return req, true, nil
}

// ClaimPendingFeeRequests picks due pending rows with FOR UPDATE SKIP LOCKED
// and marks them sent, so concurrent scheduler workers never double-dispatch.
func (r *Repository) ClaimPendingFeeRequests(ctx context.Context, limit int) ([]FeeRequest, error) {
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM fee_requests
		WHERE status = 'pending' AND run_at <= now()
		ORDER BY run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE fee_requests f
	SET status = 'sent', attempts = f.attempts + 1, updated_at = now()
	FROM cte
	WHERE f.id = cte.id
	RETURNING f.id, f.enquiry_id, f.fee_type, f.academic_year_id, f.status, f.attempts, f.last_error, f.run_at, f.created_at, f.updated_at`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	claimed := make([]FeeRequest, 0, limit)
	for rows.Next() {
		var req FeeRequest
		var status string
		if err := rows.Scan(&req.ID, &req.EnquiryID, &req.FeeType, &req.AcademicYearID, &status,
			&req.Attempts, &req.LastError, &req.RunAt, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		req.Status = FeeRequestStatus(status)
		claimed = append(claimed, req)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return claimed, nil
}

// SettleFeeRequest records the outcome of a dispatched fee request. Failures
// go back to pending with a delayed run_at so the scheduler retries them.
func (r *Repository) SettleFeeRequest(ctx context.Context, id uuid.UUID, status FeeRequestStatus, lastError *string, retryAt *time.Time) error {
	query := `
		UPDATE fee_requests
		SET status = $1, last_error = $2, updated_at = now()
		WHERE id = $3`
	args := []any{string(status), lastError, id}
	if retryAt != nil {
		query = `
		UPDATE fee_requests
		SET status = $1, last_error = $2, run_at = $4, updated_at = now()
		WHERE id = $3`
		args = append(args, *retryAt)
	}

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrFeeRequestNotFound
	}
	return nil
}

// AcknowledgeFeeRequests settles every unsettled request of a fee type for
// an enquiry, used when the payment webhook confirms the fee.
func (r *Repository) AcknowledgeFeeRequests(ctx context.Context, enquiryID uuid.UUID, feeType string) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE fee_requests
		SET status = 'acknowledged', updated_at = now()
		WHERE enquiry_id = $1 AND fee_type = $2 AND status IN ('pending', 'sent')`,
		enquiryID, feeType)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// ListFeeRequests returns an enquiry's outbox rows, newest first.
func (r *Repository) ListFeeRequests(ctx context.Context, enquiryID uuid.UUID) ([]FeeRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, enquiry_id, fee_type, academic_year_id, status, attempts, last_error, run_at, created_at, updated_at
		FROM fee_requests
		WHERE enquiry_id = $1
		ORDER BY created_at DESC`, enquiryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]FeeRequest, 0)
	for rows.Next() {
		var req FeeRequest
		var status string
		if err := rows.Scan(&req.ID, &req.EnquiryID, &req.FeeType, &req.AcademicYearID, &status,
			&req.Attempts, &req.LastError, &req.RunAt, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		req.Status = FeeRequestStatus(status)
		items = append(items, req)
	}
	return items, rows.Err()
}
