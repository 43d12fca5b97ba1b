package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Log event types. One constant per significant lifecycle transition; the
// free-form detail lives in log_data.
const (
	LogEventEnquiryClosed      = "ENQUIRY_CLOSED"
	LogEventEnquiryReopened    = "ENQUIRY_REOPENED"
	LogEventEnquiryTransferred = "ENQUIRY_TRANSFERRED"
	LogEventEnquiryReassigned  = "ENQUIRY_REASSIGNED"
	LogEventEnquiryMerged      = "ENQUIRY_MERGED"
	LogEventStageChanged       = "STAGE_STATUS_CHANGED"
	LogEventReferralVerified   = "REFERRAL_VERIFIED"
	LogEventReferralFailed     = "REFERRAL_VERIFICATION_FAILED"
	LogEventManualVerification = "REFERRAL_MANUAL_VERIFICATION"
	LogEventManualRejection    = "REFERRAL_MANUAL_REJECTION"
	LogEventPaymentRecorded    = "PAYMENT_RECORDED"
	LogEventDocumentUploaded   = "DOCUMENT_UPLOADED"
	LogEventFeeRequestQueued   = "FEE_REQUEST_QUEUED"
)

// ErrLogNotFound is returned when a log row does not exist.
var ErrLogNotFound = errors.New("enquiry log not found")

// Log is one immutable audit record on an enquiry. Rows are never updated;
// deletion exists only on the admin path.
type Log struct {
	ID           uuid.UUID
	EnquiryID    uuid.UUID
	EventType    string
	EventSubType *string
	Event        string
	LogData      map[string]any
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
}

type AppendLogParams struct {
	EnquiryID    uuid.UUID
	EventType    string
	EventSubType *string
	Event        string
	LogData      map[string]any
	CreatedBy    uuid.UUID
}

// AppendLog writes one audit record.
func (r *Repository) AppendLog(ctx context.Context, params AppendLogParams) (Log, error) {
	dataJSON, err := json.Marshal(params.LogData)
	if err != nil {
		return Log{}, err
	}

	var log Log
	// log_data is excluded from RETURNING: we already hold the decoded value.
	err = r.pool.QueryRow(ctx, `
		INSERT INTO enquiry_logs (enquiry_id, event_type, event_sub_type, event, log_data, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, enquiry_id, event_type, event_sub_type, event, created_by, created_at`,
		params.EnquiryID, params.EventType, params.EventSubType, params.Event, dataJSON, params.CreatedBy,
	).Scan(&log.ID, &log.EnquiryID, &log.EventType, &log.EventSubType, &log.Event, &log.CreatedBy, &log.CreatedAt)
	if err != nil {
		return Log{}, err
	}
	log.LogData = params.LogData
	return log, nil
}

// ListLogs returns an enquiry's audit trail, newest first.
func (r *Repository) ListLogs(ctx context.Context, enquiryID uuid.UUID, limit int) ([]Log, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, enquiry_id, event_type, event_sub_type, event, log_data, created_by, created_at
		FROM enquiry_logs
		WHERE enquiry_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, enquiryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]Log, 0, limit)
	for rows.Next() {
		var log Log
		var dataJSON []byte
		if err := rows.Scan(&log.ID, &log.EnquiryID, &log.EventType, &log.EventSubType,
			&log.Event, &dataJSON, &log.CreatedBy, &log.CreatedAt); err != nil {
			return nil, err
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &log.LogData); err != nil {
				return nil, err
			}
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// DeleteLog removes one audit record. Admin-only path.
func (r *Repository) DeleteLog(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM enquiry_logs WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLogNotFound
	}
	return nil
}

// ReassignLogs moves a merged enquiry's audit trail onto the surviving one.
func (r *Repository) ReassignLogs(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE enquiry_logs SET enquiry_id = $1 WHERE enquiry_id = $2", toID, fromID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
