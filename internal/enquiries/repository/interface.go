package repository

import (
	"context"
	"time"

	"admissions_backend/internal/enquiries/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// EnquiryReader provides read-only access to enquiry data.
type EnquiryReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Enquiry, error)
	GetByEnquiryNumber(ctx context.Context, enquiryNumber string) (Enquiry, error)
	List(ctx context.Context, params ListParams) ([]Enquiry, int, error)
	GetRevision(ctx context.Context, id uuid.UUID) (int64, error)
}

// EnquiryWriter provides write operations for enquiries.
type EnquiryWriter interface {
	Create(ctx context.Context, params CreateEnquiryParams) (Enquiry, error)
	Update(ctx context.Context, id uuid.UUID, expectedRevision int64, params UpdateParams) (Enquiry, error)
}

// StageStore reads and mutates stage rows.
type StageStore interface {
	GetStages(ctx context.Context, enquiryID uuid.UUID) ([]domain.Stage, error)
	SetStageStatus(ctx context.Context, enquiryID uuid.UUID, stageName, status string) error
	ReplaceStageStatuses(ctx context.Context, enquiryID uuid.UUID, stages []domain.Stage) error
}

// DuplicateFinder runs the duplicate-matching queries.
type DuplicateFinder interface {
	FindDuplicatesByStudent(ctx context.Context, params DuplicateByStudentParams) ([]Enquiry, error)
	FindDuplicatesByContact(ctx context.Context, params DuplicateByContactParams) ([]Enquiry, error)
}

// LogStore records and reads the audit trail.
type LogStore interface {
	AppendLog(ctx context.Context, params AppendLogParams) (Log, error)
	ListLogs(ctx context.Context, enquiryID uuid.UUID, limit int) ([]Log, error)
	DeleteLog(ctx context.Context, id uuid.UUID) error
	ReassignLogs(ctx context.Context, fromID, toID uuid.UUID) (int64, error)
}

// FeeRequestStore is the fee-trigger outbox.
type FeeRequestStore interface {
	EnqueueFeeRequest(ctx context.Context, enquiryID uuid.UUID, feeType string, academicYearID int64) (FeeRequest, bool, error)
	ClaimPendingFeeRequests(ctx context.Context, limit int) ([]FeeRequest, error)
	SettleFeeRequest(ctx context.Context, id uuid.UUID, status FeeRequestStatus, lastError *string, retryAt *time.Time) error
	AcknowledgeFeeRequests(ctx context.Context, enquiryID uuid.UUID, feeType string) (int64, error)
	ListFeeRequests(ctx context.Context, enquiryID uuid.UUID) ([]FeeRequest, error)
}

// DocumentStore reads and mutates enquiry document rows.
type DocumentStore interface {
	AddDocument(ctx context.Context, params AddDocumentParams) (Document, error)
	ListDocuments(ctx context.Context, enquiryID uuid.UUID) ([]Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	SetDocumentVerified(ctx context.Context, id uuid.UUID, verified bool) error
	SoftDeleteDocument(ctx context.Context, id uuid.UUID) error
	ReassignDocuments(ctx context.Context, fromID, toID uuid.UUID) (int64, error)
}
