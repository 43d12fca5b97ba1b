// Package service materializes admission records from the enquiry pipeline
// and manages their approval status.
package service

import (
	"context"
	"errors"

	"admissions_backend/internal/admissions/repository"
	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/events"
	"admissions_backend/platform/apperr"
	"admissions_backend/platform/logger"

	"github.com/google/uuid"
)

// EnquirySnapshot is the slice of an enquiry the admission record needs.
type EnquirySnapshot struct {
	EnquiryID       uuid.UUID
	SchoolID        int64
	AcademicYear    string
	GradeID         int64
	StudentName     string
	StudentGlobalID *int64
	EnrolmentNumber *string
	AdmissionStatus string
}

// EnquiryReader reads enquiry snapshots from the enquiries context. The
// adapter in the composition root implements it.
type EnquiryReader interface {
	Snapshot(ctx context.Context, enquiryID uuid.UUID) (EnquirySnapshot, error)
}

// Repository defines the data access interface needed by the admission
// service.
type Repository interface {
	Ensure(ctx context.Context, params repository.EnsureParams) (repository.Admission, bool, error)
	GetByEnquiry(ctx context.Context, enquiryID uuid.UUID) (repository.Admission, error)
	List(ctx context.Context, params repository.ListParams) ([]repository.Admission, error)
	SetApproval(ctx context.Context, enquiryID uuid.UUID, status string, approvedBy uuid.UUID) (repository.Admission, error)
}

// Service implements the admission record operations.
type Service struct {
	repo      Repository
	enquiries EnquiryReader
	bus       events.Bus
	log       *logger.Logger
}

func New(repo Repository, enquiries EnquiryReader, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, enquiries: enquiries, bus: bus, log: log}
}

// ensureStatuses are the payment/admission stage statuses that materialize
// the admission record.
var ensureStatuses = map[string]struct{}{
	domain.StageStatusInProgress:           {},
	domain.StageStatusPending:              {},
	domain.StageStatusApproved:             {},
	domain.StageStatusAdmitted:             {},
	domain.StageStatusProvisionalAdmission: {},
}

// HandleStageChanged materializes the admission record when the pipeline
// reaches the payment/admission stages. Idempotent: repeat stage changes on
// an existing record are no-ops.
func (s *Service) HandleStageChanged(ctx context.Context, event events.EnquiryStageChanged) error {
	if event.StageKey != domain.StagePayment && event.StageKey != domain.StageAdmission {
		return nil
	}
	if _, hit := ensureStatuses[event.NewStatus]; !hit {
		return nil
	}

	snapshot, err := s.enquiries.Snapshot(ctx, event.EnquiryID)
	if err != nil {
		return apperr.Internal("failed to load enquiry for admission", err)
	}

	provisional := snapshot.AdmissionStatus == domain.StageStatusProvisionalAdmission
	admission, created, err := s.repo.Ensure(ctx, repository.EnsureParams{
		EnquiryID:       event.EnquiryID,
		StudentGlobalID: snapshot.StudentGlobalID,
		EnrolmentNumber: snapshot.EnrolmentNumber,
		Provisional:     provisional,
	})
	if err != nil {
		return apperr.Internal("failed to materialize admission", err)
	}
	if !created {
		return nil
	}

	s.log.Info("admission record created", "enquiryId", event.EnquiryID, "provisional", provisional)
	if s.bus != nil {
		s.bus.Publish(ctx, events.AdmissionCreated{
			BaseEvent:    events.NewBaseEvent(),
			AdmissionID:  admission.ID,
			EnquiryID:    event.EnquiryID,
			SchoolID:     snapshot.SchoolID,
			AcademicYear: snapshot.AcademicYear,
			GradeID:      snapshot.GradeID,
			StudentName:  snapshot.StudentName,
			Provisional:  provisional,
		})
	}
	return nil
}

// Get returns the admission record for an enquiry.
func (s *Service) Get(ctx context.Context, enquiryID uuid.UUID) (repository.Admission, error) {
	admission, err := s.repo.GetByEnquiry(ctx, enquiryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Admission{}, apperr.NotFound("admission not found")
		}
		return repository.Admission{}, apperr.Internal("failed to load admission", err)
	}
	return admission, nil
}

// List returns admission records matching the filters.
func (s *Service) List(ctx context.Context, params repository.ListParams) ([]repository.Admission, error) {
	admissions, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, apperr.Internal("failed to list admissions", err)
	}
	return admissions, nil
}

// SetApproval updates the admission approval status.
func (s *Service) SetApproval(ctx context.Context, enquiryID uuid.UUID, status string, actorID uuid.UUID) (repository.Admission, error) {
	switch status {
	case repository.ApprovalPending, repository.ApprovalApproved,
		repository.ApprovalRejected, repository.ApprovalProvisional:
	default:
		return repository.Admission{}, apperr.Validation("unknown approval status")
	}

	admission, err := s.repo.SetApproval(ctx, enquiryID, status, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Admission{}, apperr.NotFound("admission not found")
		}
		return repository.Admission{}, apperr.Internal("failed to update approval status", err)
	}
	return admission, nil
}
