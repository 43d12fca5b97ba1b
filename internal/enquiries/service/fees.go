package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/enquiries/ports"
	"admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/enquiries/transport"
	"admissions_backend/internal/events"
	"admissions_backend/platform/apperr"

	"github.com/google/uuid"
)

// admissionTriggerStatuses are the payment/admission stage statuses that
// (re)start the external admission workflow.
var admissionTriggerStatuses = map[string]struct{}{
	domain.StageStatusInProgress: {},
	domain.StageStatusPending:    {},
	domain.StageStatusApproved:   {},
}

// EvaluateFeeTriggers inspects the enquiry's pipeline and queues the fee
// requests the current state warrants. Evaluated on create, update and
// transfer. Queueing goes through the fee-request outbox, which makes
// repeated evaluation idempotent while a request is unsettled.
func (s *Service) EvaluateFeeTriggers(ctx context.Context, enquiry *repository.Enquiry, actorID uuid.UUID) error {
	if domain.StageStatus(enquiry.Stages, domain.StageRegistration) == domain.StageStatusInProgress {
		if err := s.triggerRegistrationFee(ctx, enquiry, actorID); err != nil {
			return err
		}
	}

	paymentStatus := domain.StageStatus(enquiry.Stages, domain.StagePayment)
	admissionStatus := domain.StageStatus(enquiry.Stages, domain.StageAdmission)
	_, paymentHit := admissionTriggerStatuses[paymentStatus]
	_, admissionHit := admissionTriggerStatuses[admissionStatus]
	if paymentHit || admissionHit {
		if err := s.triggerAdmissionWorkflow(ctx, enquiry, actorID); err != nil {
			return err
		}
	}
	return nil
}

// triggerRegistrationFee queues a registration fee request. Before queueing
// it consults the finance system: a fully-paid registration fee upstream
// suppresses creation, an absent or partially-paid one allows it. The
// trigger flag write happens regardless of that outcome.
func (s *Service) triggerRegistrationFee(ctx context.Context, enquiry *repository.Enquiry, actorID uuid.UUID) error {
	attach := true
	if s.finance != nil && enquiry.Student.GlobalID != nil {
		fees, err := s.finance.ListFees(ctx, *enquiry.Student.GlobalID, enquiry.AcademicYear.ID)
		if err != nil {
			// Default to "no existing fee" so the request is re-attached;
			// the finance side deduplicates on its end.
			s.log.UpstreamError("finance", "list fees", err)
		} else {
			for _, fee := range fees {
				if fee.FeeType == repository.FeeTypeRegistration && fee.FullyPaid() {
					attach = false
					break
				}
			}
		}
	}

	if attach {
		request, created, err := s.repo.EnqueueFeeRequest(ctx, enquiry.ID, repository.FeeTypeRegistration, enquiry.AcademicYear.ID)
		if err != nil {
			return fmt.Errorf("enqueue registration fee request: %w", err)
		}
		if created {
			s.logFeeRequestQueued(ctx, enquiry.ID, request, actorID)
			s.publish(ctx, events.FeeRequestQueued{
				BaseEvent:    events.NewBaseEvent(),
				FeeRequestID: request.ID,
				EnquiryID:    enquiry.ID,
				SchoolID:     enquiry.School.ID,
				Kind:         repository.FeeTypeRegistration,
			})
		}
	}

	if !enquiry.RegistrationFeeRequestTriggered {
		triggered := true
		updated, err := s.repo.Update(ctx, enquiry.ID, enquiry.Revision, repository.UpdateParams{
			RegistrationFeeRequestTriggered: &triggered,
		})
		if err != nil {
			if errors.Is(err, repository.ErrRevisionConflict) {
				s.log.Warn("registration trigger flag lost a concurrent write", "enquiryId", enquiry.ID)
				return nil
			}
			return fmt.Errorf("set registration trigger flag: %w", err)
		}
		*enquiry = updated
	}
	return nil
}

// triggerAdmissionWorkflow restarts the external admission workflow: the
// existing workflow is disabled, Payment resets to Open and Admission to
// Pending, the workflow is re-triggered and the admission fee request is
// queued. The outbox suppresses re-entry while a request is unsettled.
func (s *Service) triggerAdmissionWorkflow(ctx context.Context, enquiry *repository.Enquiry, actorID uuid.UUID) error {
	request, created, err := s.repo.EnqueueFeeRequest(ctx, enquiry.ID, repository.FeeTypeAdmission, enquiry.AcademicYear.ID)
	if err != nil {
		return fmt.Errorf("enqueue admission fee request: %w", err)
	}
	if !created {
		// An unsettled admission request already exists; the workflow was
		// restarted when it was queued.
		return nil
	}

	if s.adminPanel != nil {
		if err := s.adminPanel.DisableAdmissionWorkflow(ctx, enquiry.EnquiryNumber, enquiry.School.ID); err != nil {
			s.log.UpstreamError("admin-panel", "disable workflow", err)
		}
	}

	changed := false
	if idx := domain.FindStage(enquiry.Stages, domain.StagePayment); idx >= 0 &&
		enquiry.Stages[idx].Status != domain.StageStatusOpen &&
		domain.CanTransition(enquiry.Stages[idx].Status, domain.StageStatusOpen) {
		enquiry.Stages[idx].Status = domain.StageStatusOpen
		changed = true
	}
	if idx := domain.FindStage(enquiry.Stages, domain.StageAdmission); idx >= 0 &&
		enquiry.Stages[idx].Status != domain.StageStatusPending &&
		domain.CanTransition(enquiry.Stages[idx].Status, domain.StageStatusPending) {
		enquiry.Stages[idx].Status = domain.StageStatusPending
		changed = true
	}
	if changed {
		if err := s.repo.ReplaceStageStatuses(ctx, enquiry.ID, enquiry.Stages); err != nil {
			return fmt.Errorf("reset payment/admission stages: %w", err)
		}
	}

	if s.adminPanel != nil {
		if err := s.adminPanel.TriggerAdmissionWorkflow(ctx, enquiry.EnquiryNumber, enquiry.School.ID); err != nil {
			s.log.UpstreamError("admin-panel", "trigger workflow", err)
		}
	}

	if enquiry.AdmissionFeeRequestTriggered {
		reset := false
		updated, err := s.repo.Update(ctx, enquiry.ID, enquiry.Revision, repository.UpdateParams{
			AdmissionFeeRequestTriggered: &reset,
		})
		if err != nil {
			if errors.Is(err, repository.ErrRevisionConflict) {
				s.log.Warn("admission trigger flag lost a concurrent write", "enquiryId", enquiry.ID)
			} else {
				return fmt.Errorf("reset admission trigger flag: %w", err)
			}
		} else {
			*enquiry = updated
		}
	}

	s.logFeeRequestQueued(ctx, enquiry.ID, request, actorID)
	s.publish(ctx, events.FeeRequestQueued{
		BaseEvent:    events.NewBaseEvent(),
		FeeRequestID: request.ID,
		EnquiryID:    enquiry.ID,
		SchoolID:     enquiry.School.ID,
		Kind:         repository.FeeTypeAdmission,
	})
	return nil
}

func (s *Service) logFeeRequestQueued(ctx context.Context, enquiryID uuid.UUID, request repository.FeeRequest, actorID uuid.UUID) {
	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: enquiryID,
		EventType: repository.LogEventFeeRequestQueued,
		Event:     fmt.Sprintf("%s fee request queued", request.FeeType),
		LogData: map[string]any{
			"feeRequestId": request.ID.String(),
			"feeType":      request.FeeType,
		},
		CreatedBy: actorID,
	}); err != nil {
		s.log.Error("failed to write fee request log", "enquiryId", enquiryID, "error", err)
	}
}

// ListFeeRequests exposes an enquiry's outbox rows for support inspection.
func (s *Service) ListFeeRequests(ctx context.Context, enquiryID uuid.UUID) ([]transport.FeeRequestResponse, error) {
	requests, err := s.repo.ListFeeRequests(ctx, enquiryID)
	if err != nil {
		return nil, apperr.Internal("failed to list fee requests", err)
	}
	out := make([]transport.FeeRequestResponse, len(requests))
	for i, request := range requests {
		out[i] = transport.ToFeeRequestResponse(request)
	}
	return out, nil
}

// feeRetryDelay spaces out re-dispatch of failed fee requests.
const feeRetryDelay = 15 * time.Minute

// maxFeeAttempts bounds outbox retries before a request parks as failed.
const maxFeeAttempts = 5

// DispatchPendingFeeRequests claims due outbox rows and performs the actual
// finance calls. Run from the scheduler worker; safe to run concurrently on
// several instances thanks to the claim semantics.
func (s *Service) DispatchPendingFeeRequests(ctx context.Context, limit int) (int, error) {
	if s.finance == nil {
		return 0, nil
	}

	claimed, err := s.repo.ClaimPendingFeeRequests(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("claim fee requests: %w", err)
	}

	dispatched := 0
	for _, request := range claimed {
		if err := s.dispatchFeeRequest(ctx, request); err != nil {
			message := err.Error()
			if request.Attempts >= maxFeeAttempts {
				if settleErr := s.repo.SettleFeeRequest(ctx, request.ID, repository.FeeRequestFailed, &message, nil); settleErr != nil {
					s.log.Error("failed to park fee request", "feeRequestId", request.ID, "error", settleErr)
				}
				s.log.Error("fee request exhausted retries", "feeRequestId", request.ID, "error", err)
				continue
			}
			retryAt := s.now().Add(feeRetryDelay)
			if settleErr := s.repo.SettleFeeRequest(ctx, request.ID, repository.FeeRequestPending, &message, &retryAt); settleErr != nil {
				s.log.Error("failed to reschedule fee request", "feeRequestId", request.ID, "error", settleErr)
			}
			continue
		}
		dispatched++
	}
	return dispatched, nil
}

func (s *Service) dispatchFeeRequest(ctx context.Context, request repository.FeeRequest) error {
	enquiry, err := s.repo.GetByID(ctx, request.EnquiryID)
	if err != nil {
		return fmt.Errorf("load enquiry: %w", err)
	}
	if enquiry.Student.GlobalID == nil {
		return errors.New("student has no global id yet")
	}

	err = s.finance.CreateFee(ctx, ports.CreateFeeParams{
		StudentGlobalID: *enquiry.Student.GlobalID,
		SchoolID:        enquiry.School.ID,
		AcademicYearID:  request.AcademicYearID,
		GradeID:         enquiry.Grade.ID,
		FeeType:         request.FeeType,
		EnquiryNumber:   enquiry.EnquiryNumber,
	})
	if err != nil {
		return fmt.Errorf("create fee upstream: %w", err)
	}
	return nil
}

// BulkDeEnroll removes the student's pending fees from finance before a
// transfer. Per-fee failures are logged and swallowed: de-enrollment is
// best effort, not atomic.
func (s *Service) BulkDeEnroll(ctx context.Context, enquiry repository.Enquiry) {
	if s.finance == nil || enquiry.Student.GlobalID == nil {
		return
	}

	feeIDs, err := s.finance.ListPendingFees(ctx, *enquiry.Student.GlobalID, enquiry.AcademicYear.ID)
	if err != nil {
		s.log.UpstreamError("finance", "list pending fees", err)
		return
	}

	for _, feeID := range feeIDs {
		if err := s.finance.DeEnrollFee(ctx, feeID, s.deEnrollReasonID); err != nil {
			s.log.UpstreamError("finance", fmt.Sprintf("de-enroll fee %d", feeID), err)
		}
	}
}
