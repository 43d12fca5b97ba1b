package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/enquiries/transport"
	"admissions_backend/internal/events"
	"admissions_backend/platform/apperr"

	"github.com/google/uuid"
)

// RecordPayment processes an inbound payment-gateway webhook. The signature
// covers enquiryNumber|feeType|amountPaise|transactionId with the shared
// webhook secret; an invalid signature is rejected before any lookup.
//
// Registration payments set the fees-paid flag; admission payments complete
// the Payment stage and activate its successor. Both settle the matching
// outbox rows and write one audit record. Replays of the same transaction id
// are acknowledged without a second mutation.
func (s *Service) RecordPayment(ctx context.Context, req transport.PaymentWebhookRequest) error {
	if s.webhookSecret == "" {
		return apperr.Internal("payment webhook secret is not configured", nil)
	}
	if !validSignature(s.webhookSecret, req) {
		return apperr.Unauthorized("invalid webhook signature")
	}

	paidAt := s.now()
	if req.PaidAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			return apperr.Validation("paidAt must be RFC 3339")
		}
		paidAt = parsed
	}

	enquiry, err := s.repo.GetByEnquiryNumber(ctx, req.EnquiryNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("enquiry not found")
		}
		return apperr.Internal("failed to load enquiry", err)
	}

	lock, err := s.acquireLock(ctx, enquiry.ID)
	if err != nil {
		return err
	}
	defer s.releaseLock(ctx, lock)

	// Reload under the lock; the webhook races counsellor edits.
	enquiry, err = s.repo.GetByID(ctx, enquiry.ID)
	if err != nil {
		return apperr.Internal("failed to load enquiry", err)
	}

	if replayed, err := s.paymentSeen(ctx, enquiry.ID, req.TransactionID); err != nil {
		return apperr.Internal("failed to check payment history", err)
	} else if replayed {
		return nil
	}

	switch req.FeeType {
	case repository.FeeTypeRegistration:
		if err := s.applyRegistrationPayment(ctx, &enquiry); err != nil {
			return err
		}
	case repository.FeeTypeAdmission:
		if err := s.applyAdmissionPayment(ctx, &enquiry); err != nil {
			return err
		}
	default:
		return apperr.Validation(fmt.Sprintf("unknown fee type %q", req.FeeType))
	}

	if _, err := s.repo.AcknowledgeFeeRequests(ctx, enquiry.ID, req.FeeType); err != nil {
		s.log.Error("failed to acknowledge fee requests", "enquiryId", enquiry.ID, "error", err)
	}

	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: enquiry.ID,
		EventType: repository.LogEventPaymentRecorded,
		Event:     fmt.Sprintf("%s payment of %d paise recorded", req.FeeType, req.AmountPaise),
		LogData: map[string]any{
			"feeType":       req.FeeType,
			"amountPaise":   req.AmountPaise,
			"transactionId": req.TransactionID,
			"paidAt":        paidAt.Format(time.RFC3339),
		},
		CreatedBy: uuid.Nil,
	}); err != nil {
		s.log.Error("failed to write payment log", "enquiryId", enquiry.ID, "error", err)
	}

	s.publish(ctx, events.PaymentRecorded{
		BaseEvent:     events.NewBaseEvent(),
		EnquiryID:     enquiry.ID,
		SchoolID:      enquiry.School.ID,
		StageKey:      domain.StagePayment,
		AmountPaise:   req.AmountPaise,
		TransactionID: req.TransactionID,
		PaidAt:        paidAt,
	})
	return nil
}

// paymentSeen reports whether a payment log already carries this transaction
// id. The gateway retries webhooks on timeouts, so replays are routine.
func (s *Service) paymentSeen(ctx context.Context, enquiryID uuid.UUID, transactionID string) (bool, error) {
	logs, err := s.repo.ListLogs(ctx, enquiryID, 200)
	if err != nil {
		return false, err
	}
	for _, entry := range logs {
		if entry.EventType != repository.LogEventPaymentRecorded {
			continue
		}
		if seen, ok := entry.LogData["transactionId"].(string); ok && seen == transactionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) applyRegistrationPayment(ctx context.Context, enquiry *repository.Enquiry) error {
	changed := false
	if domain.StageStatus(enquiry.Stages, domain.StageRegistration) == domain.StageStatusInProgress {
		changed = domain.MoveToNextStage(enquiry.Stages, domain.StageRegistration)
	}

	if !enquiry.RegistrationFeesPaid {
		paid := true
		updated, err := s.repo.Update(ctx, enquiry.ID, enquiry.Revision, repository.UpdateParams{
			RegistrationFeesPaid: &paid,
		})
		if err != nil {
			if errors.Is(err, repository.ErrRevisionConflict) {
				return apperr.Conflict("enquiry was modified concurrently, retry the webhook")
			}
			return apperr.Internal("failed to mark registration fees paid", err)
		}
		stages := enquiry.Stages
		*enquiry = updated
		enquiry.Stages = stages
	}

	if changed {
		if err := s.repo.ReplaceStageStatuses(ctx, enquiry.ID, enquiry.Stages); err != nil {
			return apperr.Internal("failed to advance registration stage", err)
		}
	}
	return nil
}

func (s *Service) applyAdmissionPayment(ctx context.Context, enquiry *repository.Enquiry) error {
	if domain.StageStatus(enquiry.Stages, domain.StagePayment) == "" {
		return apperr.BusinessRule("enquiry has no payment stage")
	}
	if !domain.MoveToNextStage(enquiry.Stages, domain.StagePayment) {
		// Already completed or blocked by the transition table; a replayed
		// webhook lands here and must not fail.
		return nil
	}
	if err := s.repo.ReplaceStageStatuses(ctx, enquiry.ID, enquiry.Stages); err != nil {
		return apperr.Internal("failed to advance payment stage", err)
	}
	return nil
}

func validSignature(secret string, req transport.PaymentWebhookRequest) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s|%d|%s", req.EnquiryNumber, req.FeeType, req.AmountPaise, req.TransactionID)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(req.Signature))
}
