package service

import (
	"context"
	"errors"
	"fmt"

	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/enquiries/transport"
	"admissions_backend/internal/events"
	"admissions_backend/platform/apperr"
	"admissions_backend/platform/phone"

	"github.com/google/uuid"
)

// VerifyReferral runs one automatic phone-match attempt for a referral side.
// The referral side matches against the source's priority-ordered phone
// list; the referrer side matches only the enquiry's own parent numbers.
// Verification is permanent; three failures lock the side for good.
func (s *Service) VerifyReferral(ctx context.Context, enquiryID uuid.UUID, req transport.VerifyReferralRequest, actorID uuid.UUID) (string, error) {
	if !domain.IsKnownSide(req.Side) {
		return "", apperr.Validation(fmt.Sprintf("unknown referral side %q", req.Side))
	}

	lock, err := s.acquireLock(ctx, enquiryID)
	if err != nil {
		return "", err
	}
	defer s.releaseLock(ctx, lock)

	enquiry, err := s.repo.GetByID(ctx, enquiryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperr.NotFound("enquiry not found")
		}
		return "", apperr.Internal("failed to load enquiry", err)
	}

	referral := enquiry.Referral
	state := referral.Side(req.Side)
	if state.Verified {
		return "", apperr.BusinessRule(req.Side + " is already verified")
	}
	// Locked wins over everything, including a phone that would match.
	if state.Locked() {
		return "", apperr.BusinessRule(req.Side + " verification is locked after too many failed attempts")
	}

	var candidates []string
	if req.Side == domain.SideReferral {
		candidates = referral.Source.PhoneNumbers()
	} else {
		candidates = enquiry.Parents.Phones()
	}
	if len(candidates) == 0 {
		return "", apperr.BusinessRule("no phone numbers on record to verify against")
	}

	matched := false
	for _, candidate := range candidates {
		if phone.Same(candidate, req.Phone) {
			matched = true
			break
		}
	}

	if matched {
		state.RecordSuccess(phone.NormalizeE164(req.Phone), s.now())
		if err := s.saveReferral(ctx, enquiry, referral); err != nil {
			return "", err
		}

		if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
			EnquiryID: enquiryID,
			EventType: repository.LogEventReferralVerified,
			Event:     req.Side + " verified by phone match",
			LogData:   map[string]any{"side": req.Side},
			CreatedBy: actorID,
		}); err != nil {
			s.log.Error("failed to write referral verification log", "enquiryId", enquiryID, "error", err)
		}

		s.publish(ctx, events.ReferralVerified{
			BaseEvent:    events.NewBaseEvent(),
			EnquiryID:    enquiryID,
			SchoolID:     enquiry.School.ID,
			ReferralType: referral.Source.Resolve(),
			VerifiedByID: actorID,
		})
		return req.Side + " verified", nil
	}

	left := state.RecordFailure()
	if err := s.saveReferral(ctx, enquiry, referral); err != nil {
		return "", err
	}

	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: enquiryID,
		EventType: repository.LogEventReferralFailed,
		Event:     req.Side + " phone match failed",
		LogData:   map[string]any{"side": req.Side, "failedAttempts": state.FailedAttempts},
		CreatedBy: actorID,
	}); err != nil {
		s.log.Error("failed to write referral failure log", "enquiryId", enquiryID, "error", err)
	}

	s.publish(ctx, events.ReferralVerificationFailed{
		BaseEvent:      events.NewBaseEvent(),
		EnquiryID:      enquiryID,
		SchoolID:       enquiry.School.ID,
		ReferralType:   referral.Source.Resolve(),
		FailedAttempts: state.FailedAttempts,
		Locked:         state.Locked(),
	})

	if state.Locked() {
		return "", apperr.BusinessRule("phone number does not match, " + req.Side + " verification is now locked")
	}
	return "", apperr.BusinessRule(fmt.Sprintf("phone number does not match, %d attempt(s) left", left))
}

// ManualReferral applies a staff verify or reject decision. Manual
// verification is terminal and cannot be undone; rejection is an
// independent flag.
func (s *Service) ManualReferral(ctx context.Context, enquiryID uuid.UUID, req transport.ManualReferralRequest, actorID uuid.UUID) error {
	lock, err := s.acquireLock(ctx, enquiryID)
	if err != nil {
		return err
	}
	defer s.releaseLock(ctx, lock)

	enquiry, err := s.repo.GetByID(ctx, enquiryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("enquiry not found")
		}
		return apperr.Internal("failed to load enquiry", err)
	}

	referral := enquiry.Referral
	now := s.now()

	switch req.Action {
	case "verify":
		if referral.ManuallyVerified != nil && referral.ManuallyVerified.Verified {
			return apperr.BusinessRule("referral is already manually verified")
		}
		referral.ManuallyVerified = &domain.ManualVerification{
			Verified:   true,
			VerifiedBy: actorID.String(),
			VerifiedAt: now,
			Remarks:    req.Remarks,
		}
	case "reject":
		referral.ManuallyRejected = &domain.ManualRejection{
			Rejected:   true,
			RejectedBy: actorID.String(),
			RejectedAt: now,
			Remarks:    req.Remarks,
		}
	default:
		return apperr.Validation(fmt.Sprintf("unknown action %q", req.Action))
	}

	if err := s.saveReferral(ctx, enquiry, referral); err != nil {
		return err
	}

	eventType := repository.LogEventManualVerification
	eventText := "referral manually verified by staff"
	if req.Action == "reject" {
		eventType = repository.LogEventManualRejection
		eventText = "referral manually rejected by staff"
	}
	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: enquiryID,
		EventType: eventType,
		Event:     eventText,
		LogData:   map[string]any{"action": req.Action, "remarks": req.Remarks},
		CreatedBy: actorID,
	}); err != nil {
		s.log.Error("failed to write manual referral log", "enquiryId", enquiryID, "error", err)
	}

	if req.Action == "verify" {
		s.publish(ctx, events.ReferralVerified{
			BaseEvent:    events.NewBaseEvent(),
			EnquiryID:    enquiryID,
			SchoolID:     enquiry.School.ID,
			ReferralType: referral.Source.Resolve(),
			Manual:       true,
			VerifiedByID: actorID,
		})
	}
	return nil
}

func (s *Service) saveReferral(ctx context.Context, enquiry repository.Enquiry, referral domain.ReferralDetails) error {
	_, err := s.repo.Update(ctx, enquiry.ID, enquiry.Revision, repository.UpdateParams{Referral: &referral})
	if err != nil {
		if errors.Is(err, repository.ErrRevisionConflict) {
			return apperr.Conflict("enquiry was modified concurrently, reload and retry")
		}
		return apperr.Internal("failed to save referral state", err)
	}
	return nil
}
