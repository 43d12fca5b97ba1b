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

	"github.com/google/uuid"
)

// lateStageCutoff is the first pipeline position whose progress blocks a
// reopen. Stages at or past this index represent paid or assessed work that
// cannot be resumed by flipping the status back.
const lateStageCutoff = 5

// Transfer moves a batch of enquiries to another school and/or academic
// year. Items are processed sequentially and failures are isolated: one bad
// enquiry never aborts the rest of the batch.
func (s *Service) Transfer(ctx context.Context, req transport.TransferRequest, actorID uuid.UUID) (transport.BatchResponse, error) {
	if req.School == nil && req.AcademicYear == nil {
		return transport.BatchResponse{}, apperr.Validation("a destination school or academic year is required")
	}

	out := transport.BatchResponse{Succeeded: []uuid.UUID{}, Failed: []transport.BatchFailure{}}
	for _, id := range req.EnquiryIDs {
		if err := s.transferOne(ctx, id, req, actorID); err != nil {
			out.Failed = append(out.Failed, transport.BatchFailure{EnquiryID: id, Reason: apperr.Message(err)})
			continue
		}
		out.Succeeded = append(out.Succeeded, id)
	}
	return out, nil
}

func (s *Service) transferOne(ctx context.Context, id uuid.UUID, req transport.TransferRequest, actorID uuid.UUID) error {
	lock, err := s.acquireLock(ctx, id)
	if err != nil {
		return err
	}
	defer s.releaseLock(ctx, lock)

	enquiry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("enquiry not found")
		}
		return apperr.Internal("failed to load enquiry", err)
	}
	if enquiry.Status != domain.EnquiryStatusOpen {
		return apperr.BusinessRule("only open enquiries can be transferred")
	}

	yearChanges := req.AcademicYear != nil && req.AcademicYear.ID != enquiry.AcademicYear.ID
	if yearChanges && domain.StageStatus(enquiry.Stages, domain.StageRegistration) == domain.StageStatusInProgress {
		return apperr.BusinessRule("registration is in progress, cannot move to a different academic year")
	}

	// Pending fees belong to the old school/year context. De-enrollment is
	// best effort and must happen before the row moves.
	s.BulkDeEnroll(ctx, enquiry)

	params := repository.UpdateParams{}
	if req.School != nil {
		school := refFromDTO(*req.School)
		params.School = &school
	}
	if req.AcademicYear != nil {
		year := refFromDTO(*req.AcademicYear)
		params.AcademicYear = &year
	}

	updated, err := s.repo.Update(ctx, id, enquiry.Revision, params)
	if err != nil {
		if errors.Is(err, repository.ErrRevisionConflict) {
			return apperr.Conflict("enquiry was modified concurrently, reload and retry")
		}
		return apperr.Internal("failed to transfer enquiry", err)
	}

	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: id,
		EventType: repository.LogEventEnquiryTransferred,
		Event:     fmt.Sprintf("Enquiry transferred to %s / %s", updated.School.Value, updated.AcademicYear.Value),
		LogData: map[string]any{
			"fromSchoolId": enquiry.School.ID,
			"toSchoolId":   updated.School.ID,
			"fromYear":     enquiry.AcademicYear.Value,
			"toYear":       updated.AcademicYear.Value,
		},
		CreatedBy: actorID,
	}); err != nil {
		s.log.Error("failed to write transfer log", "enquiryId", id, "error", err)
	}

	s.publish(ctx, events.EnquiryTransferred{
		BaseEvent:       events.NewBaseEvent(),
		EnquiryID:       id,
		FromSchoolID:    enquiry.School.ID,
		ToSchoolID:      updated.School.ID,
		FromYear:        enquiry.AcademicYear.Value,
		ToYear:          updated.AcademicYear.Value,
		TransferredByID: actorID,
	})

	if err := s.EvaluateFeeTriggers(ctx, &updated, actorID); err != nil {
		s.log.Error("fee trigger evaluation failed after transfer", "enquiryId", id, "error", err)
	}
	return nil
}

// Reassign hands a batch of enquiries to another counsellor.
func (s *Service) Reassign(ctx context.Context, req transport.ReassignRequest, actorID uuid.UUID) (transport.BatchResponse, error) {
	out := transport.BatchResponse{Succeeded: []uuid.UUID{}, Failed: []transport.BatchFailure{}}
	for _, id := range req.EnquiryIDs {
		if err := s.reassignOne(ctx, id, req.AssigneeID, actorID); err != nil {
			out.Failed = append(out.Failed, transport.BatchFailure{EnquiryID: id, Reason: apperr.Message(err)})
			continue
		}
		out.Succeeded = append(out.Succeeded, id)
	}
	return out, nil
}

func (s *Service) reassignOne(ctx context.Context, id, assigneeID, actorID uuid.UUID) error {
	enquiry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("enquiry not found")
		}
		return apperr.Internal("failed to load enquiry", err)
	}
	if enquiry.AssignedTo != nil && *enquiry.AssignedTo == assigneeID {
		return apperr.BusinessRule("enquiry is already assigned to this counsellor")
	}

	if _, err := s.repo.Update(ctx, id, enquiry.Revision, repository.UpdateParams{AssignedTo: &assigneeID}); err != nil {
		if errors.Is(err, repository.ErrRevisionConflict) {
			return apperr.Conflict("enquiry was modified concurrently, reload and retry")
		}
		return apperr.Internal("failed to reassign enquiry", err)
	}

	logData := map[string]any{"newCounsellor": assigneeID.String()}
	if enquiry.AssignedTo != nil {
		logData["previousCounsellor"] = enquiry.AssignedTo.String()
	}
	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: id,
		EventType: repository.LogEventEnquiryReassigned,
		Event:     "Enquiry reassigned to a new counsellor",
		LogData:   logData,
		CreatedBy: actorID,
	}); err != nil {
		s.log.Error("failed to write reassignment log", "enquiryId", id, "error", err)
	}

	s.publish(ctx, events.EnquiryReassigned{
		BaseEvent:           events.NewBaseEvent(),
		EnquiryID:           id,
		SchoolID:            enquiry.School.ID,
		PreviousCounsellor:  enquiry.AssignedTo,
		NewCounsellor:       assigneeID,
		ReassignedByID:      actorID,
		NotifyNewCounsellor: true,
	})
	return nil
}

// Reopen restores closed enquiries to Open after validating that the
// pipeline and the student's other enquiries permit it.
func (s *Service) Reopen(ctx context.Context, req transport.ReopenRequest, actorID uuid.UUID) (transport.BatchResponse, error) {
	out := transport.BatchResponse{Succeeded: []uuid.UUID{}, Failed: []transport.BatchFailure{}}
	for _, id := range req.EnquiryIDs {
		if err := s.reopenOne(ctx, id, actorID); err != nil {
			out.Failed = append(out.Failed, transport.BatchFailure{EnquiryID: id, Reason: apperr.Message(err)})
			continue
		}
		out.Succeeded = append(out.Succeeded, id)
	}
	return out, nil
}

func (s *Service) reopenOne(ctx context.Context, id, actorID uuid.UUID) error {
	lock, err := s.acquireLock(ctx, id)
	if err != nil {
		return err
	}
	defer s.releaseLock(ctx, lock)

	enquiry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("enquiry not found")
		}
		return apperr.Internal("failed to load enquiry", err)
	}
	if enquiry.Status != domain.EnquiryStatusClosed {
		return apperr.BusinessRule("only closed enquiries can be reopened")
	}

	for _, stage := range enquiry.Stages {
		if stage.Position >= lateStageCutoff && stage.Status != domain.StageStatusOpen {
			return apperr.BusinessRule(fmt.Sprintf("stage %q has already progressed, reopen is not possible", stage.StageName))
		}
	}

	if s.mdm != nil {
		currentYear, err := s.mdm.CurrentAcademicYearID(ctx)
		if err != nil {
			s.log.UpstreamError("mdm", "current academic year", err)
		} else if enquiry.AcademicYear.ID < currentYear {
			return apperr.BusinessRule("enquiry belongs to a past academic year")
		}
	}

	matches, err := s.repo.FindDuplicatesByStudent(ctx, repository.DuplicateByStudentParams{
		FirstName:   enquiry.Student.FirstName,
		LastName:    enquiry.Student.LastName,
		DOB:         enquiry.Student.DOB,
		EnquiryType: enquiry.EnquiryType,
		SchoolID:    enquiry.School.ID,
		ExcludeID:   &enquiry.ID,
	})
	if err != nil {
		return apperr.Internal("failed to check for open duplicates", err)
	}
	for _, match := range matches {
		if match.Status == domain.EnquiryStatusOpen {
			return apperr.BusinessRule("another open enquiry exists for this student")
		}
	}

	status := domain.EnquiryStatusOpen
	if _, err := s.repo.Update(ctx, id, enquiry.Revision, repository.UpdateParams{Status: &status}); err != nil {
		if errors.Is(err, repository.ErrRevisionConflict) {
			return apperr.Conflict("enquiry was modified concurrently, reload and retry")
		}
		return apperr.Internal("failed to reopen enquiry", err)
	}

	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: id,
		EventType: repository.LogEventEnquiryReopened,
		Event:     "Enquiry reopened",
		CreatedBy: actorID,
	}); err != nil {
		s.log.Error("failed to write reopen log", "enquiryId", id, "error", err)
	}

	s.publish(ctx, events.EnquiryReopened{
		BaseEvent:    events.NewBaseEvent(),
		EnquiryID:    id,
		SchoolID:     enquiry.School.ID,
		ReopenedByID: actorID,
	})
	return nil
}

// Merge folds duplicate enquiries into a surviving target: documents, audit
// logs and referral data move to the target, and each source closes as a
// duplicate.
func (s *Service) Merge(ctx context.Context, targetID uuid.UUID, req transport.MergeRequest, actorID uuid.UUID) (transport.BatchResponse, error) {
	lock, err := s.acquireLock(ctx, targetID)
	if err != nil {
		return transport.BatchResponse{}, err
	}
	defer s.releaseLock(ctx, lock)

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.BatchResponse{}, apperr.NotFound("target enquiry not found")
		}
		return transport.BatchResponse{}, apperr.Internal("failed to load target enquiry", err)
	}
	if target.Status != domain.EnquiryStatusOpen {
		return transport.BatchResponse{}, apperr.BusinessRule("merge target must be an open enquiry")
	}

	out := transport.BatchResponse{Succeeded: []uuid.UUID{}, Failed: []transport.BatchFailure{}}
	for _, sourceID := range req.SourceIDs {
		if sourceID == targetID {
			out.Failed = append(out.Failed, transport.BatchFailure{EnquiryID: sourceID, Reason: "cannot merge an enquiry into itself"})
			continue
		}
		if err := s.mergeOne(ctx, &target, sourceID, actorID); err != nil {
			out.Failed = append(out.Failed, transport.BatchFailure{EnquiryID: sourceID, Reason: apperr.Message(err)})
			continue
		}
		out.Succeeded = append(out.Succeeded, sourceID)
	}
	return out, nil
}

func (s *Service) mergeOne(ctx context.Context, target *repository.Enquiry, sourceID, actorID uuid.UUID) error {
	source, err := s.repo.GetByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("source enquiry not found")
		}
		return apperr.Internal("failed to load source enquiry", err)
	}

	if _, err := s.repo.ReassignDocuments(ctx, sourceID, target.ID); err != nil {
		return apperr.Internal("failed to move documents", err)
	}
	if _, err := s.repo.ReassignLogs(ctx, sourceID, target.ID); err != nil {
		return apperr.Internal("failed to move audit logs", err)
	}

	// A referral claim on the source survives the merge when the target has
	// none of its own. Verification state travels with it.
	if target.Referral.Source.IsZero() && !source.Referral.Source.IsZero() {
		referral := source.Referral
		updated, err := s.repo.Update(ctx, target.ID, target.Revision, repository.UpdateParams{Referral: &referral})
		if err != nil {
			if errors.Is(err, repository.ErrRevisionConflict) {
				return apperr.Conflict("target enquiry was modified concurrently, reload and retry")
			}
			return apperr.Internal("failed to move referral data", err)
		}
		*target = updated
	}

	if source.Status == domain.EnquiryStatusOpen {
		status := domain.EnquiryStatusClosed
		if _, err := s.repo.Update(ctx, sourceID, source.Revision, repository.UpdateParams{Status: &status}); err != nil {
			if errors.Is(err, repository.ErrRevisionConflict) {
				return apperr.Conflict("source enquiry was modified concurrently, reload and retry")
			}
			return apperr.Internal("failed to close source enquiry", err)
		}
	}

	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: target.ID,
		EventType: repository.LogEventEnquiryMerged,
		Event:     "Enquiry " + source.EnquiryNumber + " merged into this enquiry",
		LogData: map[string]any{
			"mergedId":     sourceID.String(),
			"mergedNumber": source.EnquiryNumber,
			"status":       "Duplicate",
		},
		CreatedBy: actorID,
	}); err != nil {
		s.log.Error("failed to write merge log", "enquiryId", target.ID, "error", err)
	}

	s.publish(ctx, events.EnquiryMerged{
		BaseEvent:  events.NewBaseEvent(),
		SurvivorID: target.ID,
		MergedID:   sourceID,
		SchoolID:   target.School.ID,
		MergedByID: actorID,
	})
	return nil
}
