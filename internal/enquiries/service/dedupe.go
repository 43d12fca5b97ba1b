package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/enquiries/transport"
	"admissions_backend/internal/events"
	"admissions_backend/platform/apperr"

	"github.com/google/uuid"
)

// Duplicate resolution outcomes.
const (
	OutcomeNoDuplicates    = "no_duplicates"
	OutcomeAlreadyAdmitted = "already_admitted"
	OutcomeContinueWithNew = "continue_with_new"
	OutcomeEnquiryExists   = "enquiry_already_exists"
	OutcomeDuplicatesFound = "duplicates_found"
)

// CheckDuplicate is the read-only probe behind GET /enquiries/check-duplicate.
// It reports matches without mutating anything.
func (s *Service) CheckDuplicate(ctx context.Context, firstName, lastName, dobRaw, enquiryType string, schoolID int64) (transport.DuplicateCheckResponse, error) {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return transport.DuplicateCheckResponse{}, apperr.Validation("firstName and lastName are required")
	}
	dob, err := time.Parse("2006-01-02", dobRaw)
	if err != nil {
		return transport.DuplicateCheckResponse{}, apperr.Validation("dob must be YYYY-MM-DD")
	}

	matches, err := s.repo.FindDuplicatesByStudent(ctx, repository.DuplicateByStudentParams{
		FirstName:   firstName,
		LastName:    lastName,
		DOB:         dob,
		EnquiryType: enquiryType,
		SchoolID:    schoolID,
	})
	if err != nil {
		return transport.DuplicateCheckResponse{}, apperr.Internal("duplicate check failed", err)
	}

	if link, admitted := s.admittedStudentLink(ctx, matches, firstName, lastName, dob); admitted {
		return transport.DuplicateCheckResponse{Outcome: OutcomeAlreadyAdmitted, StudentLink: link}, nil
	}

	if len(matches) == 0 {
		return transport.DuplicateCheckResponse{Outcome: OutcomeNoDuplicates}, nil
	}

	out := transport.DuplicateCheckResponse{
		Outcome:    OutcomeDuplicatesFound,
		Duplicates: make([]transport.EnquiryResponse, len(matches)),
	}
	for i, match := range matches {
		out.Duplicates[i] = transport.ToEnquiryResponse(match)
	}
	return out, nil
}

// CheckReopenNeeded runs the duplicate resolution policy for an enquiry,
// closing losers and reopening the winner. Priority is by admission state
// first, then highest pipeline stage within the caller's academic year,
// falling back to keeping the caller when no same-year match exists.
//
// The policy is a priority-by-recency-and-stage heuristic; the per-student
// lock serializes concurrent submissions for the same student.
func (s *Service) CheckReopenNeeded(ctx context.Context, enquiry repository.Enquiry, actorID uuid.UUID) (string, error) {
	lock, err := s.acquireStudentLock(ctx, enquiry)
	if err != nil {
		return "", err
	}
	defer s.releaseLock(ctx, lock)

	matches, err := s.repo.FindDuplicatesByStudent(ctx, repository.DuplicateByStudentParams{
		FirstName:   enquiry.Student.FirstName,
		LastName:    enquiry.Student.LastName,
		DOB:         enquiry.Student.DOB,
		EnquiryType: enquiry.EnquiryType,
		SchoolID:    enquiry.School.ID,
		ExcludeID:   &enquiry.ID,
	})
	if err != nil {
		return "", fmt.Errorf("find duplicates: %w", err)
	}
	if len(matches) == 0 {
		return OutcomeNoDuplicates, nil
	}

	// Branch 1: a match is already admitted, or master data knows an active
	// student. Everything else closes as duplicate, the caller included.
	if _, admitted := s.admittedStudentLink(ctx, matches, enquiry.Student.FirstName, enquiry.Student.LastName, enquiry.Student.DOB); admitted {
		for _, match := range matches {
			if match.Status == domain.EnquiryStatusOpen && !domain.IsAdmittedPipeline(match.Stages) {
				s.closeAsDuplicate(ctx, match, actorID)
			}
		}
		if enquiry.Status == domain.EnquiryStatusOpen {
			s.closeAsDuplicate(ctx, enquiry, actorID)
		}
		return OutcomeAlreadyAdmitted, nil
	}

	// Branch 2: same-academic-year matches compete on pipeline progress.
	sameYear := make([]repository.Enquiry, 0, len(matches))
	for _, match := range matches {
		if match.AcademicYear.ID == enquiry.AcademicYear.ID {
			sameYear = append(sameYear, match)
		}
	}

	if len(sameYear) > 0 {
		winner := enquiry
		for _, candidate := range sameYear {
			if domain.Rank(candidate.Stages) > domain.Rank(winner.Stages) {
				winner = candidate
			}
		}

		for _, candidate := range append(sameYear, enquiry) {
			if candidate.ID == winner.ID {
				continue
			}
			if candidate.Status == domain.EnquiryStatusOpen {
				s.closeAsDuplicate(ctx, candidate, actorID)
			}
		}
		if winner.Status == domain.EnquiryStatusClosed {
			s.reopenAsWinner(ctx, winner, actorID)
		}

		if winner.ID == enquiry.ID {
			return OutcomeContinueWithNew, nil
		}
		return OutcomeEnquiryExists, nil
	}

	// Branch 3: matches exist only in other academic years. The caller wins;
	// stray Open matches close, a closed caller reopens.
	if enquiry.Status == domain.EnquiryStatusClosed {
		s.reopenAsWinner(ctx, enquiry, actorID)
	}
	for _, match := range matches {
		if match.Status == domain.EnquiryStatusOpen {
			s.closeAsDuplicate(ctx, match, actorID)
		}
	}
	return OutcomeDuplicatesFound, nil
}

// admittedStudentLink reports whether the student behind the matches is
// already admitted, via pipeline state or a master-data active-student
// lookup, and returns a link to the student record when known.
func (s *Service) admittedStudentLink(ctx context.Context, matches []repository.Enquiry, firstName, lastName string, dob time.Time) (string, bool) {
	for _, match := range matches {
		if domain.IsAdmittedPipeline(match.Stages) {
			return "/enquiries/" + match.ID.String(), true
		}
	}
	if s.mdm == nil {
		return "", false
	}
	student, err := s.mdm.FindActiveStudent(ctx, firstName, lastName, dob)
	if err != nil {
		s.log.UpstreamError("mdm", "find active student", err)
		return "", false
	}
	if student == nil {
		return "", false
	}
	return fmt.Sprintf("/students/%d", student.StudentGlobalID), true
}

func (s *Service) closeAsDuplicate(ctx context.Context, enquiry repository.Enquiry, actorID uuid.UUID) {
	status := domain.EnquiryStatusClosed
	_, err := s.repo.Update(ctx, enquiry.ID, enquiry.Revision, repository.UpdateParams{Status: &status})
	if err != nil {
		if errors.Is(err, repository.ErrRevisionConflict) {
			s.log.Warn("duplicate closure lost a concurrent write", "enquiryId", enquiry.ID)
			return
		}
		s.log.Error("failed to close duplicate enquiry", "enquiryId", enquiry.ID, "error", err)
		return
	}

	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: enquiry.ID,
		EventType: repository.LogEventEnquiryClosed,
		Event:     "Enquiry closed as duplicate",
		LogData:   map[string]any{"status": "Duplicate"},
		CreatedBy: actorID,
	}); err != nil {
		s.log.Error("failed to write duplicate closure log", "enquiryId", enquiry.ID, "error", err)
	}

	s.publish(ctx, events.EnquiryClosed{
		BaseEvent:   events.NewBaseEvent(),
		EnquiryID:   enquiry.ID,
		SchoolID:    enquiry.School.ID,
		Reason:      "Duplicate",
		ClosedByID:  actorID,
		IsDuplicate: true,
	})
}

func (s *Service) reopenAsWinner(ctx context.Context, enquiry repository.Enquiry, actorID uuid.UUID) {
	status := domain.EnquiryStatusOpen
	_, err := s.repo.Update(ctx, enquiry.ID, enquiry.Revision, repository.UpdateParams{Status: &status})
	if err != nil {
		s.log.Error("failed to reopen winning enquiry", "enquiryId", enquiry.ID, "error", err)
		return
	}

	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: enquiry.ID,
		EventType: repository.LogEventEnquiryReopened,
		Event:     "Enquiry reopened as the surviving duplicate",
		CreatedBy: actorID,
	}); err != nil {
		s.log.Error("failed to write reopen log", "enquiryId", enquiry.ID, "error", err)
	}

	s.publish(ctx, events.EnquiryReopened{
		BaseEvent:    events.NewBaseEvent(),
		EnquiryID:    enquiry.ID,
		SchoolID:     enquiry.School.ID,
		ReopenedByID: actorID,
	})
}

// acquireStudentLock serializes duplicate resolution per student identity.
func (s *Service) acquireStudentLock(ctx context.Context, enquiry repository.Enquiry) (Lock, error) {
	if s.locker == nil {
		return nil, nil
	}
	key := fmt.Sprintf("student:%s:%s:%s",
		strings.ToLower(enquiry.Student.FirstName),
		strings.ToLower(enquiry.Student.LastName),
		enquiry.Student.DOB.Format("2006-01-02"))
	lock, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return nil, apperr.Internal("failed to serialize duplicate resolution", err)
	}
	return lock, nil
}
