// Package service holds the enquiry lifecycle logic: capture, updates,
// duplicate resolution, fee orchestration, referral verification and the
// bulk workflows (transfer, reassign, reopen, merge).
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
	"admissions_backend/platform/logger"
	"admissions_backend/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Repository defines the data access interface needed by the enquiry
// service. Consumer-driven: only what this service uses.
type Repository interface {
	repository.EnquiryReader
	repository.EnquiryWriter
	repository.StageStore
	repository.DuplicateFinder
	repository.LogStore
	repository.FeeRequestStore
	repository.DocumentStore
}

// Lock is a held per-enquiry mutex.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker serializes the read-modify-write sequences on one enquiry across
// API instances. A nil Locker degrades to unserialized access.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lock, error)
}

// Service implements the enquiry lifecycle operations.
type Service struct {
	repo       Repository
	finance    ports.FinanceGateway
	mdm        ports.MasterData
	adminPanel ports.AdminPanel
	followUps  ports.FollowUpScheduler
	storage    ports.ObjectStore
	locker     Locker
	bus        events.Bus
	log        *logger.Logger

	deEnrollReasonID int
	webhookSecret    string
	now              func() time.Time
}

// Options carries the optional collaborators; any of them may be nil and the
// corresponding behavior is skipped with a log line.
type Options struct {
	Finance          ports.FinanceGateway
	MasterData       ports.MasterData
	AdminPanel       ports.AdminPanel
	FollowUps        ports.FollowUpScheduler
	Storage          ports.ObjectStore
	Locker           Locker
	DeEnrollReasonID int
	// PaymentWebhookSecret signs inbound payment events. Empty disables the
	// webhook endpoint.
	PaymentWebhookSecret string
}

func New(repo Repository, bus events.Bus, log *logger.Logger, opts Options) *Service {
	reason := opts.DeEnrollReasonID
	if reason == 0 {
		reason = 152
	}
	return &Service{
		repo:             repo,
		finance:          opts.Finance,
		mdm:              opts.MasterData,
		adminPanel:       opts.AdminPanel,
		followUps:        opts.FollowUps,
		storage:          opts.Storage,
		locker:           opts.Locker,
		bus:              bus,
		log:              log,
		deEnrollReasonID: reason,
		webhookSecret:    opts.PaymentWebhookSecret,
		now:              time.Now,
	}
}

const followUpDeadlineBusinessDays = 5

func refFromDTO(dto transport.RefDTO) domain.Ref {
	return domain.Ref{ID: dto.ID, Value: dto.Value}
}

func refFromOptionalDTO(dto transport.OptionalRefDTO) domain.Ref {
	return domain.Ref{ID: dto.ID, Value: dto.Value}
}

func parentFromDTO(dto *transport.ParentDTO) (*repository.Parent, error) {
	if dto == nil {
		return nil, nil
	}
	parent := &repository.Parent{
		Name:  dto.Name,
		Phone: phone.NormalizeE164(dto.Phone),
		Email: dto.Email,
	}
	if dto.PortalPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(dto.PortalPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperr.Validation("portal password is not usable")
		}
		parent.CredentialHash = string(hash)
	}
	return parent, nil
}

func parentsFromDTOs(father, mother, guardian *transport.ParentDTO) (repository.ParentDetails, error) {
	var parents repository.ParentDetails
	var err error
	if parents.Father, err = parentFromDTO(father); err != nil {
		return repository.ParentDetails{}, err
	}
	if parents.Mother, err = parentFromDTO(mother); err != nil {
		return repository.ParentDetails{}, err
	}
	if parents.Guardian, err = parentFromDTO(guardian); err != nil {
		return repository.ParentDetails{}, err
	}
	return parents, nil
}

// mergeParent keeps the stored portal credential when the update carries no
// new password.
func mergeParent(next, prev *repository.Parent) *repository.Parent {
	if next != nil && next.CredentialHash == "" && prev != nil {
		next.CredentialHash = prev.CredentialHash
	}
	return next
}

// Create captures a new enquiry: assigns the enquiry number, resolves global
// ids through master data (best effort), seeds the stage pipeline, runs the
// duplicate check, schedules the follow-up task and evaluates fee triggers.
func (s *Service) Create(ctx context.Context, req transport.CreateEnquiryRequest, actorID uuid.UUID) (transport.EnquiryResponse, error) {
	if !domain.IsKnownEnquiryType(req.EnquiryType) {
		return transport.EnquiryResponse{}, apperr.Validation(fmt.Sprintf("unknown enquiry type %q", req.EnquiryType))
	}
	if req.Father == nil && req.Mother == nil && req.Guardian == nil {
		return transport.EnquiryResponse{}, apperr.Validation("at least one parent or guardian is required")
	}

	dob, err := time.Parse("2006-01-02", req.Student.DOB)
	if err != nil {
		return transport.EnquiryResponse{}, apperr.Validation("student dob must be YYYY-MM-DD")
	}

	parentDetails, err := parentsFromDTOs(req.Father, req.Mother, req.Guardian)
	if err != nil {
		return transport.EnquiryResponse{}, err
	}

	params := repository.CreateEnquiryParams{
		EnquiryType:  req.EnquiryType,
		AcademicYear: refFromDTO(req.AcademicYear),
		School:       refFromDTO(req.School),
		Board:        refFromOptionalDTO(req.Board),
		Course:       refFromOptionalDTO(req.Course),
		Grade:        refFromDTO(req.Grade),
		Stream:       refFromOptionalDTO(req.Stream),
		Shift:        refFromOptionalDTO(req.Shift),
		AssignedTo:   req.AssignedTo,
		Parents:      parentDetails,
		Student: repository.StudentDetails{
			FirstName: req.Student.FirstName,
			LastName:  req.Student.LastName,
			DOB:       dob,
		},
		CreatedBy: actorID,
	}
	if req.Student.EnrolmentNumber != "" {
		enrolment := req.Student.EnrolmentNumber
		params.Student.EnrolmentNumber = &enrolment
	}
	if req.Remarks != "" {
		remarks := req.Remarks
		params.Remarks = &remarks
	}
	if req.Referral != nil {
		params.Referral.Source = domain.ReferralSource{
			Parent:    req.Referral.Parent,
			Employee:  req.Referral.Employee,
			School:    req.Referral.School,
			Corporate: req.Referral.Corporate,
		}
		params.Referral.Source.Kind = params.Referral.Source.Resolve()
	}

	// Global-id resolution is best effort; capture must not fail on an
	// unreachable master-data service.
	s.resolveGlobalIDs(ctx, &params)

	enquiry, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.EnquiryResponse{}, apperr.Internal("failed to create enquiry", err)
	}

	if s.followUps != nil {
		assignee := actorID
		if enquiry.AssignedTo != nil {
			assignee = *enquiry.AssignedTo
		}
		followUp := ports.FollowUpParams{
			EnquiryID:  enquiry.ID,
			SchoolID:   enquiry.School.ID,
			AssigneeID: assignee,
			Title:      "Follow up on enquiry " + enquiry.EnquiryNumber,
			DueAt:      addBusinessDays(s.now(), followUpDeadlineBusinessDays),
		}
		if err := s.followUps.ScheduleFollowUp(ctx, followUp); err != nil {
			s.log.Error("failed to schedule follow-up task", "enquiryId", enquiry.ID, "error", err)
		}
	}

	// Duplicate resolution may close this or other enquiries; run it under
	// the per-student serialization provided by the duplicate closure path.
	if _, err := s.CheckReopenNeeded(ctx, enquiry, actorID); err != nil {
		s.log.Error("duplicate resolution failed", "enquiryId", enquiry.ID, "error", err)
	}

	if err := s.EvaluateFeeTriggers(ctx, &enquiry, actorID); err != nil {
		s.log.Error("fee trigger evaluation failed", "enquiryId", enquiry.ID, "error", err)
	}

	s.publish(ctx, events.EnquiryCreated{
		BaseEvent:     events.NewBaseEvent(),
		EnquiryID:     enquiry.ID,
		EnquiryNumber: enquiry.EnquiryNumber,
		SchoolID:      enquiry.School.ID,
		AcademicYear:  enquiry.AcademicYear.Value,
		GradeID:       enquiry.Grade.ID,
		StudentName:   enquiry.Student.FirstName + " " + enquiry.Student.LastName,
		ParentName:    primaryParentName(enquiry.Parents),
		ParentPhone:   primaryParentPhone(enquiry.Parents),
		Channel:       req.Channel,
		CreatedByID:   actorID,
	})

	// Re-read: duplicate resolution or fee triggers may have mutated the row.
	fresh, err := s.repo.GetByID(ctx, enquiry.ID)
	if err != nil {
		return transport.ToEnquiryResponse(enquiry), nil
	}
	return transport.ToEnquiryResponse(fresh), nil
}

func (s *Service) resolveGlobalIDs(ctx context.Context, params *repository.CreateEnquiryParams) {
	if s.mdm == nil {
		return
	}
	for _, parent := range []*repository.Parent{params.Parents.Father, params.Parents.Mother, params.Parents.Guardian} {
		if parent == nil {
			continue
		}
		identity, err := s.mdm.ResolveParent(ctx, ports.ResolveParentParams{
			Name:  parent.Name,
			Phone: parent.Phone,
			Email: parent.Email,
		})
		if err != nil {
			s.log.UpstreamError("mdm", "resolve parent", err)
			continue
		}
		if identity != nil {
			parent.GlobalID = &identity.GlobalID
		}
	}

	identity, err := s.mdm.ResolveStudent(ctx, ports.ResolveStudentParams{
		FirstName: params.Student.FirstName,
		LastName:  params.Student.LastName,
		DOB:       params.Student.DOB,
		SchoolID:  params.School.ID,
	})
	if err != nil {
		s.log.UpstreamError("mdm", "resolve student", err)
		return
	}
	if identity != nil {
		params.Student.GlobalID = &identity.GlobalID
	}
}

// Get returns one enquiry by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.EnquiryResponse, error) {
	enquiry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EnquiryResponse{}, apperr.NotFound("enquiry not found")
		}
		return transport.EnquiryResponse{}, apperr.Internal("failed to load enquiry", err)
	}
	return transport.ToEnquiryResponse(enquiry), nil
}

// List returns a filtered page of enquiries.
func (s *Service) List(ctx context.Context, params repository.ListParams) (transport.EnquiryListResponse, error) {
	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.EnquiryListResponse{}, apperr.Internal("failed to list enquiries", err)
	}
	out := transport.EnquiryListResponse{
		Items: make([]transport.EnquiryResponse, len(items)),
		Total: total,
	}
	for i, item := range items {
		out.Items[i] = transport.ToEnquiryResponse(item)
	}
	return out, nil
}

// Update applies a revision-checked update. Stage mutations run through the
// transition table, write one audit log entry each and re-evaluate fee
// triggers.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateEnquiryRequest, actorID uuid.UUID) (transport.EnquiryResponse, error) {
	lock, err := s.acquireLock(ctx, id)
	if err != nil {
		return transport.EnquiryResponse{}, err
	}
	defer s.releaseLock(ctx, lock)

	enquiry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EnquiryResponse{}, apperr.NotFound("enquiry not found")
		}
		return transport.EnquiryResponse{}, apperr.Internal("failed to load enquiry", err)
	}

	if req.Status != nil && !domain.IsKnownEnquiryStatus(*req.Status) {
		return transport.EnquiryResponse{}, apperr.Validation(fmt.Sprintf("unknown status %q", *req.Status))
	}

	// Validate and stage the pipeline mutations before touching anything.
	stageChanges := make([]stageChange, 0, len(req.StageUpdates))
	for _, update := range req.StageUpdates {
		idx := domain.FindStage(enquiry.Stages, update.StageName)
		if idx < 0 {
			return transport.EnquiryResponse{}, apperr.Validation(fmt.Sprintf("stage %q does not exist on this enquiry", update.StageName))
		}
		from := enquiry.Stages[idx].Status
		if !domain.CanTransition(from, update.Status) {
			return transport.EnquiryResponse{}, apperr.BusinessRule(
				fmt.Sprintf("stage %q cannot move from %s to %s", update.StageName, from, update.Status))
		}
		if from != update.Status {
			stageChanges = append(stageChanges, stageChange{name: update.StageName, from: from, to: update.Status})
		}
		enquiry.Stages[idx].Status = update.Status
	}

	params := repository.UpdateParams{
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
		Remarks:    req.Remarks,
	}
	if req.AcademicYear != nil {
		year := refFromDTO(*req.AcademicYear)
		params.AcademicYear = &year
	}
	if req.Grade != nil {
		grade := refFromDTO(*req.Grade)
		params.Grade = &grade
	}
	if req.Stream != nil {
		stream := refFromOptionalDTO(*req.Stream)
		params.Stream = &stream
	}
	if req.Shift != nil {
		shift := refFromOptionalDTO(*req.Shift)
		params.Shift = &shift
	}
	if req.Father != nil || req.Mother != nil || req.Guardian != nil {
		parents := enquiry.Parents
		if req.Father != nil {
			father, err := parentFromDTO(req.Father)
			if err != nil {
				return transport.EnquiryResponse{}, err
			}
			parents.Father = mergeParent(father, enquiry.Parents.Father)
		}
		if req.Mother != nil {
			mother, err := parentFromDTO(req.Mother)
			if err != nil {
				return transport.EnquiryResponse{}, err
			}
			parents.Mother = mergeParent(mother, enquiry.Parents.Mother)
		}
		if req.Guardian != nil {
			guardian, err := parentFromDTO(req.Guardian)
			if err != nil {
				return transport.EnquiryResponse{}, err
			}
			parents.Guardian = mergeParent(guardian, enquiry.Parents.Guardian)
		}
		params.Parents = &parents
	}
	if req.Student != nil {
		dob, err := time.Parse("2006-01-02", req.Student.DOB)
		if err != nil {
			return transport.EnquiryResponse{}, apperr.Validation("student dob must be YYYY-MM-DD")
		}
		student := enquiry.Student
		student.FirstName = req.Student.FirstName
		student.LastName = req.Student.LastName
		student.DOB = dob
		if req.Student.EnrolmentNumber != "" {
			enrolment := req.Student.EnrolmentNumber
			student.EnrolmentNumber = &enrolment
		}
		params.Student = &student
	}

	updated, err := s.repo.Update(ctx, id, req.Revision, params)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRevisionConflict):
			return transport.EnquiryResponse{}, apperr.Conflict("enquiry was modified concurrently, reload and retry")
		case errors.Is(err, repository.ErrNotFound):
			return transport.EnquiryResponse{}, apperr.NotFound("enquiry not found")
		}
		return transport.EnquiryResponse{}, apperr.Internal("failed to update enquiry", err)
	}

	if len(stageChanges) > 0 {
		if err := s.repo.ReplaceStageStatuses(ctx, id, enquiry.Stages); err != nil {
			return transport.EnquiryResponse{}, apperr.Internal("failed to update stages", err)
		}
		updated.Stages = enquiry.Stages

		for _, change := range stageChanges {
			s.logStageChange(ctx, updated, change, actorID)
			s.publish(ctx, events.EnquiryStageChanged{
				BaseEvent:   events.NewBaseEvent(),
				EnquiryID:   updated.ID,
				SchoolID:    updated.School.ID,
				StageKey:    change.name,
				OldStatus:   change.from,
				NewStatus:   change.to,
				ChangedByID: actorID,
			})
		}

		if err := s.EvaluateFeeTriggers(ctx, &updated, actorID); err != nil {
			s.log.Error("fee trigger evaluation failed", "enquiryId", updated.ID, "error", err)
		}
	}

	return transport.ToEnquiryResponse(updated), nil
}

type stageChange struct {
	name string
	from string
	to   string
}

func (s *Service) logStageChange(ctx context.Context, enquiry repository.Enquiry, change stageChange, actorID uuid.UUID) {
	_, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: enquiry.ID,
		EventType: repository.LogEventStageChanged,
		Event:     fmt.Sprintf("Stage %s moved from %s to %s", change.name, change.from, change.to),
		LogData: map[string]any{
			"stage":      change.name,
			"fromStatus": change.from,
			"toStatus":   change.to,
		},
		CreatedBy: actorID,
	})
	if err != nil {
		s.log.Error("failed to write stage change log", "enquiryId", enquiry.ID, "error", err)
	}
}

// Close sets an enquiry's status to Closed with an audit record.
func (s *Service) Close(ctx context.Context, id uuid.UUID, req transport.CloseEnquiryRequest, actorID uuid.UUID) error {
	enquiry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("enquiry not found")
		}
		return apperr.Internal("failed to load enquiry", err)
	}
	if enquiry.Status == domain.EnquiryStatusClosed {
		return apperr.BusinessRule("enquiry is already closed")
	}

	status := domain.EnquiryStatusClosed
	if _, err := s.repo.Update(ctx, id, enquiry.Revision, repository.UpdateParams{Status: &status}); err != nil {
		return apperr.Internal("failed to close enquiry", err)
	}

	logData := map[string]any{"reason": req.Reason}
	if req.Remarks != "" {
		logData["remarks"] = req.Remarks
	}
	if _, err := s.repo.AppendLog(ctx, repository.AppendLogParams{
		EnquiryID: id,
		EventType: repository.LogEventEnquiryClosed,
		Event:     "Enquiry closed: " + req.Reason,
		LogData:   logData,
		CreatedBy: actorID,
	}); err != nil {
		s.log.Error("failed to write closure log", "enquiryId", id, "error", err)
	}

	s.publish(ctx, events.EnquiryClosed{
		BaseEvent:  events.NewBaseEvent(),
		EnquiryID:  id,
		SchoolID:   enquiry.School.ID,
		Reason:     req.Reason,
		Remarks:    req.Remarks,
		ClosedByID: actorID,
	})
	return nil
}

// ListLogs returns an enquiry's audit trail.
func (s *Service) ListLogs(ctx context.Context, enquiryID uuid.UUID, limit int) ([]transport.LogResponse, error) {
	logs, err := s.repo.ListLogs(ctx, enquiryID, limit)
	if err != nil {
		return nil, apperr.Internal("failed to list logs", err)
	}
	out := make([]transport.LogResponse, len(logs))
	for i, log := range logs {
		out[i] = transport.ToLogResponse(log)
	}
	return out, nil
}

// DeleteLog removes one audit record. Admin-only.
func (s *Service) DeleteLog(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteLog(ctx, id); err != nil {
		if errors.Is(err, repository.ErrLogNotFound) {
			return apperr.NotFound("log entry not found")
		}
		return apperr.Internal("failed to delete log", err)
	}
	return nil
}

func (s *Service) acquireLock(ctx context.Context, enquiryID uuid.UUID) (Lock, error) {
	if s.locker == nil {
		return nil, nil
	}
	lock, err := s.locker.Acquire(ctx, "enquiry:"+enquiryID.String())
	if err != nil {
		return nil, apperr.Internal("failed to serialize enquiry access", err)
	}
	return lock, nil
}

func (s *Service) releaseLock(ctx context.Context, lock Lock) {
	if lock == nil {
		return
	}
	if err := lock.Release(ctx); err != nil {
		s.log.Error("failed to release enquiry lock", "error", err)
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

func primaryParentName(parents repository.ParentDetails) string {
	for _, parent := range []*repository.Parent{parents.Father, parents.Mother, parents.Guardian} {
		if parent != nil {
			return parent.Name
		}
	}
	return ""
}

func primaryParentPhone(parents repository.ParentDetails) string {
	for _, parent := range []*repository.Parent{parents.Father, parents.Mother, parents.Guardian} {
		if parent != nil && parent.Phone != "" {
			return parent.Phone
		}
	}
	return ""
}

// addBusinessDays advances t by n weekdays, skipping Saturdays and Sundays.
func addBusinessDays(t time.Time, n int) time.Time {
	out := t
	for added := 0; added < n; {
		out = out.AddDate(0, 0, 1)
		if wd := out.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return out
}
