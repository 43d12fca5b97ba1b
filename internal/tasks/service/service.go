// Package service holds the follow-up task logic: scheduling on enquiry
// capture, counsellor worklists and due-task notification fan-out.
package service

import (
	"context"
	"errors"
	"time"

	"admissions_backend/internal/events"
	"admissions_backend/internal/tasks/repository"
	"admissions_backend/platform/apperr"
	"admissions_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the task service.
type Repository interface {
	Create(ctx context.Context, params repository.CreateParams) (repository.FollowUpTask, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.FollowUpTask, error)
	ListByAssignee(ctx context.Context, assigneeID uuid.UUID, status string, limit, offset int) ([]repository.FollowUpTask, error)
	ListByEnquiry(ctx context.Context, enquiryID uuid.UUID) ([]repository.FollowUpTask, error)
	Finish(ctx context.Context, id uuid.UUID, status string) (repository.FollowUpTask, error)
	CancelOpenByEnquiry(ctx context.Context, enquiryID uuid.UUID) (int64, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]repository.DueTask, error)
}

// Service implements the follow-up task operations.
type Service struct {
	repo Repository
	bus  events.Bus
	log  *logger.Logger
	now  func() time.Time
}

func New(repo Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log, now: time.Now}
}

// ScheduleParams describes a follow-up task to create.
type ScheduleParams struct {
	EnquiryID  uuid.UUID
	SchoolID   int64
	AssigneeID uuid.UUID
	Title      string
	DueAt      time.Time
}

// Schedule creates an open follow-up task.
func (s *Service) Schedule(ctx context.Context, params ScheduleParams) (repository.FollowUpTask, error) {
	if params.Title == "" {
		return repository.FollowUpTask{}, apperr.Validation("follow-up title is required")
	}
	task, err := s.repo.Create(ctx, repository.CreateParams{
		EnquiryID:  params.EnquiryID,
		SchoolID:   params.SchoolID,
		AssigneeID: params.AssigneeID,
		Title:      params.Title,
		DueAt:      params.DueAt,
	})
	if err != nil {
		return repository.FollowUpTask{}, apperr.Internal("failed to create follow-up task", err)
	}
	return task, nil
}

// ListForAssignee returns the assignee's tasks, optionally filtered by status.
func (s *Service) ListForAssignee(ctx context.Context, assigneeID uuid.UUID, status string, limit, offset int) ([]repository.FollowUpTask, error) {
	switch status {
	case "", repository.StatusOpen, repository.StatusCompleted, repository.StatusCancelled:
	default:
		return nil, apperr.Validation("unknown task status filter")
	}
	tasks, err := s.repo.ListByAssignee(ctx, assigneeID, status, limit, offset)
	if err != nil {
		return nil, apperr.Internal("failed to list follow-up tasks", err)
	}
	return tasks, nil
}

// ListForEnquiry returns every task on the enquiry, newest first.
func (s *Service) ListForEnquiry(ctx context.Context, enquiryID uuid.UUID) ([]repository.FollowUpTask, error) {
	tasks, err := s.repo.ListByEnquiry(ctx, enquiryID)
	if err != nil {
		return nil, apperr.Internal("failed to list follow-up tasks", err)
	}
	return tasks, nil
}

// Complete marks an open task as done. Counsellors can only complete their
// own tasks.
func (s *Service) Complete(ctx context.Context, id, actorID uuid.UUID) (repository.FollowUpTask, error) {
	return s.finish(ctx, id, actorID, repository.StatusCompleted)
}

// Cancel marks an open task as cancelled.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID) (repository.FollowUpTask, error) {
	return s.finish(ctx, id, actorID, repository.StatusCancelled)
}

func (s *Service) finish(ctx context.Context, id, actorID uuid.UUID, status string) (repository.FollowUpTask, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.FollowUpTask{}, apperr.NotFound("follow-up task not found")
		}
		return repository.FollowUpTask{}, apperr.Internal("failed to load follow-up task", err)
	}
	if task.AssigneeID != actorID {
		return repository.FollowUpTask{}, apperr.New(apperr.KindForbidden, "task belongs to another counsellor")
	}
	if task.Status != repository.StatusOpen {
		return repository.FollowUpTask{}, apperr.New(apperr.KindBusinessRule, "task is already "+task.Status)
	}

	finished, err := s.repo.Finish(ctx, id, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost a race with another finisher.
			return repository.FollowUpTask{}, apperr.New(apperr.KindBusinessRule, "task is no longer open")
		}
		return repository.FollowUpTask{}, apperr.Internal("failed to finish follow-up task", err)
	}
	return finished, nil
}

// CancelForEnquiry cancels all open tasks on the enquiry. Called when the
// enquiry closes; a closed enquiry needs no follow-up.
func (s *Service) CancelForEnquiry(ctx context.Context, enquiryID uuid.UUID) error {
	cancelled, err := s.repo.CancelOpenByEnquiry(ctx, enquiryID)
	if err != nil {
		return apperr.Internal("failed to cancel follow-up tasks", err)
	}
	if cancelled > 0 {
		s.log.Info("cancelled open follow-up tasks", "enquiryId", enquiryID, "count", cancelled)
	}
	return nil
}

// NotifyDue claims due tasks and publishes a FollowUpDue event per task.
// Run from the scheduler worker.
func (s *Service) NotifyDue(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.ClaimDue(ctx, s.now(), limit)
	if err != nil {
		return 0, apperr.Internal("failed to claim due follow-up tasks", err)
	}

	for _, task := range due {
		s.publish(ctx, events.FollowUpDue{
			BaseEvent:    events.NewBaseEvent(),
			TaskID:       task.ID,
			EnquiryID:    task.EnquiryID,
			SchoolID:     task.SchoolID,
			AssigneeID:   task.AssigneeID,
			Title:        task.Title,
			DueAt:        task.DueAt,
			ParentName:   task.ParentName,
			ParentPhone:  task.ParentPhone,
			StudentName:  task.StudentName,
			AcademicYear: task.AcademicYear,
		})
	}
	return len(due), nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}
