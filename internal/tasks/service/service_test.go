package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"admissions_backend/internal/events"
	"admissions_backend/internal/tasks/repository"
	"admissions_backend/platform/apperr"
	"admissions_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory Repository for task service tests.
type fakeRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*repository.FollowUpTask
	due   []repository.DueTask
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tasks: make(map[uuid.UUID]*repository.FollowUpTask)}
}

func (f *fakeRepo) Create(ctx context.Context, params repository.CreateParams) (repository.FollowUpTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := &repository.FollowUpTask{
		ID:         uuid.New(),
		EnquiryID:  params.EnquiryID,
		SchoolID:   params.SchoolID,
		AssigneeID: params.AssigneeID,
		Title:      params.Title,
		DueAt:      params.DueAt,
		Status:     repository.StatusOpen,
		CreatedAt:  time.Now(),
	}
	f.tasks[task.ID] = task
	return *task, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (repository.FollowUpTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return repository.FollowUpTask{}, repository.ErrNotFound
	}
	return *task, nil
}

func (f *fakeRepo) ListByAssignee(ctx context.Context, assigneeID uuid.UUID, status string, limit, offset int) ([]repository.FollowUpTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.FollowUpTask{}
	for _, task := range f.tasks {
		if task.AssigneeID != assigneeID {
			continue
		}
		if status != "" && task.Status != status {
			continue
		}
		out = append(out, *task)
	}
	return out, nil
}

func (f *fakeRepo) ListByEnquiry(ctx context.Context, enquiryID uuid.UUID) ([]repository.FollowUpTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.FollowUpTask{}
	for _, task := range f.tasks {
		if task.EnquiryID == enquiryID {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (f *fakeRepo) Finish(ctx context.Context, id uuid.UUID, status string) (repository.FollowUpTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok || task.Status != repository.StatusOpen {
		return repository.FollowUpTask{}, repository.ErrNotFound
	}
	now := time.Now()
	task.Status = status
	task.CompletedAt = &now
	return *task, nil
}

func (f *fakeRepo) CancelOpenByEnquiry(ctx context.Context, enquiryID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	now := time.Now()
	for _, task := range f.tasks {
		if task.EnquiryID == enquiryID && task.Status == repository.StatusOpen {
			task.Status = repository.StatusCancelled
			task.CompletedAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]repository.DueTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claimed := f.due
	f.due = nil
	return claimed, nil
}

// captureBus records published events synchronously.
type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Publish(ctx context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *captureBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *captureBus) Subscribe(eventName string, handler events.Handler) {}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestScheduleRequiresTitle(t *testing.T) {
	svc := New(newFakeRepo(), nil, testLogger())

	_, err := svc.Schedule(context.Background(), ScheduleParams{
		EnquiryID:  uuid.New(),
		AssigneeID: uuid.New(),
		DueAt:      time.Now().Add(24 * time.Hour),
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestCompleteOnlyByAssignee(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, nil, testLogger())
	assignee := uuid.New()

	task, err := svc.Schedule(context.Background(), ScheduleParams{
		EnquiryID:  uuid.New(),
		AssigneeID: assignee,
		Title:      "First follow-up call",
		DueAt:      time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if _, err := svc.Complete(context.Background(), task.ID, uuid.New()); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("other counsellor: err = %v, want forbidden", err)
	}

	done, err := svc.Complete(context.Background(), task.ID, assignee)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != repository.StatusCompleted {
		t.Errorf("status = %q, want completed", done.Status)
	}
	if done.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	if _, err := svc.Complete(context.Background(), task.ID, assignee); !apperr.Is(err, apperr.KindBusinessRule) {
		t.Errorf("second complete: err = %v, want business-rule error", err)
	}
}

func TestCancelForEnquiryClosesOpenTasksOnly(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, nil, testLogger())
	enquiryID := uuid.New()
	assignee := uuid.New()

	first, err := svc.Schedule(context.Background(), ScheduleParams{
		EnquiryID: enquiryID, AssigneeID: assignee, Title: "Call back", DueAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	second, err := svc.Schedule(context.Background(), ScheduleParams{
		EnquiryID: enquiryID, AssigneeID: assignee, Title: "Share fee structure", DueAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := svc.Complete(context.Background(), first.ID, assignee); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if err := svc.CancelForEnquiry(context.Background(), enquiryID); err != nil {
		t.Fatalf("CancelForEnquiry: %v", err)
	}

	got, err := svc.ListForEnquiry(context.Background(), enquiryID)
	if err != nil {
		t.Fatalf("ListForEnquiry: %v", err)
	}
	statuses := map[uuid.UUID]string{}
	for _, task := range got {
		statuses[task.ID] = task.Status
	}
	if statuses[first.ID] != repository.StatusCompleted {
		t.Errorf("completed task status = %q, want completed", statuses[first.ID])
	}
	if statuses[second.ID] != repository.StatusCancelled {
		t.Errorf("open task status = %q, want cancelled", statuses[second.ID])
	}
}

func TestListForAssigneeRejectsUnknownStatus(t *testing.T) {
	svc := New(newFakeRepo(), nil, testLogger())
	if _, err := svc.ListForAssignee(context.Background(), uuid.New(), "snoozed", 10, 0); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestNotifyDuePublishesPerTask(t *testing.T) {
	repo := newFakeRepo()
	bus := &captureBus{}
	svc := New(repo, bus, testLogger())

	repo.due = []repository.DueTask{
		{
			FollowUpTask: repository.FollowUpTask{
				ID: uuid.New(), EnquiryID: uuid.New(), AssigneeID: uuid.New(),
				Title: "First follow-up call", DueAt: time.Now(),
			},
			ParentName:   "Arun Mehta",
			ParentPhone:  "+919812345670",
			StudentName:  "Ishaan Mehta",
			AcademicYear: "2026-27",
		},
		{
			FollowUpTask: repository.FollowUpTask{
				ID: uuid.New(), EnquiryID: uuid.New(), AssigneeID: uuid.New(),
				Title: "Second follow-up call", DueAt: time.Now(),
			},
		},
	}

	notified, err := svc.NotifyDue(context.Background(), 50)
	if err != nil {
		t.Fatalf("NotifyDue: %v", err)
	}
	if notified != 2 {
		t.Fatalf("notified = %d, want 2", notified)
	}
	if len(bus.events) != 2 {
		t.Fatalf("published %d events, want 2", len(bus.events))
	}

	due, ok := bus.events[0].(events.FollowUpDue)
	if !ok {
		t.Fatalf("event type = %T, want FollowUpDue", bus.events[0])
	}
	if due.ParentPhone != "+919812345670" {
		t.Errorf("parent phone = %q", due.ParentPhone)
	}
	if due.StudentName != "Ishaan Mehta" {
		t.Errorf("student name = %q", due.StudentName)
	}

	// Nothing left to claim on the second pass.
	notified, err = svc.NotifyDue(context.Background(), 50)
	if err != nil {
		t.Fatalf("NotifyDue second pass: %v", err)
	}
	if notified != 0 {
		t.Errorf("second pass notified = %d, want 0", notified)
	}
}
