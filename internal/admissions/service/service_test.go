package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"admissions_backend/internal/admissions/repository"
	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/events"
	"admissions_backend/platform/apperr"
	"admissions_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu         sync.Mutex
	admissions map[uuid.UUID]*repository.Admission
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{admissions: make(map[uuid.UUID]*repository.Admission)}
}

func (f *fakeRepo) Ensure(ctx context.Context, params repository.EnsureParams) (repository.Admission, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.admissions[params.EnquiryID]; ok {
		return *existing, false, nil
	}
	status := repository.ApprovalPending
	if params.Provisional {
		status = repository.ApprovalProvisional
	}
	admission := &repository.Admission{
		ID:              uuid.New(),
		EnquiryID:       params.EnquiryID,
		StudentGlobalID: params.StudentGlobalID,
		EnrolmentNumber: params.EnrolmentNumber,
		ApprovalStatus:  status,
	}
	f.admissions[params.EnquiryID] = admission
	return *admission, true, nil
}

func (f *fakeRepo) GetByEnquiry(ctx context.Context, enquiryID uuid.UUID) (repository.Admission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	admission, ok := f.admissions[enquiryID]
	if !ok {
		return repository.Admission{}, repository.ErrNotFound
	}
	return *admission, nil
}

func (f *fakeRepo) List(ctx context.Context, params repository.ListParams) ([]repository.Admission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Admission{}
	for _, admission := range f.admissions {
		out = append(out, *admission)
	}
	return out, nil
}

func (f *fakeRepo) SetApproval(ctx context.Context, enquiryID uuid.UUID, status string, approvedBy uuid.UUID) (repository.Admission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	admission, ok := f.admissions[enquiryID]
	if !ok {
		return repository.Admission{}, repository.ErrNotFound
	}
	admission.ApprovalStatus = status
	admission.ApprovedBy = &approvedBy
	return *admission, nil
}

type fakeReader struct {
	snapshot EnquirySnapshot
}

func (f *fakeReader) Snapshot(ctx context.Context, enquiryID uuid.UUID) (EnquirySnapshot, error) {
	snapshot := f.snapshot
	snapshot.EnquiryID = enquiryID
	return snapshot, nil
}

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

func stageChanged(enquiryID uuid.UUID, stageKey, newStatus string) events.EnquiryStageChanged {
	return events.EnquiryStageChanged{
		BaseEvent: events.NewBaseEvent(),
		EnquiryID: enquiryID,
		StageKey:  stageKey,
		NewStatus: newStatus,
	}
}

func TestHandleStageChangedMaterializesOnPaymentStage(t *testing.T) {
	repo := newFakeRepo()
	bus := &captureBus{}
	reader := &fakeReader{snapshot: EnquirySnapshot{SchoolID: 3, AcademicYear: "2026-27", StudentName: "Ishaan Mehta"}}
	svc := New(repo, reader, bus, testLogger())
	enquiryID := uuid.New()

	if err := svc.HandleStageChanged(context.Background(),
		stageChanged(enquiryID, domain.StagePayment, domain.StageStatusApproved)); err != nil {
		t.Fatalf("HandleStageChanged: %v", err)
	}

	admission, err := svc.Get(context.Background(), enquiryID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if admission.ApprovalStatus != repository.ApprovalPending {
		t.Errorf("approval status = %q, want Pending", admission.ApprovalStatus)
	}

	if len(bus.events) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.events))
	}
	created, ok := bus.events[0].(events.AdmissionCreated)
	if !ok {
		t.Fatalf("event type = %T, want AdmissionCreated", bus.events[0])
	}
	if created.Provisional {
		t.Error("provisional = true, want false")
	}
}

func TestHandleStageChangedIgnoresEarlyStages(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, &fakeReader{}, nil, testLogger())
	enquiryID := uuid.New()

	if err := svc.HandleStageChanged(context.Background(),
		stageChanged(enquiryID, domain.StageCounselling, domain.StageStatusCompleted)); err != nil {
		t.Fatalf("HandleStageChanged: %v", err)
	}
	if err := svc.HandleStageChanged(context.Background(),
		stageChanged(enquiryID, domain.StagePayment, domain.StageStatusOpen)); err != nil {
		t.Fatalf("HandleStageChanged: %v", err)
	}

	if _, err := svc.Get(context.Background(), enquiryID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestHandleStageChangedIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	bus := &captureBus{}
	svc := New(repo, &fakeReader{}, bus, testLogger())
	enquiryID := uuid.New()

	for i := 0; i < 3; i++ {
		if err := svc.HandleStageChanged(context.Background(),
			stageChanged(enquiryID, domain.StageAdmission, domain.StageStatusAdmitted)); err != nil {
			t.Fatalf("HandleStageChanged: %v", err)
		}
	}

	if len(bus.events) != 1 {
		t.Errorf("published %d events, want 1", len(bus.events))
	}
}

func TestHandleStageChangedProvisionalAdmission(t *testing.T) {
	repo := newFakeRepo()
	reader := &fakeReader{snapshot: EnquirySnapshot{AdmissionStatus: domain.StageStatusProvisionalAdmission}}
	svc := New(repo, reader, nil, testLogger())
	enquiryID := uuid.New()

	if err := svc.HandleStageChanged(context.Background(),
		stageChanged(enquiryID, domain.StageAdmission, domain.StageStatusProvisionalAdmission)); err != nil {
		t.Fatalf("HandleStageChanged: %v", err)
	}

	admission, err := svc.Get(context.Background(), enquiryID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if admission.ApprovalStatus != repository.ApprovalProvisional {
		t.Errorf("approval status = %q, want Provisional", admission.ApprovalStatus)
	}
}

func TestSetApprovalValidatesStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, &fakeReader{}, nil, testLogger())
	enquiryID := uuid.New()

	if _, err := svc.SetApproval(context.Background(), enquiryID, "Maybe", uuid.New()); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("err = %v, want validation error", err)
	}

	if err := svc.HandleStageChanged(context.Background(),
		stageChanged(enquiryID, domain.StagePayment, domain.StageStatusApproved)); err != nil {
		t.Fatalf("HandleStageChanged: %v", err)
	}

	admission, err := svc.SetApproval(context.Background(), enquiryID, repository.ApprovalApproved, uuid.New())
	if err != nil {
		t.Fatalf("SetApproval: %v", err)
	}
	if admission.ApprovalStatus != repository.ApprovalApproved {
		t.Errorf("approval status = %q, want Approved", admission.ApprovalStatus)
	}
}
