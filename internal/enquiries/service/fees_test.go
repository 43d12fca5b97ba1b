package service

import (
	"context"
	"errors"
	"testing"

	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/enquiries/ports"
	"admissions_backend/internal/enquiries/repository"

	"github.com/google/uuid"
)

func createdEnquiry(t *testing.T, svc *Service, repo *fakeRepo) repository.Enquiry {
	t.Helper()
	resp, err := svc.Create(context.Background(), createRequest(), uuid.New())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	enquiry, err := repo.GetByID(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return enquiry
}

func setStage(t *testing.T, repo *fakeRepo, enquiry *repository.Enquiry, stageName, status string) {
	t.Helper()
	idx := domain.FindStage(enquiry.Stages, stageName)
	if idx < 0 {
		t.Fatalf("stage %q missing", stageName)
	}
	enquiry.Stages[idx].Status = status
	if err := repo.ReplaceStageStatuses(context.Background(), enquiry.ID, enquiry.Stages); err != nil {
		t.Fatalf("ReplaceStageStatuses: %v", err)
	}
}

func TestRegistrationInProgressQueuesFeeRequestOnce(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{Finance: &fakeFinance{}})
	actor := uuid.New()

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StageRegistration, domain.StageStatusInProgress)

	for range 3 {
		fresh, err := repo.GetByID(context.Background(), enquiry.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if err := svc.EvaluateFeeTriggers(context.Background(), &fresh, actor); err != nil {
			t.Fatalf("EvaluateFeeTriggers: %v", err)
		}
	}

	requests, err := repo.ListFeeRequests(context.Background(), enquiry.ID)
	if err != nil {
		t.Fatalf("ListFeeRequests: %v", err)
	}
	registration := 0
	for _, req := range requests {
		if req.FeeType == repository.FeeTypeRegistration {
			registration++
		}
	}
	if registration != 1 {
		t.Errorf("registration fee requests = %d, want 1 after repeated evaluation", registration)
	}

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if !fresh.RegistrationFeeRequestTriggered {
		t.Error("registration trigger flag not set")
	}
}

func TestFullyPaidUpstreamFeeSuppressesQueueButSetsFlag(t *testing.T) {
	repo := newFakeRepo()
	finance := &fakeFinance{fees: []ports.FeeRecord{
		{FeeID: 11, FeeType: repository.FeeTypeRegistration, AmountPaise: 500000, PaidPaise: 500000},
	}}
	globalID := int64(9001)
	svc := newTestService(repo, Options{Finance: finance, MasterData: &fakeMDM{studentGlobalID: &globalID}})
	actor := uuid.New()

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StageRegistration, domain.StageStatusInProgress)

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if err := svc.EvaluateFeeTriggers(context.Background(), &fresh, actor); err != nil {
		t.Fatalf("EvaluateFeeTriggers: %v", err)
	}

	requests, _ := repo.ListFeeRequests(context.Background(), enquiry.ID)
	for _, req := range requests {
		if req.FeeType == repository.FeeTypeRegistration {
			t.Error("registration fee queued despite fully paid upstream fee")
		}
	}
	fresh, _ = repo.GetByID(context.Background(), enquiry.ID)
	if !fresh.RegistrationFeeRequestTriggered {
		t.Error("trigger flag must still be written when the queue is suppressed")
	}
}

func TestPartiallyPaidUpstreamFeeStillQueues(t *testing.T) {
	repo := newFakeRepo()
	finance := &fakeFinance{fees: []ports.FeeRecord{
		{FeeID: 11, FeeType: repository.FeeTypeRegistration, AmountPaise: 500000, PaidPaise: 100000},
	}}
	globalID := int64(9001)
	svc := newTestService(repo, Options{Finance: finance, MasterData: &fakeMDM{studentGlobalID: &globalID}})

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StageRegistration, domain.StageStatusInProgress)

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if err := svc.EvaluateFeeTriggers(context.Background(), &fresh, uuid.New()); err != nil {
		t.Fatalf("EvaluateFeeTriggers: %v", err)
	}

	requests, _ := repo.ListFeeRequests(context.Background(), enquiry.ID)
	found := false
	for _, req := range requests {
		if req.FeeType == repository.FeeTypeRegistration {
			found = true
		}
	}
	if !found {
		t.Error("partially paid upstream fee must not suppress the queue")
	}
}

func TestAdmissionWorkflowRestartResetsStages(t *testing.T) {
	repo := newFakeRepo()
	adminPanel := &fakeAdminPanel{}
	svc := newTestService(repo, Options{Finance: &fakeFinance{}, AdminPanel: adminPanel})
	actor := uuid.New()

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StagePayment, domain.StageStatusInProgress)

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if err := svc.EvaluateFeeTriggers(context.Background(), &fresh, actor); err != nil {
		t.Fatalf("EvaluateFeeTriggers: %v", err)
	}

	fresh, _ = repo.GetByID(context.Background(), enquiry.ID)
	if got := domain.StageStatus(fresh.Stages, domain.StagePayment); got != domain.StageStatusOpen {
		t.Errorf("payment stage = %q, want Open after workflow restart", got)
	}
	if got := domain.StageStatus(fresh.Stages, domain.StageAdmission); got != domain.StageStatusPending {
		t.Errorf("admission stage = %q, want Pending after workflow restart", got)
	}
	if len(adminPanel.disabled) != 1 || len(adminPanel.triggered) != 1 {
		t.Errorf("admin panel calls: disabled=%d triggered=%d, want 1 each", len(adminPanel.disabled), len(adminPanel.triggered))
	}

	// Re-evaluation while the outbox row is unsettled must not restart again.
	if err := svc.EvaluateFeeTriggers(context.Background(), &fresh, actor); err != nil {
		t.Fatalf("second EvaluateFeeTriggers: %v", err)
	}
	if len(adminPanel.triggered) != 1 {
		t.Errorf("workflow restarted %d times, want 1", len(adminPanel.triggered))
	}
}

func TestDispatchSendsClaimedRequests(t *testing.T) {
	repo := newFakeRepo()
	finance := &fakeFinance{}
	globalID := int64(7700)
	svc := newTestService(repo, Options{Finance: finance, MasterData: &fakeMDM{studentGlobalID: &globalID}})
	actor := uuid.New()

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StageRegistration, domain.StageStatusInProgress)
	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if err := svc.EvaluateFeeTriggers(context.Background(), &fresh, actor); err != nil {
		t.Fatalf("EvaluateFeeTriggers: %v", err)
	}

	dispatched, err := svc.DispatchPendingFeeRequests(context.Background(), 10)
	if err != nil {
		t.Fatalf("DispatchPendingFeeRequests: %v", err)
	}
	if dispatched != 1 {
		t.Fatalf("dispatched = %d, want 1", dispatched)
	}
	if len(finance.created) != 1 {
		t.Fatalf("finance fees created = %d, want 1", len(finance.created))
	}
	if finance.created[0].StudentGlobalID != globalID {
		t.Errorf("fee raised for global id %d, want %d", finance.created[0].StudentGlobalID, globalID)
	}
	if finance.created[0].EnquiryNumber != fresh.EnquiryNumber {
		t.Errorf("fee carries enquiry number %q, want %q", finance.created[0].EnquiryNumber, fresh.EnquiryNumber)
	}
}

func TestDispatchFailureReschedulesAsPending(t *testing.T) {
	repo := newFakeRepo()
	finance := &fakeFinance{createErr: errors.New("finance unavailable")}
	globalID := int64(7700)
	svc := newTestService(repo, Options{Finance: finance, MasterData: &fakeMDM{studentGlobalID: &globalID}})

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StageRegistration, domain.StageStatusInProgress)
	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if err := svc.EvaluateFeeTriggers(context.Background(), &fresh, uuid.New()); err != nil {
		t.Fatalf("EvaluateFeeTriggers: %v", err)
	}

	dispatched, err := svc.DispatchPendingFeeRequests(context.Background(), 10)
	if err != nil {
		t.Fatalf("DispatchPendingFeeRequests: %v", err)
	}
	if dispatched != 0 {
		t.Errorf("dispatched = %d, want 0 on upstream failure", dispatched)
	}

	requests, _ := repo.ListFeeRequests(context.Background(), enquiry.ID)
	if len(requests) != 1 {
		t.Fatalf("outbox rows = %d, want 1", len(requests))
	}
	if requests[0].Status != repository.FeeRequestPending {
		t.Errorf("status = %q, want pending for retry", requests[0].Status)
	}
	if requests[0].LastError == nil {
		t.Error("last error not recorded")
	}
	if !requests[0].RunAt.After(svc.now()) {
		t.Error("run_at not pushed into the future")
	}
}

func TestBulkDeEnrollBestEffort(t *testing.T) {
	repo := newFakeRepo()
	finance := &fakeFinance{pendingFees: []int64{41, 42, 43}}
	globalID := int64(8800)
	svc := newTestService(repo, Options{Finance: finance, MasterData: &fakeMDM{studentGlobalID: &globalID}})

	enquiry := createdEnquiry(t, svc, repo)
	svc.BulkDeEnroll(context.Background(), enquiry)

	if len(finance.deEnrolled) != 3 {
		t.Errorf("de-enrolled %d fees, want 3", len(finance.deEnrolled))
	}
}
