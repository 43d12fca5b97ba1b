package service

import (
	"context"
	"strings"
	"testing"

	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/enquiries/transport"

	"github.com/google/uuid"
)

func TestTransferRejectsYearChangeDuringRegistration(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	actor := uuid.New()

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StageRegistration, domain.StageStatusInProgress)

	result, err := svc.Transfer(context.Background(), transport.TransferRequest{
		EnquiryIDs:   []uuid.UUID{enquiry.ID},
		AcademicYear: &transport.RefDTO{ID: 8, Value: "2027-28"},
	}, actor)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if len(result.Succeeded) != 0 || len(result.Failed) != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 0/1", len(result.Succeeded), len(result.Failed))
	}
	if !strings.Contains(result.Failed[0].Reason, "registration") {
		t.Errorf("failure reason = %q, want a registration-in-progress message", result.Failed[0].Reason)
	}

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if fresh.AcademicYear.ID != enquiry.AcademicYear.ID {
		t.Error("academic year changed despite the rejection")
	}
}

func TestTransferSameYearSchoolChangeDeEnrollsPendingFees(t *testing.T) {
	repo := newFakeRepo()
	finance := &fakeFinance{pendingFees: []int64{61, 62}}
	globalID := int64(4400)
	svc := newTestService(repo, Options{Finance: finance, MasterData: &fakeMDM{studentGlobalID: &globalID}})
	actor := uuid.New()

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StageRegistration, domain.StageStatusInProgress)

	result, err := svc.Transfer(context.Background(), transport.TransferRequest{
		EnquiryIDs: []uuid.UUID{enquiry.ID},
		School:     &transport.RefDTO{ID: 9, Value: "Lake Campus"},
	}, actor)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if len(result.Succeeded) != 1 {
		t.Fatalf("succeeded=%d failed=%v", len(result.Succeeded), result.Failed)
	}

	if len(finance.deEnrolled) != 2 {
		t.Errorf("de-enrolled %d fees before the move, want 2", len(finance.deEnrolled))
	}

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if fresh.School.ID != 9 {
		t.Errorf("school id = %d, want 9", fresh.School.ID)
	}
	if len(repo.logsOfType(enquiry.ID, repository.LogEventEnquiryTransferred)) != 1 {
		t.Error("transfer audit record missing")
	}
}

func TestTransferBatchIsolatesFailures(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	actor := uuid.New()

	good := createdEnquiry(t, svc, repo)
	missing := uuid.New()

	result, err := svc.Transfer(context.Background(), transport.TransferRequest{
		EnquiryIDs: []uuid.UUID{missing, good.ID},
		School:     &transport.RefDTO{ID: 9, Value: "Lake Campus"},
	}, actor)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	if len(result.Succeeded) != 1 || result.Succeeded[0] != good.ID {
		t.Errorf("succeeded = %v, want only %s", result.Succeeded, good.ID)
	}
	if len(result.Failed) != 1 || result.Failed[0].EnquiryID != missing {
		t.Errorf("failed = %v, want only the missing id", result.Failed)
	}
}

func TestReassignWritesAuditAndUpdatesAssignee(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	actor := uuid.New()
	counsellor := uuid.New()

	enquiry := createdEnquiry(t, svc, repo)

	result, err := svc.Reassign(context.Background(), transport.ReassignRequest{
		EnquiryIDs: []uuid.UUID{enquiry.ID},
		AssigneeID: counsellor,
	}, actor)
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if len(result.Succeeded) != 1 {
		t.Fatalf("succeeded=%d failed=%v", len(result.Succeeded), result.Failed)
	}

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if fresh.AssignedTo == nil || *fresh.AssignedTo != counsellor {
		t.Error("assignee not updated")
	}
	if len(repo.logsOfType(enquiry.ID, repository.LogEventEnquiryReassigned)) != 1 {
		t.Error("reassignment audit record missing")
	}

	// Reassigning to the current counsellor is a no-op failure, not a crash.
	result, _ = svc.Reassign(context.Background(), transport.ReassignRequest{
		EnquiryIDs: []uuid.UUID{enquiry.ID},
		AssigneeID: counsellor,
	}, actor)
	if len(result.Failed) != 1 {
		t.Errorf("repeat reassignment: failed=%d, want 1", len(result.Failed))
	}
}

func TestReopenRestoresClosedEnquiry(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{MasterData: &fakeMDM{currentYearID: 7}})
	actor := uuid.New()

	enquiry := createdEnquiry(t, svc, repo)
	if err := svc.Close(context.Background(), enquiry.ID, transport.CloseEnquiryRequest{Reason: "Not interested"}, actor); err != nil {
		t.Fatalf("Close: %v", err)
	}

	result, err := svc.Reopen(context.Background(), transport.ReopenRequest{EnquiryIDs: []uuid.UUID{enquiry.ID}}, actor)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if len(result.Succeeded) != 1 {
		t.Fatalf("succeeded=%d failed=%v", len(result.Succeeded), result.Failed)
	}

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if fresh.Status != domain.EnquiryStatusOpen {
		t.Errorf("status = %q, want Open", fresh.Status)
	}
}

func TestReopenRejectsLateStageProgress(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	actor := uuid.New()

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StagePayment, domain.StageStatusInProgress)
	if err := svc.Close(context.Background(), enquiry.ID, transport.CloseEnquiryRequest{Reason: "Dropped"}, actor); err != nil {
		t.Fatalf("Close: %v", err)
	}

	result, err := svc.Reopen(context.Background(), transport.ReopenRequest{EnquiryIDs: []uuid.UUID{enquiry.ID}}, actor)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("failed=%d, want 1 for late-stage progress", len(result.Failed))
	}
	if !strings.Contains(result.Failed[0].Reason, "progressed") {
		t.Errorf("failure reason = %q, want a stage-progress message", result.Failed[0].Reason)
	}
}

func TestReopenRejectsPastAcademicYear(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{MasterData: &fakeMDM{currentYearID: 9}})
	actor := uuid.New()

	enquiry := createdEnquiry(t, svc, repo)
	if err := svc.Close(context.Background(), enquiry.ID, transport.CloseEnquiryRequest{Reason: "Dropped"}, actor); err != nil {
		t.Fatalf("Close: %v", err)
	}

	result, err := svc.Reopen(context.Background(), transport.ReopenRequest{EnquiryIDs: []uuid.UUID{enquiry.ID}}, actor)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if len(result.Failed) != 1 || !strings.Contains(result.Failed[0].Reason, "past academic year") {
		t.Errorf("failed = %v, want a past-academic-year rejection", result.Failed)
	}
}

func TestReopenRejectsWhenAnotherOpenEnquiryExists(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{MasterData: &fakeMDM{currentYearID: 7}})
	actor := uuid.New()

	first := createdEnquiry(t, svc, repo)
	if err := svc.Close(context.Background(), first.ID, transport.CloseEnquiryRequest{Reason: "Duplicate"}, actor); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// A second open enquiry for the same student blocks the reopen.
	if _, err := svc.Create(context.Background(), createRequest(), actor); err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := svc.Reopen(context.Background(), transport.ReopenRequest{EnquiryIDs: []uuid.UUID{first.ID}}, actor)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if len(result.Failed) != 1 || !strings.Contains(result.Failed[0].Reason, "open enquiry") {
		t.Errorf("failed = %v, want an open-duplicate rejection", result.Failed)
	}
}

func TestMergeMovesRecordsAndClosesSources(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	actor := uuid.New()

	target := createdEnquiry(t, svc, repo)

	source, err := repo.Create(context.Background(), repository.CreateEnquiryParams{
		EnquiryType:  target.EnquiryType,
		AcademicYear: target.AcademicYear,
		School:       target.School,
		Grade:        target.Grade,
		Parents:      target.Parents,
		Student: repository.StudentDetails{
			FirstName: "Ishan", LastName: "Mehta", DOB: target.Student.DOB,
		},
		Referral: domain.ReferralDetails{
			Source: domain.ReferralSource{
				Kind:     domain.SourceKindEmployee,
				Employee: &domain.EmployeeSource{EmployeeID: 77, EmployeeName: "Priya Nair", PhoneNumber: "+919811100011"},
			},
		},
	})
	if err != nil {
		t.Fatalf("Create source: %v", err)
	}
	if _, err := repo.AddDocument(context.Background(), repository.AddDocumentParams{
		EnquiryID: source.ID, DocumentID: 12, FileName: "birth-certificate.pdf", FileKey: "k1", UploadedBy: actor,
	}); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	result, err := svc.Merge(context.Background(), target.ID, transport.MergeRequest{
		SourceIDs: []uuid.UUID{source.ID},
	}, actor)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(result.Succeeded) != 1 {
		t.Fatalf("succeeded=%d failed=%v", len(result.Succeeded), result.Failed)
	}

	docs, _ := repo.ListDocuments(context.Background(), target.ID)
	if len(docs) != 1 {
		t.Errorf("target documents = %d, want 1 after merge", len(docs))
	}

	mergedSource, _ := repo.GetByID(context.Background(), source.ID)
	if mergedSource.Status != domain.EnquiryStatusClosed {
		t.Errorf("source status = %q, want Closed", mergedSource.Status)
	}

	freshTarget, _ := repo.GetByID(context.Background(), target.ID)
	if freshTarget.Referral.Source.Resolve() != domain.SourceKindEmployee {
		t.Error("referral claim did not move to the target")
	}
	if len(repo.logsOfType(target.ID, repository.LogEventEnquiryMerged)) != 1 {
		t.Error("merge audit record missing")
	}
}

func TestMergeRejectsSelfAndMissingSources(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	actor := uuid.New()

	target := createdEnquiry(t, svc, repo)
	missing := uuid.New()

	result, err := svc.Merge(context.Background(), target.ID, transport.MergeRequest{
		SourceIDs: []uuid.UUID{target.ID, missing},
	}, actor)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(result.Succeeded) != 0 || len(result.Failed) != 2 {
		t.Errorf("succeeded=%d failed=%d, want 0/2", len(result.Succeeded), len(result.Failed))
	}
}
