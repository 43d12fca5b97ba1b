package service

import (
	"context"
	"testing"

	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/enquiries/ports"
	"admissions_backend/internal/enquiries/repository"

	"github.com/google/uuid"
)

func openEnquiries(t *testing.T, repo *fakeRepo) []repository.Enquiry {
	t.Helper()
	items, _, err := repo.List(context.Background(), repository.ListParams{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	open := []repository.Enquiry{}
	for _, item := range items {
		if item.Status == domain.EnquiryStatusOpen {
			open = append(open, item)
		}
	}
	return open
}

func TestDuplicateInSameYearHigherRankWins(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	actor := uuid.New()

	// First enquiry progresses to Registration.
	first := createdEnquiry(t, svc, repo)
	setStage(t, repo, &first, domain.StageSchoolVisit, domain.StageStatusCompleted)
	setStage(t, repo, &first, domain.StageRegistration, domain.StageStatusInProgress)

	// Second capture for the same student triggers resolution.
	resp, err := svc.Create(context.Background(), createRequest(), actor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	open := openEnquiries(t, repo)
	if len(open) != 1 {
		t.Fatalf("open enquiries = %d, want exactly 1 after resolution", len(open))
	}
	if open[0].ID != first.ID {
		t.Errorf("survivor = %s, want the further-progressed enquiry %s", open[0].ID, first.ID)
	}

	closedNew, err := repo.GetByID(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if closedNew.Status != domain.EnquiryStatusClosed {
		t.Errorf("new enquiry status = %q, want Closed", closedNew.Status)
	}

	closures := repo.logsOfType(resp.ID, repository.LogEventEnquiryClosed)
	if len(closures) != 1 {
		t.Fatalf("closure logs on loser = %d, want 1", len(closures))
	}
	if closures[0].LogData["status"] != "Duplicate" {
		t.Errorf("closure log status = %v, want Duplicate", closures[0].LogData["status"])
	}
}

func TestDuplicateInSameYearFreshCaptureWinsWhenFurther(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	actor := uuid.New()

	// A stale first enquiry that never moved past the initial stage.
	first := createdEnquiry(t, svc, repo)

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StageRegistration, domain.StageStatusCompleted)
	setStage(t, repo, &enquiry, domain.StageAssessment, domain.StageStatusPassed)

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	outcome, err := svc.CheckReopenNeeded(context.Background(), fresh, actor)
	if err != nil {
		t.Fatalf("CheckReopenNeeded: %v", err)
	}
	if outcome != OutcomeContinueWithNew {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeContinueWithNew)
	}

	open := openEnquiries(t, repo)
	if len(open) != 1 || open[0].ID != enquiry.ID {
		t.Errorf("survivor set wrong: %d open, want only %s", len(open), enquiry.ID)
	}
	_ = first
}

func TestAlreadyAdmittedClosesEverythingIncludingCaller(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	actor := uuid.New()

	admitted := createdEnquiry(t, svc, repo)
	stages := admitted.Stages
	for i := range stages {
		stages[i].Status = domain.StageStatusCompleted
	}
	stages[len(stages)-1].Status = domain.StageStatusAdmitted
	if err := repo.ReplaceStageStatuses(context.Background(), admitted.ID, stages); err != nil {
		t.Fatalf("ReplaceStageStatuses: %v", err)
	}

	resp, err := svc.Create(context.Background(), createRequest(), actor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	caller, _ := repo.GetByID(context.Background(), resp.ID)
	if caller.Status != domain.EnquiryStatusClosed {
		t.Errorf("caller status = %q, want Closed when the student is already admitted", caller.Status)
	}
}

func TestActiveStudentInMasterDataCountsAsAdmitted(t *testing.T) {
	repo := newFakeRepo()
	mdm := &fakeMDM{activeStudent: &ports.ActiveStudent{StudentGlobalID: 5050, EnrolmentNumber: "EN-5050"}}
	svc := newTestService(repo, Options{MasterData: mdm})
	actor := uuid.New()

	other := createdEnquiry(t, svc, repo)

	enquiry, _ := repo.GetByID(context.Background(), other.ID)
	second, err := repo.Create(context.Background(), repository.CreateEnquiryParams{
		EnquiryType:  enquiry.EnquiryType,
		AcademicYear: enquiry.AcademicYear,
		School:       enquiry.School,
		Grade:        enquiry.Grade,
		Student:      enquiry.Student,
		Parents:      enquiry.Parents,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	outcome, err := svc.CheckReopenNeeded(context.Background(), second, actor)
	if err != nil {
		t.Fatalf("CheckReopenNeeded: %v", err)
	}
	if outcome != OutcomeAlreadyAdmitted {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeAlreadyAdmitted)
	}
	if len(openEnquiries(t, repo)) != 0 {
		t.Error("open enquiries remain although the student is actively enrolled")
	}
}

func TestOtherYearDuplicatesCallerWins(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	actor := uuid.New()

	previous := createdEnquiry(t, svc, repo)
	year := domain.Ref{ID: 6, Value: "2025-26"}
	if _, err := repo.Update(context.Background(), previous.ID, previous.Revision, repository.UpdateParams{
		AcademicYear: &year,
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	resp, err := svc.Create(context.Background(), createRequest(), actor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	open := openEnquiries(t, repo)
	if len(open) != 1 {
		t.Fatalf("open enquiries = %d, want 1", len(open))
	}
	if open[0].ID != resp.ID {
		t.Errorf("survivor = %s, want the fresh capture %s", open[0].ID, resp.ID)
	}

	stale, _ := repo.GetByID(context.Background(), previous.ID)
	if stale.Status != domain.EnquiryStatusClosed {
		t.Errorf("previous-year enquiry status = %q, want Closed", stale.Status)
	}
}

func TestCheckDuplicateIsReadOnly(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})

	existing := createdEnquiry(t, svc, repo)

	result, err := svc.CheckDuplicate(context.Background(),
		existing.Student.FirstName, existing.Student.LastName,
		existing.Student.DOB.Format("2006-01-02"),
		existing.EnquiryType, existing.School.ID)
	if err != nil {
		t.Fatalf("CheckDuplicate: %v", err)
	}
	if result.Outcome != OutcomeDuplicatesFound {
		t.Errorf("outcome = %q, want %q", result.Outcome, OutcomeDuplicatesFound)
	}
	if len(result.Duplicates) != 1 {
		t.Errorf("duplicates = %d, want 1", len(result.Duplicates))
	}

	after, _ := repo.GetByID(context.Background(), existing.ID)
	if after.Status != domain.EnquiryStatusOpen {
		t.Errorf("probe mutated status to %q", after.Status)
	}
}
