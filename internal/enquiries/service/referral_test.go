package service

import (
	"context"
	"strings"
	"testing"

	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/enquiries/transport"
	"admissions_backend/platform/apperr"

	"github.com/google/uuid"
)

func referredEnquiry(t *testing.T, svc *Service, repo *fakeRepo) repository.Enquiry {
	t.Helper()
	req := createRequest()
	req.Referral = &transport.ReferralSourceDTO{
		Employee: &domain.EmployeeSource{EmployeeID: 301, EmployeeName: "Priya Nair", PhoneNumber: "+919811100011"},
	}
	resp, err := svc.Create(context.Background(), req, uuid.New())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	enquiry, err := repo.GetByID(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return enquiry
}

func TestVerifyReferralSideMatchesSourcePhone(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	enquiry := referredEnquiry(t, svc, repo)

	msg, err := svc.VerifyReferral(context.Background(), enquiry.ID, transport.VerifyReferralRequest{
		Side:  domain.SideReferral,
		Phone: "+919811100011",
	}, uuid.New())
	if err != nil {
		t.Fatalf("VerifyReferral: %v", err)
	}
	if msg != "referral verified" {
		t.Errorf("message = %q, want %q", msg, "referral verified")
	}

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if !fresh.Referral.Referral.Verified {
		t.Error("referral side not persisted as verified")
	}
	if len(repo.logsOfType(enquiry.ID, repository.LogEventReferralVerified)) != 1 {
		t.Error("verification audit record missing")
	}
}

func TestVerifyReferrerSideMatchesParentPhones(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	enquiry := referredEnquiry(t, svc, repo)

	// The referrer side verifies against the enquiry's own parent numbers,
	// not the source's.
	if _, err := svc.VerifyReferral(context.Background(), enquiry.ID, transport.VerifyReferralRequest{
		Side:  domain.SideReferrer,
		Phone: "+919811100011",
	}, uuid.New()); err == nil {
		t.Fatal("source phone must not verify the referrer side")
	}

	enquiry, _ = repo.GetByID(context.Background(), enquiry.ID)
	if _, err := svc.VerifyReferral(context.Background(), enquiry.ID, transport.VerifyReferralRequest{
		Side:  domain.SideReferrer,
		Phone: "+919812345670",
	}, uuid.New()); err != nil {
		t.Fatalf("parent phone rejected: %v", err)
	}
}

func TestVerifyReferralFirstMismatchLeavesOneAttempt(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	enquiry := referredEnquiry(t, svc, repo)

	_, err := svc.VerifyReferral(context.Background(), enquiry.ID, transport.VerifyReferralRequest{
		Side:  domain.SideReferral,
		Phone: "+919899999999",
	}, uuid.New())
	if err == nil {
		t.Fatal("mismatch accepted")
	}
	if !strings.Contains(err.Error(), "1 attempt(s) left") {
		t.Errorf("error = %q, want it to mention 1 attempt(s) left", err.Error())
	}
}

func TestVerifyReferralLocksAfterThreeFailures(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	enquiry := referredEnquiry(t, svc, repo)
	actor := uuid.New()

	wrong := transport.VerifyReferralRequest{Side: domain.SideReferral, Phone: "+919899999999"}
	var lastErr error
	for range 3 {
		_, lastErr = svc.VerifyReferral(context.Background(), enquiry.ID, wrong, actor)
	}
	if lastErr == nil || !strings.Contains(lastErr.Error(), "locked") {
		t.Fatalf("third failure error = %v, want lock message", lastErr)
	}

	// The correct phone no longer helps once locked.
	_, err := svc.VerifyReferral(context.Background(), enquiry.ID, transport.VerifyReferralRequest{
		Side:  domain.SideReferral,
		Phone: "+919811100011",
	}, actor)
	if !apperr.Is(err, apperr.KindBusinessRule) || !strings.Contains(err.Error(), "locked") {
		t.Errorf("post-lock verify: err = %v, want locked business-rule error", err)
	}
}

func TestVerifyReferralIsPermanent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	enquiry := referredEnquiry(t, svc, repo)
	actor := uuid.New()

	if _, err := svc.VerifyReferral(context.Background(), enquiry.ID, transport.VerifyReferralRequest{
		Side:  domain.SideReferral,
		Phone: "+919811100011",
	}, actor); err != nil {
		t.Fatalf("VerifyReferral: %v", err)
	}

	_, err := svc.VerifyReferral(context.Background(), enquiry.ID, transport.VerifyReferralRequest{
		Side:  domain.SideReferral,
		Phone: "+919811100011",
	}, actor)
	if !apperr.Is(err, apperr.KindBusinessRule) {
		t.Errorf("re-verify: err = %v, want business-rule error", err)
	}
}

func TestManualVerifyIsTerminal(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	enquiry := referredEnquiry(t, svc, repo)
	actor := uuid.New()

	if err := svc.ManualReferral(context.Background(), enquiry.ID, transport.ManualReferralRequest{
		Action:  "verify",
		Remarks: "verified over the counter",
	}, actor); err != nil {
		t.Fatalf("ManualReferral: %v", err)
	}

	err := svc.ManualReferral(context.Background(), enquiry.ID, transport.ManualReferralRequest{Action: "verify"}, actor)
	if !apperr.Is(err, apperr.KindBusinessRule) {
		t.Errorf("second manual verify: err = %v, want business-rule error", err)
	}

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if fresh.Referral.DisplayStatus() != domain.ReferralStatusVerified {
		t.Errorf("display status = %q, want Verified", fresh.Referral.DisplayStatus())
	}
}

func TestManualRejectionShowsRejectedEvenAfterManualVerify(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{})
	enquiry := referredEnquiry(t, svc, repo)
	actor := uuid.New()

	if err := svc.ManualReferral(context.Background(), enquiry.ID, transport.ManualReferralRequest{Action: "verify"}, actor); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.ManualReferral(context.Background(), enquiry.ID, transport.ManualReferralRequest{
		Action:  "reject",
		Remarks: "claim disputed by employee",
	}, actor); err != nil {
		t.Fatalf("reject: %v", err)
	}

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if fresh.Referral.DisplayStatus() != domain.ReferralStatusRejected {
		t.Errorf("display status = %q, want Rejected", fresh.Referral.DisplayStatus())
	}
}
