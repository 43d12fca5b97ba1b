package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/enquiries/repository"
	"admissions_backend/internal/enquiries/transport"
	"admissions_backend/platform/apperr"

	"github.com/google/uuid"
)

const testWebhookSecret = "webhook-secret-for-tests"

func signedWebhook(enquiryNumber, feeType string, amount int64, txID string) transport.PaymentWebhookRequest {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%s|%s|%d|%s", enquiryNumber, feeType, amount, txID)
	return transport.PaymentWebhookRequest{
		EnquiryNumber: enquiryNumber,
		FeeType:       feeType,
		AmountPaise:   amount,
		TransactionID: txID,
		Signature:     hex.EncodeToString(mac.Sum(nil)),
	}
}

func TestRecordPaymentRejectsBadSignature(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{PaymentWebhookSecret: testWebhookSecret})

	req := signedWebhook("ENQ-000001", repository.FeeTypeRegistration, 500000, "TXN-1")
	req.Signature = "tampered"

	err := svc.RecordPayment(context.Background(), req)
	if !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("err = %v, want unauthorized", err)
	}
}

func TestRecordRegistrationPaymentMarksPaidAndAdvances(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{PaymentWebhookSecret: testWebhookSecret})
	actor := uuid.New()

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StageRegistration, domain.StageStatusInProgress)
	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if err := svc.EvaluateFeeTriggers(context.Background(), &fresh, actor); err != nil {
		t.Fatalf("EvaluateFeeTriggers: %v", err)
	}

	req := signedWebhook(enquiry.EnquiryNumber, repository.FeeTypeRegistration, 500000, "TXN-100")
	if err := svc.RecordPayment(context.Background(), req); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	fresh, _ = repo.GetByID(context.Background(), enquiry.ID)
	if !fresh.RegistrationFeesPaid {
		t.Error("registration fees not marked paid")
	}
	if got := domain.StageStatus(fresh.Stages, domain.StageRegistration); got != domain.StageStatusCompleted {
		t.Errorf("registration stage = %q, want Completed", got)
	}
	if got := domain.StageStatus(fresh.Stages, domain.StageAssessment); got != domain.StageStatusInProgress {
		t.Errorf("assessment stage = %q, want In Progress after registration completes", got)
	}

	requests, _ := repo.ListFeeRequests(context.Background(), enquiry.ID)
	for _, request := range requests {
		if request.FeeType == repository.FeeTypeRegistration && request.Status != repository.FeeRequestAcknowledged {
			t.Errorf("outbox row status = %q, want acknowledged", request.Status)
		}
	}
	if len(repo.logsOfType(enquiry.ID, repository.LogEventPaymentRecorded)) != 1 {
		t.Error("payment audit record missing")
	}
}

func TestRecordAdmissionPaymentCompletesPaymentStage(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{PaymentWebhookSecret: testWebhookSecret})

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StagePayment, domain.StageStatusInProgress)

	req := signedWebhook(enquiry.EnquiryNumber, repository.FeeTypeAdmission, 2500000, "TXN-200")
	if err := svc.RecordPayment(context.Background(), req); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	fresh, _ := repo.GetByID(context.Background(), enquiry.ID)
	if got := domain.StageStatus(fresh.Stages, domain.StagePayment); got != domain.StageStatusCompleted {
		t.Errorf("payment stage = %q, want Completed", got)
	}
	if got := domain.StageStatus(fresh.Stages, domain.StageAdmission); got != domain.StageStatusInProgress {
		t.Errorf("admission stage = %q, want In Progress", got)
	}
}

func TestRecordPaymentReplayIsIgnored(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{PaymentWebhookSecret: testWebhookSecret})

	enquiry := createdEnquiry(t, svc, repo)
	setStage(t, repo, &enquiry, domain.StagePayment, domain.StageStatusInProgress)

	req := signedWebhook(enquiry.EnquiryNumber, repository.FeeTypeAdmission, 2500000, "TXN-300")
	if err := svc.RecordPayment(context.Background(), req); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.RecordPayment(context.Background(), req); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if got := len(repo.logsOfType(enquiry.ID, repository.LogEventPaymentRecorded)); got != 1 {
		t.Errorf("payment audit records = %d, want 1 after a replay", got)
	}
}

func TestRecordPaymentUnknownEnquiry(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, Options{PaymentWebhookSecret: testWebhookSecret})

	req := signedWebhook("ENQ-999999", repository.FeeTypeRegistration, 500000, "TXN-400")
	err := svc.RecordPayment(context.Background(), req)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}
