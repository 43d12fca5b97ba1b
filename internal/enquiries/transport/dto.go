package transport

import (
	"time"

	"admissions_backend/internal/enquiries/domain"
	"admissions_backend/internal/enquiries/repository"

	"github.com/google/uuid"
)

// RefDTO is an {id, value} master-data reference pair on the wire.
type RefDTO struct {
	ID    int64  `json:"id" validate:"required,gt=0"`
	Value string `json:"value" validate:"required,min=1,max=200"`
}

// OptionalRefDTO is a RefDTO that may be absent.
type OptionalRefDTO struct {
	ID    int64  `json:"id" validate:"omitempty,gt=0"`
	Value string `json:"value" validate:"omitempty,max=200"`
}

type ParentDTO struct {
	Name  string `json:"name" validate:"required,min=1,max=150"`
	Phone string `json:"phone" validate:"required,min=5,max=20"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	// PortalPassword sets the parent portal credential. Write-only; bcrypt
	// caps input at 72 bytes.
	PortalPassword string `json:"portalPassword,omitempty" validate:"omitempty,min=8,max=72"`
}

type StudentDTO struct {
	FirstName       string `json:"firstName" validate:"required,min=1,max=100"`
	LastName        string `json:"lastName" validate:"required,min=1,max=100"`
	DOB             string `json:"dob" validate:"required,datetime=2006-01-02"`
	EnrolmentNumber string `json:"enrolmentNumber,omitempty" validate:"omitempty,max=50"`
}

// ReferralSourceDTO carries at most one referral-source variant.
type ReferralSourceDTO struct {
	Parent    *domain.ParentSource    `json:"parent,omitempty"`
	Employee  *domain.EmployeeSource  `json:"employee,omitempty"`
	School    *domain.SchoolSource    `json:"school,omitempty"`
	Corporate *domain.CorporateSource `json:"corporate,omitempty"`
}

// Request DTOs

type CreateEnquiryRequest struct {
	EnquiryType  string             `json:"enquiryType" validate:"required"`
	AcademicYear RefDTO             `json:"academicYear" validate:"required"`
	School       RefDTO             `json:"school" validate:"required"`
	Board        OptionalRefDTO     `json:"board,omitempty"`
	Course       OptionalRefDTO     `json:"course,omitempty"`
	Grade        RefDTO             `json:"grade" validate:"required"`
	Stream       OptionalRefDTO     `json:"stream,omitempty"`
	Shift        OptionalRefDTO     `json:"shift,omitempty"`
	Father       *ParentDTO         `json:"father,omitempty"`
	Mother       *ParentDTO         `json:"mother,omitempty"`
	Guardian     *ParentDTO         `json:"guardian,omitempty"`
	Student      StudentDTO         `json:"student" validate:"required"`
	Referral     *ReferralSourceDTO `json:"referral,omitempty"`
	AssignedTo   *uuid.UUID         `json:"assignedTo,omitempty"`
	Channel      string             `json:"channel,omitempty" validate:"omitempty,max=50"`
	Remarks      string             `json:"remarks,omitempty" validate:"omitempty,max=2000"`
}

// StageUpdateDTO mutates one stage's status during an enquiry update.
type StageUpdateDTO struct {
	StageName string `json:"stageName" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

type UpdateEnquiryRequest struct {
	Revision     int64            `json:"revision" validate:"gte=0"`
	Status       *string          `json:"status,omitempty"`
	AcademicYear *RefDTO          `json:"academicYear,omitempty"`
	Grade        *RefDTO          `json:"grade,omitempty"`
	Stream       *OptionalRefDTO  `json:"stream,omitempty"`
	Shift        *OptionalRefDTO  `json:"shift,omitempty"`
	Father       *ParentDTO       `json:"father,omitempty"`
	Mother       *ParentDTO       `json:"mother,omitempty"`
	Guardian     *ParentDTO       `json:"guardian,omitempty"`
	Student      *StudentDTO      `json:"student,omitempty"`
	AssignedTo   *uuid.UUID       `json:"assignedTo,omitempty"`
	Remarks      *string          `json:"remarks,omitempty" validate:"omitempty,max=2000"`
	StageUpdates []StageUpdateDTO `json:"stageUpdates,omitempty" validate:"omitempty,dive"`
}

type TransferRequest struct {
	EnquiryIDs   []uuid.UUID `json:"enquiryIds" validate:"required,min=1,dive,required"`
	School       *RefDTO     `json:"school,omitempty"`
	AcademicYear *RefDTO     `json:"academicYear,omitempty"`
}

type ReassignRequest struct {
	EnquiryIDs []uuid.UUID `json:"enquiryIds" validate:"required,min=1,dive,required"`
	AssigneeID uuid.UUID   `json:"assigneeId" validate:"required"`
}

type ReopenRequest struct {
	EnquiryIDs []uuid.UUID `json:"enquiryIds" validate:"required,min=1,dive,required"`
}

type MergeRequest struct {
	SourceIDs []uuid.UUID `json:"sourceIds" validate:"required,min=1,dive,required"`
}

type VerifyReferralRequest struct {
	Side  string `json:"side" validate:"required,oneof=referrer referral"`
	Phone string `json:"phone" validate:"required,min=5,max=20"`
}

type ManualReferralRequest struct {
	Action  string `json:"action" validate:"required,oneof=verify reject"`
	Remarks string `json:"remarks,omitempty" validate:"omitempty,max=500"`
}

// PaymentWebhookRequest is the inbound payment-gateway event.
type PaymentWebhookRequest struct {
	EnquiryNumber string `json:"enquiryNumber" validate:"required"`
	FeeType       string `json:"feeType" validate:"required,oneof=registration admission"`
	AmountPaise   int64  `json:"amountPaise" validate:"required,gt=0"`
	TransactionID string `json:"transactionId" validate:"required,max=100"`
	PaidAt        string `json:"paidAt" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Signature     string `json:"signature" validate:"required"`
}

type CloseEnquiryRequest struct {
	Reason  string `json:"reason" validate:"required,max=200"`
	Remarks string `json:"remarks,omitempty" validate:"omitempty,max=2000"`
}

// Response DTOs

type StageResponse struct {
	Position  int    `json:"position"`
	StageName string `json:"stageName"`
	Status    string `json:"status"`
}

type EnquiryResponse struct {
	ID              uuid.UUID       `json:"id"`
	EnquiryNumber   string          `json:"enquiryNumber"`
	EnquiryType     string          `json:"enquiryType"`
	Status          string          `json:"status"`
	CurrentStage    string          `json:"currentStage"`
	AcademicYear    RefDTO          `json:"academicYear"`
	School          RefDTO          `json:"school"`
	Board           *RefDTO         `json:"board,omitempty"`
	Course          *RefDTO         `json:"course,omitempty"`
	Grade           RefDTO          `json:"grade"`
	Stream          *RefDTO         `json:"stream,omitempty"`
	Shift           *RefDTO         `json:"shift,omitempty"`
	Father          *ParentDTO      `json:"father,omitempty"`
	Mother          *ParentDTO      `json:"mother,omitempty"`
	Guardian        *ParentDTO      `json:"guardian,omitempty"`
	Student         StudentDTO      `json:"student"`
	AssignedTo      *uuid.UUID      `json:"assignedTo,omitempty"`
	Stages          []StageResponse `json:"stages"`
	ReferralStatus  string          `json:"referralStatus"`
	ReferralKind    string          `json:"referralKind,omitempty"`
	RegistrationFeeRequestTriggered bool `json:"registrationFeeRequestTriggered"`
	AdmissionFeeRequestTriggered    bool `json:"admissionFeeRequestTriggered"`
	RegistrationFeesPaid            bool `json:"registrationFeesPaid"`
	Remarks         *string         `json:"remarks,omitempty"`
	Revision        int64           `json:"revision"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type EnquiryListResponse struct {
	Items []EnquiryResponse `json:"items"`
	Total int               `json:"total"`
}

type LogResponse struct {
	ID           uuid.UUID      `json:"id"`
	EnquiryID    uuid.UUID      `json:"enquiryId"`
	EventType    string         `json:"eventType"`
	EventSubType *string        `json:"eventSubType,omitempty"`
	Event        string         `json:"event"`
	LogData      map[string]any `json:"logData,omitempty"`
	CreatedBy    uuid.UUID      `json:"createdBy"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type DocumentResponse struct {
	ID         uuid.UUID `json:"id"`
	DocumentID int64     `json:"documentId"`
	FileName   string    `json:"fileName"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	// DownloadURL is a short-lived signed URL, present on single fetches.
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// FeeRequestResponse exposes one fee-trigger outbox row for inspection.
type FeeRequestResponse struct {
	ID        uuid.UUID `json:"id"`
	FeeType   string    `json:"feeType"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError *string   `json:"lastError,omitempty"`
	RunAt     time.Time `json:"runAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// BatchFailure reports one failed item of a bulk workflow.
type BatchFailure struct {
	EnquiryID uuid.UUID `json:"enquiryId"`
	Reason    string    `json:"reason"`
}

type BatchResponse struct {
	Succeeded []uuid.UUID    `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// DuplicateCheckResponse reports the outcome of an explicit duplicate probe.
type DuplicateCheckResponse struct {
	Outcome    string            `json:"outcome"`
	Duplicates []EnquiryResponse `json:"duplicates,omitempty"`
	// StudentLink points at the active student record when the outcome is
	// "already_admitted".
	StudentLink string `json:"studentLink,omitempty"`
}

// Mapping helpers

func refToDTO(ref domain.Ref) RefDTO {
	return RefDTO{ID: ref.ID, Value: ref.Value}
}

func optionalRefToDTO(ref domain.Ref) *RefDTO {
	if ref.IsZero() {
		return nil
	}
	dto := refToDTO(ref)
	return &dto
}

func parentToDTO(parent *repository.Parent) *ParentDTO {
	if parent == nil {
		return nil
	}
	return &ParentDTO{Name: parent.Name, Phone: parent.Phone, Email: parent.Email}
}

// ToEnquiryResponse maps the aggregate onto the wire shape. Credential
// hashes and raw referral details never leave through this path.
func ToEnquiryResponse(e repository.Enquiry) EnquiryResponse {
	stages := make([]StageResponse, len(e.Stages))
	for i, stage := range e.Stages {
		stages[i] = StageResponse{Position: stage.Position, StageName: stage.StageName, Status: stage.Status}
	}

	student := StudentDTO{
		FirstName: e.Student.FirstName,
		LastName:  e.Student.LastName,
		DOB:       e.Student.DOB.Format("2006-01-02"),
	}
	if e.Student.EnrolmentNumber != nil {
		student.EnrolmentNumber = *e.Student.EnrolmentNumber
	}

	return EnquiryResponse{
		ID:             e.ID,
		EnquiryNumber:  e.EnquiryNumber,
		EnquiryType:    e.EnquiryType,
		Status:         e.Status,
		CurrentStage:   domain.CurrentStage(e.Stages),
		AcademicYear:   refToDTO(e.AcademicYear),
		School:         refToDTO(e.School),
		Board:          optionalRefToDTO(e.Board),
		Course:         optionalRefToDTO(e.Course),
		Grade:          refToDTO(e.Grade),
		Stream:         optionalRefToDTO(e.Stream),
		Shift:          optionalRefToDTO(e.Shift),
		Father:         parentToDTO(e.Parents.Father),
		Mother:         parentToDTO(e.Parents.Mother),
		Guardian:       parentToDTO(e.Parents.Guardian),
		Student:        student,
		AssignedTo:     e.AssignedTo,
		Stages:         stages,
		ReferralStatus: e.Referral.DisplayStatus(),
		ReferralKind:   e.Referral.Source.Resolve(),
		RegistrationFeeRequestTriggered: e.RegistrationFeeRequestTriggered,
		AdmissionFeeRequestTriggered:    e.AdmissionFeeRequestTriggered,
		RegistrationFeesPaid:            e.RegistrationFeesPaid,
		Remarks:        e.Remarks,
		Revision:       e.Revision,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func ToLogResponse(log repository.Log) LogResponse {
	return LogResponse{
		ID:           log.ID,
		EnquiryID:    log.EnquiryID,
		EventType:    log.EventType,
		EventSubType: log.EventSubType,
		Event:        log.Event,
		LogData:      log.LogData,
		CreatedBy:    log.CreatedBy,
		CreatedAt:    log.CreatedAt,
	}
}

func ToFeeRequestResponse(req repository.FeeRequest) FeeRequestResponse {
	return FeeRequestResponse{
		ID:        req.ID,
		FeeType:   req.FeeType,
		Status:    string(req.Status),
		Attempts:  req.Attempts,
		LastError: req.LastError,
		RunAt:     req.RunAt,
		CreatedAt: req.CreatedAt,
	}
}

func ToDocumentResponse(doc repository.Document) DocumentResponse {
	return DocumentResponse{
		ID:         doc.ID,
		DocumentID: doc.DocumentID,
		FileName:   doc.FileName,
		IsVerified: doc.IsVerified,
		CreatedAt:  doc.CreatedAt,
	}
}
