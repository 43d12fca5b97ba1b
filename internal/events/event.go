// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"admissions_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Enquiry Domain Events
// =============================================================================

// EnquiryCreated is published when a new admission enquiry is captured.
type EnquiryCreated struct {
	BaseEvent
	EnquiryID     uuid.UUID `json:"enquiryId"`
	EnquiryNumber string    `json:"enquiryNumber"`
	SchoolID      int64     `json:"schoolId"`
	AcademicYear  string    `json:"academicYear"`
	GradeID       int64     `json:"gradeId"`
	StudentName   string    `json:"studentName"`
	ParentName    string    `json:"parentName"`
	ParentPhone   string    `json:"parentPhone"`
	ParentEmail   string    `json:"parentEmail,omitempty"`
	Channel       string    `json:"channel"`
	CreatedByID   uuid.UUID `json:"createdById"`
}

func (e EnquiryCreated) EventName() string { return "enquiries.enquiry.created" }

// EnquiryStageChanged is published when a workflow stage on an enquiry moves
// to a new status (e.g. School Visit completed, Registration approved).
type EnquiryStageChanged struct {
	BaseEvent
	EnquiryID   uuid.UUID `json:"enquiryId"`
	SchoolID    int64     `json:"schoolId"`
	StageKey    string    `json:"stageKey"`
	OldStatus   string    `json:"oldStatus"`
	NewStatus   string    `json:"newStatus"`
	ChangedByID uuid.UUID `json:"changedById"`
}

func (e EnquiryStageChanged) EventName() string { return "enquiries.stage.changed" }

// EnquiryClosed is published when an enquiry is closed, whether manually, as a
// duplicate or through admission elsewhere.
type EnquiryClosed struct {
	BaseEvent
	EnquiryID   uuid.UUID `json:"enquiryId"`
	SchoolID    int64     `json:"schoolId"`
	Reason      string    `json:"reason"`
	Remarks     string    `json:"remarks,omitempty"`
	ClosedByID  uuid.UUID `json:"closedById"`
	IsDuplicate bool      `json:"isDuplicate"`
}

func (e EnquiryClosed) EventName() string { return "enquiries.enquiry.closed" }

// EnquiryReopened is published when a previously closed enquiry is reopened.
type EnquiryReopened struct {
	BaseEvent
	EnquiryID    uuid.UUID `json:"enquiryId"`
	SchoolID     int64     `json:"schoolId"`
	ReopenedByID uuid.UUID `json:"reopenedById"`
}

func (e EnquiryReopened) EventName() string { return "enquiries.enquiry.reopened" }

// EnquiryTransferred is published when an enquiry moves to another school or
// academic year.
type EnquiryTransferred struct {
	BaseEvent
	EnquiryID       uuid.UUID `json:"enquiryId"`
	FromSchoolID    int64     `json:"fromSchoolId"`
	ToSchoolID      int64     `json:"toSchoolId"`
	FromYear        string    `json:"fromYear"`
	ToYear          string    `json:"toYear"`
	TransferredByID uuid.UUID `json:"transferredById"`
}

func (e EnquiryTransferred) EventName() string { return "enquiries.enquiry.transferred" }

// EnquiryReassigned is published when an enquiry's counsellor changes.
type EnquiryReassigned struct {
	BaseEvent
	EnquiryID           uuid.UUID  `json:"enquiryId"`
	SchoolID            int64      `json:"schoolId"`
	PreviousCounsellor  *uuid.UUID `json:"previousCounsellor,omitempty"`
	NewCounsellor       uuid.UUID  `json:"newCounsellor"`
	ReassignedByID      uuid.UUID  `json:"reassignedById"`
	NotifyNewCounsellor bool       `json:"notifyNewCounsellor"`
}

func (e EnquiryReassigned) EventName() string { return "enquiries.enquiry.reassigned" }

// EnquiryMerged is published when a duplicate enquiry is merged into a
// surviving one.
type EnquiryMerged struct {
	BaseEvent
	SurvivorID uuid.UUID `json:"survivorId"`
	MergedID   uuid.UUID `json:"mergedId"`
	SchoolID   int64     `json:"schoolId"`
	MergedByID uuid.UUID `json:"mergedById"`
}

func (e EnquiryMerged) EventName() string { return "enquiries.enquiry.merged" }

// =============================================================================
// Referral Domain Events
// =============================================================================

// ReferralVerified is published when an enquiry's referral claim is verified,
// automatically or by staff.
type ReferralVerified struct {
	BaseEvent
	EnquiryID    uuid.UUID `json:"enquiryId"`
	SchoolID     int64     `json:"schoolId"`
	ReferralType string    `json:"referralType"`
	Manual       bool      `json:"manual"`
	VerifiedByID uuid.UUID `json:"verifiedById,omitempty"`
}

func (e ReferralVerified) EventName() string { return "enquiries.referral.verified" }

// ReferralVerificationFailed is published when an automatic verification
// attempt fails. After the attempt limit the referral locks.
type ReferralVerificationFailed struct {
	BaseEvent
	EnquiryID      uuid.UUID `json:"enquiryId"`
	SchoolID       int64     `json:"schoolId"`
	ReferralType   string    `json:"referralType"`
	FailedAttempts int       `json:"failedAttempts"`
	Locked         bool      `json:"locked"`
}

func (e ReferralVerificationFailed) EventName() string { return "enquiries.referral.verification_failed" }

// =============================================================================
// Fee and Payment Domain Events
// =============================================================================

// FeeRequestQueued is published when a fee trigger is written to the outbox
// for dispatch to the finance system.
type FeeRequestQueued struct {
	BaseEvent
	FeeRequestID uuid.UUID `json:"feeRequestId"`
	EnquiryID    uuid.UUID `json:"enquiryId"`
	SchoolID     int64     `json:"schoolId"`
	Kind         string    `json:"kind"`
}

func (e FeeRequestQueued) EventName() string { return "enquiries.fee_request.queued" }

// PaymentRecorded is published when the payment gateway confirms a fee payment
// for a stage (registration fee, admission fee).
type PaymentRecorded struct {
	BaseEvent
	EnquiryID     uuid.UUID `json:"enquiryId"`
	SchoolID      int64     `json:"schoolId"`
	StageKey      string    `json:"stageKey"`
	AmountPaise   int64     `json:"amountPaise"`
	TransactionID string    `json:"transactionId"`
	PaidAt        time.Time `json:"paidAt"`
}

func (e PaymentRecorded) EventName() string { return "enquiries.payment.recorded" }

// =============================================================================
// Admission Domain Events
// =============================================================================

// AdmissionCreated is published when an enquiry completes the pipeline and the
// admission record is materialized.
type AdmissionCreated struct {
	BaseEvent
	AdmissionID  uuid.UUID `json:"admissionId"`
	EnquiryID    uuid.UUID `json:"enquiryId"`
	SchoolID     int64     `json:"schoolId"`
	AcademicYear string    `json:"academicYear"`
	GradeID      int64     `json:"gradeId"`
	StudentName  string    `json:"studentName"`
	Provisional  bool      `json:"provisional"`
}

func (e AdmissionCreated) EventName() string { return "admissions.admission.created" }

// =============================================================================
// Task Domain Events
// =============================================================================

// FollowUpDue is published by the scheduler when a counsellor follow-up task
// reaches its due time.
type FollowUpDue struct {
	BaseEvent
	TaskID       uuid.UUID `json:"taskId"`
	EnquiryID    uuid.UUID `json:"enquiryId"`
	SchoolID     int64     `json:"schoolId"`
	AssigneeID   uuid.UUID `json:"assigneeId"`
	Title        string    `json:"title"`
	DueAt        time.Time `json:"dueAt"`
	ParentName   string    `json:"parentName"`
	ParentPhone  string    `json:"parentPhone"`
	StudentName  string    `json:"studentName"`
	AcademicYear string    `json:"academicYear"`
}

func (e FollowUpDue) EventName() string { return "tasks.follow_up.due" }

// =============================================================================
// Export Domain Events
// =============================================================================

// ExportRequested is published when a user requests an enquiry report export.
// The scheduler worker picks it up and builds the file asynchronously.
type ExportRequested struct {
	BaseEvent
	JobID         uuid.UUID `json:"jobId"`
	SchoolID      int64     `json:"schoolId"`
	RequestedByID uuid.UUID `json:"requestedById"`
	Format        string    `json:"format"`
}

func (e ExportRequested) EventName() string { return "exports.job.requested" }

// ExportCompleted is published when an export file is stored and ready for
// download.
type ExportCompleted struct {
	BaseEvent
	JobID         uuid.UUID `json:"jobId"`
	SchoolID      int64     `json:"schoolId"`
	RequestedByID uuid.UUID `json:"requestedById"`
	FileKey       string    `json:"fileKey"`
	RowCount      int       `json:"rowCount"`
}

func (e ExportCompleted) EventName() string { return "exports.job.completed" }
