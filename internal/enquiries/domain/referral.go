package domain

import (
	"strings"
	"time"
)

// Referral sides. The referrer is the person who made the referral; the
// referral is the referred parent on this enquiry.
const (
	SideReferrer = "referrer"
	SideReferral = "referral"
)

func IsKnownSide(side string) bool {
	return side == SideReferrer || side == SideReferral
}

// Source kinds, in verification priority order.
const (
	SourceKindParent    = "parent"
	SourceKindEmployee  = "employee"
	SourceKindSchool    = "school"
	SourceKindCorporate = "corporate"
	SourceKindLegacy    = "legacy"
)

// ParentSource is a referral from an existing parent of the school.
type ParentSource struct {
	ParentName  string `json:"parentName"`
	PhoneNumber string `json:"phoneNumber"`
	EnquiryID   string `json:"enquiryId,omitempty"`
}

// EmployeeSource is a referral from a school employee.
type EmployeeSource struct {
	EmployeeID   int64  `json:"employeeId"`
	EmployeeName string `json:"employeeName"`
	PhoneNumber  string `json:"phoneNumber"`
}

// SchoolSource is a referral from a partner school.
type SchoolSource struct {
	SchoolID    int64  `json:"schoolId"`
	SchoolName  string `json:"schoolName"`
	ContactName string `json:"contactName,omitempty"`
	PhoneNumber string `json:"phoneNumber"`
}

// CorporateSource is a referral via a corporate tie-up.
type CorporateSource struct {
	CompanyName string `json:"companyName"`
	ContactName string `json:"contactName,omitempty"`
	PhoneNumber string `json:"phoneNumber"`
}

// LegacySource carries source phone numbers migrated from the old
// free-form detail bag, kept only as a verification fallback.
type LegacySource struct {
	Description  string   `json:"description,omitempty"`
	PhoneNumbers []string `json:"phoneNumbers,omitempty"`
}

// ReferralSource is a tagged union: exactly one variant is populated per
// enquiry. Kind names the populated variant.
type ReferralSource struct {
	Kind      string           `json:"kind,omitempty"`
	Parent    *ParentSource    `json:"parent,omitempty"`
	Employee  *EmployeeSource  `json:"employee,omitempty"`
	School    *SchoolSource    `json:"school,omitempty"`
	Corporate *CorporateSource `json:"corporate,omitempty"`
	Legacy    *LegacySource    `json:"legacy,omitempty"`
}

// Resolve returns the populated variant kind, walking the variants in
// priority order. This is the single ordered-variant-match point; callers
// must not probe the pointers directly.
func (s ReferralSource) Resolve() string {
	switch {
	case s.Parent != nil:
		return SourceKindParent
	case s.Employee != nil:
		return SourceKindEmployee
	case s.School != nil:
		return SourceKindSchool
	case s.Corporate != nil:
		return SourceKindCorporate
	case s.Legacy != nil:
		return SourceKindLegacy
	}
	return ""
}

// IsZero reports whether no variant is populated.
func (s ReferralSource) IsZero() bool { return s.Resolve() == "" }

// PhoneNumbers returns the priority-ordered, de-duplicated phone list used
// for referral-side verification: the populated variant's numbers first,
// then legacy fallbacks.
func (s ReferralSource) PhoneNumbers() []string {
	candidates := make([]string, 0, 4)
	if s.Parent != nil {
		candidates = append(candidates, s.Parent.PhoneNumber)
	}
	if s.Employee != nil {
		candidates = append(candidates, s.Employee.PhoneNumber)
	}
	if s.School != nil {
		candidates = append(candidates, s.School.PhoneNumber)
	}
	if s.Corporate != nil {
		candidates = append(candidates, s.Corporate.PhoneNumber)
	}
	if s.Legacy != nil {
		candidates = append(candidates, s.Legacy.PhoneNumbers...)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, phone := range candidates {
		trimmed := strings.TrimSpace(phone)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// MaxVerificationAttempts is the failed-attempt budget per side. Once
// reached the side is locked with no reset path.
const MaxVerificationAttempts = 3

// VerificationState tracks phone verification for one referral side.
type VerificationState struct {
	PhoneNumber    string     `json:"phoneNumber,omitempty"`
	Verified       bool       `json:"verified"`
	VerifiedAt     *time.Time `json:"verifiedAt,omitempty"`
	FailedAttempts int        `json:"failedAttempts"`
}

// Locked reports whether the side has exhausted its attempts.
func (v VerificationState) Locked() bool {
	return v.FailedAttempts >= MaxVerificationAttempts
}

// RecordSuccess marks the side verified. Verification is permanent; the
// failure counter resets so historical mismatches do not linger in reports.
func (v *VerificationState) RecordSuccess(phone string, now time.Time) {
	v.PhoneNumber = phone
	v.Verified = true
	v.VerifiedAt = &now
	v.FailedAttempts = 0
}

// RecordFailure increments the failure counter and returns the attempts
// left for the "N attempt(s) left" message. The count excludes the final
// attempt, which locks the side when it also fails.
func (v *VerificationState) RecordFailure() int {
	v.FailedAttempts++
	left := MaxVerificationAttempts - v.FailedAttempts - 1
	if left < 0 {
		left = 0
	}
	return left
}

// ManualVerification is the terminal staff override. Once set it cannot be
// reversed.
type ManualVerification struct {
	Verified   bool      `json:"verified"`
	VerifiedBy string    `json:"verifiedBy"`
	VerifiedAt time.Time `json:"verifiedAt"`
	Remarks    string    `json:"remarks,omitempty"`
}

// ManualRejection records a staff rejection of the referral claim. It is
// independent of manual verification.
type ManualRejection struct {
	Rejected   bool      `json:"rejected"`
	RejectedBy string    `json:"rejectedBy"`
	RejectedAt time.Time `json:"rejectedAt"`
	Remarks    string    `json:"remarks,omitempty"`
}

// ReferralDetails is the referral sub-document on an enquiry: the source
// claim, both sides' verification state, and any staff overrides.
type ReferralDetails struct {
	Source           ReferralSource      `json:"source"`
	Referrer         VerificationState   `json:"referrer"`
	Referral         VerificationState   `json:"referral"`
	ManuallyVerified *ManualVerification `json:"manuallyVerified,omitempty"`
	ManuallyRejected *ManualRejection    `json:"manuallyRejected,omitempty"`
}

// Side returns a pointer to the verification state for the given side, or
// nil for an unknown side.
func (d *ReferralDetails) Side(side string) *VerificationState {
	switch side {
	case SideReferrer:
		return &d.Referrer
	case SideReferral:
		return &d.Referral
	}
	return nil
}

// Display statuses for the referral claim as a whole.
const (
	ReferralStatusRejected   = "Rejected"
	ReferralStatusVerified   = "Verified"
	ReferralStatusUnverified = "Unverified"
)

// DisplayStatus computes the referral claim's overall status. Manual
// rejection is checked before manual verification, so a later rejection
// wins over an earlier manual verify in the read path. This ordering is
// long-standing behavior that reporting depends on; do not reorder.
func (d ReferralDetails) DisplayStatus() string {
	if d.ManuallyRejected != nil && d.ManuallyRejected.Rejected {
		return ReferralStatusRejected
	}
	if d.ManuallyVerified != nil && d.ManuallyVerified.Verified {
		return ReferralStatusVerified
	}
	if d.Referrer.Verified && d.Referral.Verified {
		return ReferralStatusVerified
	}
	return ReferralStatusUnverified
}
