package domain

import (
	"testing"
	"time"
)

func TestResolveVariantPriority(t *testing.T) {
	src := ReferralSource{
		Parent:   &ParentSource{ParentName: "A", PhoneNumber: "+919800000001"},
		Employee: &EmployeeSource{EmployeeName: "B", PhoneNumber: "+919800000002"},
	}
	if got := src.Resolve(); got != SourceKindParent {
		t.Errorf("Resolve = %q, want parent (priority order)", got)
	}

	src.Parent = nil
	if got := src.Resolve(); got != SourceKindEmployee {
		t.Errorf("Resolve = %q, want employee", got)
	}

	if got := (ReferralSource{}).Resolve(); got != "" {
		t.Errorf("Resolve of empty source = %q, want empty", got)
	}
}

func TestPhoneNumbersPriorityAndDedup(t *testing.T) {
	src := ReferralSource{
		Employee: &EmployeeSource{EmployeeName: "B", PhoneNumber: "+919800000002"},
		Legacy: &LegacySource{
			PhoneNumbers: []string{"+919800000002", "+919800000003", "", "  "},
		},
	}
	got := src.PhoneNumbers()
	want := []string{"+919800000002", "+919800000003"}
	if len(got) != len(want) {
		t.Fatalf("PhoneNumbers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PhoneNumbers[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestVerificationAttemptsLockAtThree(t *testing.T) {
	var state VerificationState

	if left := state.RecordFailure(); left != 1 {
		t.Errorf("after 1st failure, attempts left = %d, want 1", left)
	}
	if state.Locked() {
		t.Error("locked after a single failure")
	}
	if left := state.RecordFailure(); left != 0 {
		t.Errorf("after 2nd failure, attempts left = %d, want 0", left)
	}
	if left := state.RecordFailure(); left != 0 {
		t.Errorf("after 3rd failure, attempts left = %d, want 0", left)
	}
	if !state.Locked() {
		t.Error("not locked after three failures")
	}
	// Counter keeps incrementing but attempts left never goes negative.
	if left := state.RecordFailure(); left != 0 {
		t.Errorf("after 4th failure, attempts left = %d, want 0", left)
	}
}

func TestVerificationSuccessResetsFailures(t *testing.T) {
	var state VerificationState
	state.RecordFailure()
	state.RecordFailure()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	state.RecordSuccess("+919800000001", now)

	if !state.Verified {
		t.Error("not verified after success")
	}
	if state.FailedAttempts != 0 {
		t.Errorf("failedAttempts = %d, want 0 after success", state.FailedAttempts)
	}
	if state.VerifiedAt == nil || !state.VerifiedAt.Equal(now) {
		t.Errorf("verifiedAt = %v, want %v", state.VerifiedAt, now)
	}
}

func TestDisplayStatusRejectionWinsOverManualVerify(t *testing.T) {
	now := time.Now()
	details := ReferralDetails{
		ManuallyVerified: &ManualVerification{Verified: true, VerifiedBy: "staff-1", VerifiedAt: now},
		ManuallyRejected: &ManualRejection{Rejected: true, RejectedBy: "staff-2", RejectedAt: now.Add(time.Hour)},
	}
	if got := details.DisplayStatus(); got != ReferralStatusRejected {
		t.Errorf("DisplayStatus = %q, want Rejected (rejection is checked first)", got)
	}
}

func TestDisplayStatus(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name    string
		details ReferralDetails
		want    string
	}{
		{
			name:    "default unverified",
			details: ReferralDetails{},
			want:    ReferralStatusUnverified,
		},
		{
			name: "manual verification",
			details: ReferralDetails{
				ManuallyVerified: &ManualVerification{Verified: true, VerifiedBy: "staff-1", VerifiedAt: now},
			},
			want: ReferralStatusVerified,
		},
		{
			name: "both sides auto verified",
			details: ReferralDetails{
				Referrer: VerificationState{Verified: true},
				Referral: VerificationState{Verified: true},
			},
			want: ReferralStatusVerified,
		},
		{
			name: "one side verified is not enough",
			details: ReferralDetails{
				Referrer: VerificationState{Verified: true},
			},
			want: ReferralStatusUnverified,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.details.DisplayStatus(); got != tc.want {
				t.Errorf("DisplayStatus = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSideLookup(t *testing.T) {
	var details ReferralDetails
	if details.Side(SideReferrer) != &details.Referrer {
		t.Error("Side(referrer) did not return the referrer state")
	}
	if details.Side(SideReferral) != &details.Referral {
		t.Error("Side(referral) did not return the referral state")
	}
	if details.Side("other") != nil {
		t.Error("Side of unknown value should be nil")
	}
}
