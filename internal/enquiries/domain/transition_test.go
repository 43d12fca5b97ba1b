package domain

import "testing"

var allStageStatuses = []string{
	StageStatusOpen,
	StageStatusInProgress,
	StageStatusCompleted,
	StageStatusPending,
	StageStatusApproved,
	StageStatusPassed,
	StageStatusRejected,
	StageStatusAdmitted,
	StageStatusProvisionalAdmission,
}

// TestTransitionTableExhaustive pins the full stage-status transition table.
// Every (from, to) pair over the known statuses is asserted, so any table
// edit shows up as a test diff.
func TestTransitionTableExhaustive(t *testing.T) {
	allowed := map[string]map[string]bool{
		StageStatusOpen: {
			StageStatusInProgress: true,
			StageStatusPending:    true,
			StageStatusCompleted:  true,
			StageStatusRejected:   true,
		},
		StageStatusInProgress: {
			StageStatusCompleted: true,
			StageStatusPending:   true,
			StageStatusApproved:  true,
			StageStatusPassed:    true,
			StageStatusRejected:  true,
			StageStatusOpen:      true,
		},
		StageStatusPending: {
			StageStatusApproved:   true,
			StageStatusRejected:   true,
			StageStatusInProgress: true,
			StageStatusOpen:       true,
		},
		StageStatusApproved: {
			StageStatusCompleted:            true,
			StageStatusAdmitted:             true,
			StageStatusProvisionalAdmission: true,
			StageStatusOpen:                 true,
		},
		StageStatusCompleted: {
			StageStatusOpen: true,
		},
		StageStatusPassed: {
			StageStatusOpen: true,
		},
		StageStatusRejected: {
			StageStatusInProgress: true,
			StageStatusOpen:       true,
		},
		StageStatusProvisionalAdmission: {
			StageStatusAdmitted: true,
			StageStatusOpen:     true,
		},
		StageStatusAdmitted: {},
	}

	for _, from := range allStageStatuses {
		for _, to := range allStageStatuses {
			want := allowed[from][to] || from == to
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransitionUnknownStatuses(t *testing.T) {
	if CanTransition("Bogus", StageStatusOpen) {
		t.Error("unknown source status should never transition")
	}
	if CanTransition(StageStatusOpen, "Bogus") {
		t.Error("unknown target status should never transition")
	}
	if CanTransition("Bogus", "Bogus") {
		t.Error("unknown identity transition should be rejected")
	}
}

func TestAdmittedIsTerminal(t *testing.T) {
	for _, to := range allStageStatuses {
		if to == StageStatusAdmitted {
			continue
		}
		if CanTransition(StageStatusAdmitted, to) {
			t.Errorf("Admitted must be terminal, but transition to %q allowed", to)
		}
	}
}
