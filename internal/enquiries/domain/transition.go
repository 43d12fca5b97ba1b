package domain

// stageTransitions is the explicit stage-status transition table. A stage
// status may only move along one of these edges; everything else is rejected
// at the service boundary. Admitted is terminal.
var stageTransitions = map[string][]string{
	StageStatusOpen: {
		StageStatusInProgress,
		StageStatusPending,
		StageStatusCompleted,
		StageStatusRejected,
	},
	StageStatusInProgress: {
		StageStatusCompleted,
		StageStatusPending,
		StageStatusApproved,
		StageStatusPassed,
		StageStatusRejected,
		StageStatusOpen,
	},
	StageStatusPending: {
		StageStatusApproved,
		StageStatusRejected,
		StageStatusInProgress,
		StageStatusOpen,
	},
	StageStatusApproved: {
		StageStatusCompleted,
		StageStatusAdmitted,
		StageStatusProvisionalAdmission,
		StageStatusOpen,
	},
	StageStatusCompleted: {
		StageStatusOpen,
	},
	StageStatusPassed: {
		StageStatusOpen,
	},
	StageStatusRejected: {
		StageStatusInProgress,
		StageStatusOpen,
	},
	StageStatusProvisionalAdmission: {
		StageStatusAdmitted,
		StageStatusOpen,
	},
	StageStatusAdmitted: {},
}

// CanTransition reports whether a stage status may move from one value to
// another. Identity transitions are allowed so idempotent writes pass.
func CanTransition(from, to string) bool {
	if from == to {
		return IsKnownStageStatus(from)
	}
	for _, allowed := range stageTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
