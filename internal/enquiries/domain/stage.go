package domain

// Stage statuses. Every stage row carries exactly one of these; stage order
// itself is fixed per enquiry type and never changes after creation.
const (
	StageStatusOpen                 = "Open"
	StageStatusInProgress           = "In Progress"
	StageStatusCompleted            = "Completed"
	StageStatusPending              = "Pending"
	StageStatusApproved             = "Approved"
	StageStatusPassed               = "Passed"
	StageStatusRejected             = "Rejected"
	StageStatusAdmitted             = "Admitted"
	StageStatusProvisionalAdmission = "Provisional Admission"
)

var knownStageStatuses = map[string]struct{}{
	StageStatusOpen:                 {},
	StageStatusInProgress:           {},
	StageStatusCompleted:            {},
	StageStatusPending:              {},
	StageStatusApproved:             {},
	StageStatusPassed:               {},
	StageStatusRejected:             {},
	StageStatusAdmitted:             {},
	StageStatusProvisionalAdmission: {},
}

func IsKnownStageStatus(status string) bool {
	_, ok := knownStageStatuses[status]
	return ok
}

// Stage names used across the pipeline templates.
const (
	StageEnquiry            = "Enquiry"
	StageSchoolVisit        = "School Visit"
	StageCounselling        = "Counselling"
	StageRegistration       = "Registration"
	StageAssessment         = "Assessment"
	StageAcademicKitSelling = "Academic Kit Selling"
	StagePayment            = "Payment"
	StageAdmission          = "Admission"
)

// Stage is one ordered step in an enquiry's pipeline.
type Stage struct {
	Position  int    `json:"position"`
	StageName string `json:"stageName"`
	Status    string `json:"status"`
}

// fullPipeline is the template for admission enquiry types.
var fullPipeline = []string{
	StageEnquiry,
	StageSchoolVisit,
	StageCounselling,
	StageRegistration,
	StageAssessment,
	StageAcademicKitSelling,
	StagePayment,
	StageAdmission,
}

// shortPipeline is the template for programme enquiry types that skip the
// school visit and assessment steps.
var shortPipeline = []string{
	StageEnquiry,
	StageRegistration,
	StagePayment,
	StageAdmission,
}

var stageTemplates = map[string][]string{
	EnquiryTypeNewAdmission:  fullPipeline,
	EnquiryTypeReadmission:   fullPipeline,
	EnquiryTypeAdmission1011: fullPipeline,
	EnquiryTypeKidsClub:      shortPipeline,
	EnquiryTypePSA:           shortPipeline,
	EnquiryTypeIVT:           shortPipeline,
}

// TemplateFor returns the ordered stage names for an enquiry type. Unknown
// types fall back to the full pipeline.
func TemplateFor(enquiryType string) []string {
	template, ok := stageTemplates[enquiryType]
	if !ok {
		template = fullPipeline
	}
	out := make([]string, len(template))
	copy(out, template)
	return out
}

// NewStages builds the initial stage list for an enquiry type. The first
// stage starts In Progress, the rest Open.
func NewStages(enquiryType string) []Stage {
	names := TemplateFor(enquiryType)
	stages := make([]Stage, len(names))
	for i, name := range names {
		status := StageStatusOpen
		if i == 0 {
			status = StageStatusInProgress
		}
		stages[i] = Stage{Position: i, StageName: name, Status: status}
	}
	return stages
}

// completedLike reports whether a status counts as "done" for current-stage
// derivation.
func completedLike(status string) bool {
	switch status {
	case StageStatusCompleted, StageStatusPassed, StageStatusApproved:
		return true
	}
	return false
}

// isAdmissionStage reports whether the stage carries admission semantics
// (Provisional Admission / Admitted statuses land here).
func isAdmissionStage(name string) bool {
	return name == StageAdmission
}

// CurrentStage derives the display stage from the ordered stage slice: the
// last stage whose status is completed-like, additionally counting In
// Progress for the first and admission stages. Pure function of the slice;
// returns the first stage name when nothing matches, or "" for an empty
// slice.
func CurrentStage(stages []Stage) string {
	if len(stages) == 0 {
		return ""
	}
	current := stages[0].StageName
	for i, stage := range stages {
		if completedLike(stage.Status) {
			current = stage.StageName
			continue
		}
		if stage.Status == StageStatusInProgress && (i == 0 || isAdmissionStage(stage.StageName)) {
			current = stage.StageName
		}
	}
	return current
}

// stageRankWeights orders statuses by pipeline progress for duplicate
// comparison. Higher means further along.
var stageRankWeights = map[string]int{
	StageStatusOpen:                 0,
	StageStatusRejected:             1,
	StageStatusInProgress:           2,
	StageStatusPending:              3,
	StageStatusCompleted:            4,
	StageStatusPassed:               4,
	StageStatusApproved:             4,
	StageStatusProvisionalAdmission: 5,
	StageStatusAdmitted:             6,
}

// Rank scores a stage slice for highest-stage comparison between duplicate
// enquiries: position of the furthest non-Open stage dominates, its status
// weight breaks ties.
func Rank(stages []Stage) int {
	best := 0
	for i, stage := range stages {
		if stage.Status == StageStatusOpen {
			continue
		}
		score := (i+1)*10 + stageRankWeights[stage.Status]
		if score > best {
			best = score
		}
	}
	return best
}

// FindStage returns the index of the named stage, or -1.
func FindStage(stages []Stage, name string) int {
	for i, stage := range stages {
		if stage.StageName == name {
			return i
		}
	}
	return -1
}

// StageStatus returns the status of the named stage, or "" when absent.
func StageStatus(stages []Stage, name string) string {
	if i := FindStage(stages, name); i >= 0 {
		return stages[i].Status
	}
	return ""
}

// IsAdmittedPipeline reports whether the pipeline has reached a terminal
// admitted state: the last stage sits at Provisional Admission or Admitted.
func IsAdmittedPipeline(stages []Stage) bool {
	if len(stages) == 0 {
		return false
	}
	last := stages[len(stages)-1].Status
	return last == StageStatusProvisionalAdmission || last == StageStatusAdmitted
}

// MoveToNextStage completes the named stage and activates its successor.
// The input slice is mutated in place. Returns false when the stage is
// unknown or the transition table forbids either step.
func MoveToNextStage(stages []Stage, currentName string) bool {
	idx := FindStage(stages, currentName)
	if idx < 0 {
		return false
	}
	if !CanTransition(stages[idx].Status, StageStatusCompleted) {
		return false
	}
	stages[idx].Status = StageStatusCompleted
	if idx+1 < len(stages) {
		next := &stages[idx+1]
		if next.Status == StageStatusOpen {
			next.Status = StageStatusInProgress
		}
	}
	return true
}
