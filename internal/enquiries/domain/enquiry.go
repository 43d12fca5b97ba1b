// Package domain holds the pure admissions pipeline rules: enquiry
// classification, the stage machine, the status transition table and the
// referral verification model. No persistence or transport concerns live here.
package domain

const (
	EnquiryTypeNewAdmission  = "New Admission"
	EnquiryTypeKidsClub      = "Kids Club"
	EnquiryTypePSA           = "PSA"
	EnquiryTypeIVT           = "IVT"
	EnquiryTypeReadmission   = "Readmission"
	EnquiryTypeAdmission1011 = "Admission-10-11"
)

var knownEnquiryTypes = map[string]struct{}{
	EnquiryTypeNewAdmission:  {},
	EnquiryTypeKidsClub:      {},
	EnquiryTypePSA:           {},
	EnquiryTypeIVT:           {},
	EnquiryTypeReadmission:   {},
	EnquiryTypeAdmission1011: {},
}

func IsKnownEnquiryType(enquiryType string) bool {
	_, ok := knownEnquiryTypes[enquiryType]
	return ok
}

// Top-level enquiry lifecycle status. Stage statuses are a separate axis,
// see stage.go.
const (
	EnquiryStatusOpen     = "Open"
	EnquiryStatusClosed   = "Closed"
	EnquiryStatusOnHold   = "On-Hold"
	EnquiryStatusAdmitted = "Admitted"
)

var knownEnquiryStatuses = map[string]struct{}{
	EnquiryStatusOpen:     {},
	EnquiryStatusClosed:   {},
	EnquiryStatusOnHold:   {},
	EnquiryStatusAdmitted: {},
}

func IsKnownEnquiryStatus(status string) bool {
	_, ok := knownEnquiryStatuses[status]
	return ok
}

// Ref is an {id, value} reference pair into the master-data service.
// The id is authoritative; value is a display snapshot taken at write time.
type Ref struct {
	ID    int64  `json:"id"`
	Value string `json:"value"`
}

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool { return r.ID == 0 && r.Value == "" }
