package ports

import "context"

// AdminPanel is the outbound contract to the admin-panel workflow service,
// which drives the external admission approval workflow for an enquiry.
type AdminPanel interface {
	// TriggerAdmissionWorkflow (re)starts the external admission workflow.
	TriggerAdmissionWorkflow(ctx context.Context, enquiryNumber string, schoolID int64) error
	// DisableAdmissionWorkflow stops any workflow currently attached to the
	// enquiry. Idempotent upstream; disabling a missing workflow is not an
	// error.
	DisableAdmissionWorkflow(ctx context.Context, enquiryNumber string, schoolID int64) error
}
