package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FollowUpParams describes a counsellor follow-up task to create against a
// fresh enquiry.
type FollowUpParams struct {
	EnquiryID  uuid.UUID
	SchoolID   int64
	AssigneeID uuid.UUID
	Title      string
	DueAt      time.Time
}

// FollowUpScheduler creates follow-up tasks. Implemented by the tasks
// module through an adapter in the composition root.
type FollowUpScheduler interface {
	ScheduleFollowUp(ctx context.Context, params FollowUpParams) error
}
