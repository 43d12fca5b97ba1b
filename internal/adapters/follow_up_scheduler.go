package adapters

import (
	"context"

	"admissions_backend/internal/enquiries/ports"
	tasksservice "admissions_backend/internal/tasks/service"
)

// FollowUpScheduler adapts the tasks service to the enquiries follow-up
// scheduling port.
type FollowUpScheduler struct {
	tasks *tasksservice.Service
}

// NewFollowUpScheduler creates a new follow-up scheduler adapter.
func NewFollowUpScheduler(tasks *tasksservice.Service) *FollowUpScheduler {
	return &FollowUpScheduler{tasks: tasks}
}

// ScheduleFollowUp creates a follow-up task for the enquiry.
func (a *FollowUpScheduler) ScheduleFollowUp(ctx context.Context, params ports.FollowUpParams) error {
	_, err := a.tasks.Schedule(ctx, tasksservice.ScheduleParams{
		EnquiryID:  params.EnquiryID,
		SchoolID:   params.SchoolID,
		AssigneeID: params.AssigneeID,
		Title:      params.Title,
		DueAt:      params.DueAt,
	})
	return err
}

// Compile-time check.
var _ ports.FollowUpScheduler = (*FollowUpScheduler)(nil)
