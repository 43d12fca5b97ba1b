package ports

import (
	"context"
	"time"
)

// GlobalIdentity is a cross-system identity key issued by the master-data
// service for a parent or student.
type GlobalIdentity struct {
	GlobalID int64
}

// ResolveParentParams identifies a parent for global-id resolution.
type ResolveParentParams struct {
	Name  string
	Phone string
	Email string
}

// ResolveStudentParams identifies a student for global-id resolution.
type ResolveStudentParams struct {
	FirstName string
	LastName  string
	DOB       time.Time
	SchoolID  int64
}

// ActiveStudent is a minimal active-enrolment record from master data,
// used by duplicate resolution to detect already-admitted students.
type ActiveStudent struct {
	StudentGlobalID int64
	EnrolmentNumber string
	SchoolID        int64
}

// MasterData is the outbound contract to the master-data (MDM) service.
// Resolution failures are non-fatal to enquiry capture; callers treat a nil
// result as "unknown upstream".
type MasterData interface {
	ResolveParent(ctx context.Context, params ResolveParentParams) (*GlobalIdentity, error)
	ResolveStudent(ctx context.Context, params ResolveStudentParams) (*GlobalIdentity, error)
	// FindActiveStudent looks up an active enrolment by student identity.
	// Returns nil when no active record exists.
	FindActiveStudent(ctx context.Context, firstName, lastName string, dob time.Time) (*ActiveStudent, error)
	// CurrentAcademicYearID returns the id of the academic year in
	// progress. Academic year ids are ordered, so callers may compare them.
	CurrentAcademicYearID(ctx context.Context) (int64, error)
}
