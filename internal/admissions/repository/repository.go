// Package repository provides data access for admission records.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("admission not found")

// Approval statuses.
const (
	ApprovalPending     = "Pending"
	ApprovalApproved    = "Approved"
	ApprovalRejected    = "Rejected"
	ApprovalProvisional = "Provisional"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Admission is the materialized admission record for an enquiry, created
// lazily once the pipeline reaches the payment/admission stages. The joined
// enquiry fields are read-only context for listings.
type Admission struct {
	ID              uuid.UUID  `json:"id"`
	EnquiryID       uuid.UUID  `json:"enquiryId"`
	EnrolmentNumber *string    `json:"enrolmentNumber,omitempty"`
	StudentGlobalID *int64     `json:"studentGlobalId,omitempty"`
	ApprovalStatus  string     `json:"approvalStatus"`
	ApprovedBy      *uuid.UUID `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	EnquiryNumber string `json:"enquiryNumber"`
	SchoolID      int64  `json:"schoolId"`
	AcademicYear  string `json:"academicYear"`
	StudentName   string `json:"studentName"`
	GradeValue    string `json:"grade"`
}

const admissionColumns = `
	a.id, a.enquiry_id, a.enrolment_number, a.student_global_id,
	a.approval_status, a.approved_by, a.approved_at, a.created_at, a.updated_at,
	e.enquiry_number, e.school_id, e.academic_year_value,
	e.student_first_name || ' ' || e.student_last_name, e.grade_value`

const admissionJoin = ` FROM admissions a JOIN enquiries e ON e.id = a.enquiry_id`

func scanAdmission(row pgx.Row) (Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.EnquiryID, &a.EnrolmentNumber, &a.StudentGlobalID,
		&a.ApprovalStatus, &a.ApprovedBy, &a.ApprovedAt, &a.CreatedAt, &a.UpdatedAt,
		&a.EnquiryNumber, &a.SchoolID, &a.AcademicYear, &a.StudentName, &a.GradeValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return Admission{}, ErrNotFound
	}
	return a, err
}

// EnsureParams seeds a lazily created admission record.
type EnsureParams struct {
	EnquiryID       uuid.UUID
	StudentGlobalID *int64
	EnrolmentNumber *string
	Provisional     bool
}

// Ensure creates the admission record for the enquiry if it does not exist
// yet. Returns the record and whether this call created it.
func (r *Repository) Ensure(ctx context.Context, params EnsureParams) (Admission, bool, error) {
	status := ApprovalPending
	if params.Provisional {
		status = ApprovalProvisional
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO admissions (id, enquiry_id, student_global_id, enrolment_number, approval_status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (enquiry_id) DO NOTHING`,
		uuid.New(), params.EnquiryID, params.StudentGlobalID, params.EnrolmentNumber, status)
	if err != nil {
		return Admission{}, false, err
	}

	admission, err := r.GetByEnquiry(ctx, params.EnquiryID)
	if err != nil {
		return Admission{}, false, err
	}
	return admission, tag.RowsAffected() > 0, nil
}

func (r *Repository) GetByEnquiry(ctx context.Context, enquiryID uuid.UUID) (Admission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT`+admissionColumns+admissionJoin+` WHERE a.enquiry_id = $1`, enquiryID)
	return scanAdmission(row)
}

// ListParams filters admission listings.
type ListParams struct {
	SchoolID       int64
	AcademicYearID int64
	ApprovalStatus string
	Limit          int
	Offset         int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Admission, error) {
	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}

	query := `SELECT` + admissionColumns + admissionJoin + ` WHERE 1=1`
	args := []any{}
	if params.SchoolID > 0 {
		args = append(args, params.SchoolID)
		query += fmt.Sprintf(` AND e.school_id = $%d`, len(args))
	}
	if params.AcademicYearID > 0 {
		args = append(args, params.AcademicYearID)
		query += fmt.Sprintf(` AND e.academic_year_id = $%d`, len(args))
	}
	if params.ApprovalStatus != "" {
		args = append(args, params.ApprovalStatus)
		query += fmt.Sprintf(` AND a.approval_status = $%d`, len(args))
	}
	args = append(args, params.Limit, params.Offset)
	query += fmt.Sprintf(` ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admissions []Admission
	for rows.Next() {
		admission, err := scanAdmission(rows)
		if err != nil {
			return nil, err
		}
		admissions = append(admissions, admission)
	}
	return admissions, rows.Err()
}

// SetApproval updates the approval status. Approver and timestamp are
// recorded on every status change, including rejections.
func (r *Repository) SetApproval(ctx context.Context, enquiryID uuid.UUID, status string, approvedBy uuid.UUID) (Admission, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE admissions
		SET approval_status = $2, approved_by = $3, approved_at = now(), updated_at = now()
		WHERE enquiry_id = $1`,
		enquiryID, status, approvedBy)
	if err != nil {
		return Admission{}, err
	}
	if tag.RowsAffected() == 0 {
		return Admission{}, ErrNotFound
	}
	return r.GetByEnquiry(ctx, enquiryID)
}

// SetEnrolmentNumber records the enrolment number issued by master data.
func (r *Repository) SetEnrolmentNumber(ctx context.Context, enquiryID uuid.UUID, enrolmentNumber string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE admissions SET enrolment_number = $2, updated_at = now() WHERE enquiry_id = $1`,
		enquiryID, enrolmentNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
