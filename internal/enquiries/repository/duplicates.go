package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DuplicateByStudentParams matches enquiries by the student's identity.
// Name matching is case-insensitive exact, dob and type are exact.
type DuplicateByStudentParams struct {
	FirstName   string
	LastName    string
	DOB         time.Time
	EnquiryType string
	SchoolID    int64
	ExcludeID   *uuid.UUID
}

// FindDuplicatesByStudent returns all enquiries matching the student
// identity, newest first. Ordering beyond that is the caller's concern.
func (r *Repository) FindDuplicatesByStudent(ctx context.Context, params DuplicateByStudentParams) ([]Enquiry, error) {
	where := []string{
		"lower(student_first_name) = lower($1)",
		"lower(student_last_name) = lower($2)",
		"student_dob = $3",
	}
	args := []any{strings.TrimSpace(params.FirstName), strings.TrimSpace(params.LastName), params.DOB}

	if params.EnquiryType != "" {
		args = append(args, params.EnquiryType)
		where = append(where, "enquiry_type = $4")
	}

	return r.queryDuplicates(ctx, where, args, params.SchoolID, params.ExcludeID)
}

// DuplicateByContactParams matches enquiries by parent contact details
// across the father, mother and guardian sub-records.
type DuplicateByContactParams struct {
	Email       string
	Phone       string
	EnquiryType string
	SchoolID    int64
	ExcludeID   *uuid.UUID
}

// FindDuplicatesByContact matches any parent sub-record on email or phone.
func (r *Repository) FindDuplicatesByContact(ctx context.Context, params DuplicateByContactParams) ([]Enquiry, error) {
	contact := []string{}
	args := []any{}
	if email := strings.TrimSpace(params.Email); email != "" {
		args = append(args, strings.ToLower(email))
		n := len(args)
		for _, side := range []string{"father", "mother", "guardian"} {
			contact = append(contact, "lower(parent_details->'"+side+"'->>'email') = $"+itoa(n))
		}
	}
	if phone := strings.TrimSpace(params.Phone); phone != "" {
		args = append(args, phone)
		n := len(args)
		for _, side := range []string{"father", "mother", "guardian"} {
			contact = append(contact, "parent_details->'"+side+"'->>'phone' = $"+itoa(n))
		}
	}
	if len(contact) == 0 {
		return []Enquiry{}, nil
	}

	where := []string{"(" + strings.Join(contact, " OR ") + ")"}
	if params.EnquiryType != "" {
		args = append(args, params.EnquiryType)
		where = append(where, "enquiry_type = $"+itoa(len(args)))
	}

	return r.queryDuplicates(ctx, where, args, params.SchoolID, params.ExcludeID)
}

func (r *Repository) queryDuplicates(ctx context.Context, where []string, args []any, schoolID int64, excludeID *uuid.UUID) ([]Enquiry, error) {
	if schoolID > 0 {
		args = append(args, schoolID)
		where = append(where, "school_id = $"+itoa(len(args)))
	}
	if excludeID != nil {
		args = append(args, *excludeID)
		where = append(where, "id <> $"+itoa(len(args)))
	}

	query := "SELECT" + enquiryColumns + " FROM enquiries WHERE " +
		strings.Join(where, " AND ") + " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Enquiry, 0)
	for rows.Next() {
		enquiry, err := scanEnquiry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, enquiry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	for i := range items {
		items[i].Stages, err = r.loadStages(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
