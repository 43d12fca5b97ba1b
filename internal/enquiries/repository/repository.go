package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"admissions_backend/internal/enquiries/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("enquiry not found")
	// ErrRevisionConflict is returned when a compare-and-swap update loses
	// against a concurrent writer.
	ErrRevisionConflict = errors.New("enquiry was modified concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Parent is one parent/guardian sub-record. CredentialHash is a bcrypt hash
// provisioned by the SSO flow and never leaves the backend.
type Parent struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email,omitempty"`
	GlobalID       *int64 `json:"globalId,omitempty"`
	CredentialHash string `json:"credentialHash,omitempty"`
}

// ParentDetails groups the three possible parent sub-records.
type ParentDetails struct {
	Father   *Parent `json:"father,omitempty"`
	Mother   *Parent `json:"mother,omitempty"`
	Guardian *Parent `json:"guardian,omitempty"`
}

// Phones returns the non-empty parent mobile numbers in father, mother,
// guardian order. Used by referrer-side verification.
func (p ParentDetails) Phones() []string {
	out := make([]string, 0, 3)
	for _, parent := range []*Parent{p.Father, p.Mother, p.Guardian} {
		if parent != nil && strings.TrimSpace(parent.Phone) != "" {
			out = append(out, parent.Phone)
		}
	}
	return out
}

type StudentDetails struct {
	FirstName       string
	LastName        string
	DOB             time.Time
	GlobalID        *int64
	EnrolmentNumber *string
}

// Enquiry is the central aggregate row. Stages are stored in their own table
// and loaded alongside.
type Enquiry struct {
	ID            uuid.UUID
	EnquiryNumber string
	EnquiryType   string
	Status        string
	AcademicYear  domain.Ref
	School        domain.Ref
	Board         domain.Ref
	Course        domain.Ref
	Grade         domain.Ref
	Stream        domain.Ref
	Shift         domain.Ref
	AssignedTo    *uuid.UUID
	Parents       ParentDetails
	Student       StudentDetails
	Referral      domain.ReferralDetails
	Stages        []domain.Stage

	RegistrationFeeRequestTriggered bool
	AdmissionFeeRequestTriggered    bool
	RegistrationFeesPaid            bool

	Remarks   *string
	Revision  int64
	CreatedBy uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateEnquiryParams struct {
	EnquiryType  string
	AcademicYear domain.Ref
	School       domain.Ref
	Board        domain.Ref
	Course       domain.Ref
	Grade        domain.Ref
	Stream       domain.Ref
	Shift        domain.Ref
	AssignedTo   *uuid.UUID
	Parents      ParentDetails
	Student      StudentDetails
	Referral     domain.ReferralDetails
	Remarks      *string
	CreatedBy    uuid.UUID
}

const enquiryColumns = `
	id, enquiry_number, enquiry_type, status,
	academic_year_id, academic_year_value,
	school_id, school_value,
	board_id, board_value,
	course_id, course_value,
	grade_id, grade_value,
	stream_id, stream_value,
	shift_id, shift_value,
	assigned_to,
	parent_details, student_first_name, student_last_name, student_dob,
	student_global_id, enrolment_number,
	referral_details,
	registration_fee_request_triggered, admission_fee_request_triggered, registration_fees_paid,
	remarks, revision, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnquiry(row rowScanner) (Enquiry, error) {
	var e Enquiry
	var parentsJSON, referralJSON []byte
	err := row.Scan(
		&e.ID, &e.EnquiryNumber, &e.EnquiryType, &e.Status,
		&e.AcademicYear.ID, &e.AcademicYear.Value,
		&e.School.ID, &e.School.Value,
		&e.Board.ID, &e.Board.Value,
		&e.Course.ID, &e.Course.Value,
		&e.Grade.ID, &e.Grade.Value,
		&e.Stream.ID, &e.Stream.Value,
		&e.Shift.ID, &e.Shift.Value,
		&e.AssignedTo,
		&parentsJSON, &e.Student.FirstName, &e.Student.LastName, &e.Student.DOB,
		&e.Student.GlobalID, &e.Student.EnrolmentNumber,
		&referralJSON,
		&e.RegistrationFeeRequestTriggered, &e.AdmissionFeeRequestTriggered, &e.RegistrationFeesPaid,
		&e.Remarks, &e.Revision, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return Enquiry{}, err
	}
	if len(parentsJSON) > 0 {
		if err := json.Unmarshal(parentsJSON, &e.Parents); err != nil {
			return Enquiry{}, fmt.Errorf("decode parent_details: %w", err)
		}
	}
	if len(referralJSON) > 0 {
		if err := json.Unmarshal(referralJSON, &e.Referral); err != nil {
			return Enquiry{}, fmt.Errorf("decode referral_details: %w", err)
		}
	}
	return e, nil
}

// Create inserts the enquiry and its initial stage rows in one transaction.
// The enquiry number comes from a global sequence.
func (r *Repository) Create(ctx context.Context, params CreateEnquiryParams) (Enquiry, error) {
	parentsJSON, err := json.Marshal(params.Parents)
	if err != nil {
		return Enquiry{}, fmt.Errorf("encode parent_details: %w", err)
	}
	referralJSON, err := json.Marshal(params.Referral)
	if err != nil {
		return Enquiry{}, fmt.Errorf("encode referral_details: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Enquiry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO enquiries (
			enquiry_number, enquiry_type, status,
			academic_year_id, academic_year_value,
			school_id, school_value,
			board_id, board_value,
			course_id, course_value,
			grade_id, grade_value,
			stream_id, stream_value,
			shift_id, shift_value,
			assigned_to,
			parent_details, student_first_name, student_last_name, student_dob,
			student_global_id, enrolment_number,
			referral_details, remarks, created_by
		) VALUES (
			'ENQ-' || lpad(nextval('enquiry_number_seq')::text, 6, '0'),
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
		RETURNING`+enquiryColumns,
		params.EnquiryType, domain.EnquiryStatusOpen,
		params.AcademicYear.ID, params.AcademicYear.Value,
		params.School.ID, params.School.Value,
		params.Board.ID, params.Board.Value,
		params.Course.ID, params.Course.Value,
		params.Grade.ID, params.Grade.Value,
		params.Stream.ID, params.Stream.Value,
		params.Shift.ID, params.Shift.Value,
		params.AssignedTo,
		parentsJSON, params.Student.FirstName, params.Student.LastName, params.Student.DOB,
		params.Student.GlobalID, params.Student.EnrolmentNumber,
		referralJSON, params.Remarks, params.CreatedBy,
	)

	enquiry, err := scanEnquiry(row)
	if err != nil {
		return Enquiry{}, err
	}

	enquiry.Stages = domain.NewStages(params.EnquiryType)
	for _, stage := range enquiry.Stages {
		if _, err := tx.Exec(ctx, `
			INSERT INTO enquiry_stages (enquiry_id, position, stage_name, status)
			VALUES ($1, $2, $3, $4)`,
			enquiry.ID, stage.Position, stage.StageName, stage.Status,
		); err != nil {
			return Enquiry{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Enquiry{}, err
	}
	return enquiry, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Enquiry, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+enquiryColumns+` FROM enquiries WHERE id = $1`, id)
	enquiry, err := scanEnquiry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Enquiry{}, ErrNotFound
		}
		return Enquiry{}, err
	}

	enquiry.Stages, err = r.loadStages(ctx, id)
	if err != nil {
		return Enquiry{}, err
	}
	return enquiry, nil
}

// GetByEnquiryNumber resolves an enquiry by its human-facing number. Used by
// inbound webhooks, which never see internal ids.
func (r *Repository) GetByEnquiryNumber(ctx context.Context, enquiryNumber string) (Enquiry, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+enquiryColumns+` FROM enquiries WHERE enquiry_number = $1`, enquiryNumber)
	enquiry, err := scanEnquiry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Enquiry{}, ErrNotFound
		}
		return Enquiry{}, err
	}

	enquiry.Stages, err = r.loadStages(ctx, enquiry.ID)
	if err != nil {
		return Enquiry{}, err
	}
	return enquiry, nil
}

type ListParams struct {
	SchoolID       int64
	AcademicYearID int64
	Status         string
	EnquiryType    string
	AssignedTo     *uuid.UUID
	Search         string
	Limit          int
	Offset         int
}

// List returns a page of enquiries plus the unfiltered-by-page total.
// Stages are loaded per row; listing pages are small.
func (r *Repository) List(ctx context.Context, params ListParams) ([]Enquiry, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.SchoolID > 0 {
		where = append(where, "school_id = "+arg(params.SchoolID))
	}
	if params.AcademicYearID > 0 {
		where = append(where, "academic_year_id = "+arg(params.AcademicYearID))
	}
	if params.Status != "" {
		where = append(where, "status = "+arg(params.Status))
	}
	if params.EnquiryType != "" {
		where = append(where, "enquiry_type = "+arg(params.EnquiryType))
	}
	if params.AssignedTo != nil {
		where = append(where, "assigned_to = "+arg(*params.AssignedTo))
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		pattern := "%" + search + "%"
		where = append(where, fmt.Sprintf(
			"(enquiry_number ILIKE %s OR student_first_name ILIKE %s OR student_last_name ILIKE %s)",
			arg(pattern), arg(pattern), arg(pattern)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT count(*) FROM enquiries WHERE "+whereClause, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}
	query := "SELECT" + enquiryColumns + " FROM enquiries WHERE " + whereClause +
		" ORDER BY created_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Enquiry, 0, limit)
	for rows.Next() {
		enquiry, err := scanEnquiry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, enquiry)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	for i := range items {
		items[i].Stages, err = r.loadStages(ctx, items[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

// UpdateParams carries the mutable fields of an enquiry update. Nil pointers
// leave the column untouched.
type UpdateParams struct {
	Status       *string
	AcademicYear *domain.Ref
	School       *domain.Ref
	Board        *domain.Ref
	Course       *domain.Ref
	Grade        *domain.Ref
	Stream       *domain.Ref
	Shift        *domain.Ref
	AssignedTo   *uuid.UUID
	Parents      *ParentDetails
	Student      *StudentDetails
	Referral     *domain.ReferralDetails
	Remarks      *string

	RegistrationFeeRequestTriggered *bool
	AdmissionFeeRequestTriggered    *bool
	RegistrationFeesPaid            *bool
}

// Update applies a compare-and-swap write: the row is only mutated when its
// revision still equals expectedRevision, and the revision is bumped in the
// same statement. Returns ErrRevisionConflict when a concurrent writer won.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, expectedRevision int64, params UpdateParams) (Enquiry, error) {
	set := []string{"updated_at = now()", "revision = revision + 1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Status != nil {
		set = append(set, "status = "+arg(*params.Status))
	}
	setRef := func(prefix string, ref *domain.Ref) {
		if ref == nil {
			return
		}
		set = append(set, prefix+"_id = "+arg(ref.ID))
		set = append(set, prefix+"_value = "+arg(ref.Value))
	}
	setRef("academic_year", params.AcademicYear)
	setRef("school", params.School)
	setRef("board", params.Board)
	setRef("course", params.Course)
	setRef("grade", params.Grade)
	setRef("stream", params.Stream)
	setRef("shift", params.Shift)

	if params.AssignedTo != nil {
		set = append(set, "assigned_to = "+arg(*params.AssignedTo))
	}
	if params.Parents != nil {
		parentsJSON, err := json.Marshal(params.Parents)
		if err != nil {
			return Enquiry{}, fmt.Errorf("encode parent_details: %w", err)
		}
		set = append(set, "parent_details = "+arg(parentsJSON))
	}
	if params.Student != nil {
		set = append(set, "student_first_name = "+arg(params.Student.FirstName))
		set = append(set, "student_last_name = "+arg(params.Student.LastName))
		set = append(set, "student_dob = "+arg(params.Student.DOB))
		set = append(set, "student_global_id = "+arg(params.Student.GlobalID))
		set = append(set, "enrolment_number = "+arg(params.Student.EnrolmentNumber))
	}
	if params.Referral != nil {
		referralJSON, err := json.Marshal(params.Referral)
		if err != nil {
			return Enquiry{}, fmt.Errorf("encode referral_details: %w", err)
		}
		set = append(set, "referral_details = "+arg(referralJSON))
	}
	if params.Remarks != nil {
		set = append(set, "remarks = "+arg(*params.Remarks))
	}
	if params.RegistrationFeeRequestTriggered != nil {
		set = append(set, "registration_fee_request_triggered = "+arg(*params.RegistrationFeeRequestTriggered))
	}
	if params.AdmissionFeeRequestTriggered != nil {
		set = append(set, "admission_fee_request_triggered = "+arg(*params.AdmissionFeeRequestTriggered))
	}
	if params.RegistrationFeesPaid != nil {
		set = append(set, "registration_fees_paid = "+arg(*params.RegistrationFeesPaid))
	}

	query := "UPDATE enquiries SET " + strings.Join(set, ", ") +
		" WHERE id = " + arg(id) + " AND revision = " + arg(expectedRevision) +
		" RETURNING" + enquiryColumns

	row := r.pool.QueryRow(ctx, query, args...)
	enquiry, err := scanEnquiry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Disambiguate missing row from lost CAS.
			var exists bool
			if checkErr := r.pool.QueryRow(ctx,
				"SELECT EXISTS(SELECT 1 FROM enquiries WHERE id = $1)", id,
			).Scan(&exists); checkErr != nil {
				return Enquiry{}, checkErr
			}
			if exists {
				return Enquiry{}, ErrRevisionConflict
			}
			return Enquiry{}, ErrNotFound
		}
		return Enquiry{}, err
	}

	enquiry.Stages, err = r.loadStages(ctx, id)
	if err != nil {
		return Enquiry{}, err
	}
	return enquiry, nil
}

// GetRevision returns the current revision of an enquiry row.
func (r *Repository) GetRevision(ctx context.Context, id uuid.UUID) (int64, error) {
	var revision int64
	err := r.pool.QueryRow(ctx, "SELECT revision FROM enquiries WHERE id = $1", id).Scan(&revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return revision, err
}
