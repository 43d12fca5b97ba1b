// Package repository provides data access for counsellor follow-up tasks.
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

var ErrNotFound = errors.New("follow-up task not found")

// Task statuses.
const (
	StatusOpen      = "open"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FollowUpTask is one counsellor follow-up against an enquiry.
type FollowUpTask struct {
	ID          uuid.UUID  `json:"id"`
	EnquiryID   uuid.UUID  `json:"enquiryId"`
	SchoolID    int64      `json:"schoolId"`
	AssigneeID  uuid.UUID  `json:"assigneeId"`
	Title       string     `json:"title"`
	DueAt       time.Time  `json:"dueAt"`
	Status      string     `json:"status"`
	NotifiedAt  *time.Time `json:"notifiedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// DueTask is a follow-up joined with the enquiry fields the notification
// needs, so the worker does not fan out per-task lookups.
type DueTask struct {
	FollowUpTask
	ParentName   string
	ParentPhone  string
	StudentName  string
	AcademicYear string
}

type CreateParams struct {
	EnquiryID  uuid.UUID
	SchoolID   int64
	AssigneeID uuid.UUID
	Title      string
	DueAt      time.Time
}

const taskColumns = `
	id, enquiry_id, school_id, assignee_id, title, due_at, status,
	notified_at, completed_at, created_at`

func scanTask(row pgx.Row) (FollowUpTask, error) {
	var t FollowUpTask
	err := row.Scan(&t.ID, &t.EnquiryID, &t.SchoolID, &t.AssigneeID, &t.Title,
		&t.DueAt, &t.Status, &t.NotifiedAt, &t.CompletedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return FollowUpTask{}, ErrNotFound
	}
	return t, err
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (FollowUpTask, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO follow_up_tasks (id, enquiry_id, school_id, assignee_id, title, due_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING`+taskColumns,
		uuid.New(), params.EnquiryID, params.SchoolID, params.AssigneeID,
		params.Title, params.DueAt, StatusOpen)
	return scanTask(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (FollowUpTask, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+taskColumns+` FROM follow_up_tasks WHERE id = $1`, id)
	return scanTask(row)
}

// ListByAssignee returns the assignee's tasks, optionally filtered by status,
// most urgent first.
func (r *Repository) ListByAssignee(ctx context.Context, assigneeID uuid.UUID, status string, limit, offset int) ([]FollowUpTask, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT` + taskColumns + ` FROM follow_up_tasks WHERE assignee_id = $1`
	args := []any{assigneeID}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY due_at ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *Repository) ListByEnquiry(ctx context.Context, enquiryID uuid.UUID) ([]FollowUpTask, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+taskColumns+` FROM follow_up_tasks WHERE enquiry_id = $1 ORDER BY created_at DESC`,
		enquiryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// Finish moves an open task to completed or cancelled. Returns ErrNotFound
// when the task does not exist or is no longer open.
func (r *Repository) Finish(ctx context.Context, id uuid.UUID, status string) (FollowUpTask, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE follow_up_tasks
		SET status = $2, completed_at = now()
		WHERE id = $1 AND status = $3
		RETURNING`+taskColumns,
		id, status, StatusOpen)
	return scanTask(row)
}

// CancelOpenByEnquiry cancels every open task on the enquiry. Returns the
// number of tasks cancelled.
func (r *Repository) CancelOpenByEnquiry(ctx context.Context, enquiryID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE follow_up_tasks
		SET status = $2, completed_at = now()
		WHERE enquiry_id = $1 AND status = $3`,
		enquiryID, StatusCancelled, StatusOpen)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ClaimDue marks due, unnotified open tasks as notified and returns them
// joined with the enquiry contact fields. FOR UPDATE SKIP LOCKED keeps
// concurrent workers from claiming the same rows.
func (r *Repository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]DueTask, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		UPDATE follow_up_tasks t
		SET notified_at = now()
		FROM enquiries e
		WHERE e.id = t.enquiry_id AND t.id IN (
			SELECT id FROM follow_up_tasks
			WHERE status = $1 AND due_at <= $2 AND notified_at IS NULL
			ORDER BY due_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING t.id, t.enquiry_id, t.school_id, t.assignee_id, t.title, t.due_at,
			t.status, t.notified_at, t.completed_at, t.created_at,
			COALESCE(
				e.parent_details->'father'->>'name',
				e.parent_details->'mother'->>'name',
				e.parent_details->'guardian'->>'name', ''),
			COALESCE(
				e.parent_details->'father'->>'phone',
				e.parent_details->'mother'->>'phone',
				e.parent_details->'guardian'->>'phone', ''),
			e.student_first_name || ' ' || e.student_last_name,
			e.academic_year_value`,
		StatusOpen, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []DueTask
	for rows.Next() {
		var t DueTask
		if err := rows.Scan(&t.ID, &t.EnquiryID, &t.SchoolID, &t.AssigneeID, &t.Title,
			&t.DueAt, &t.Status, &t.NotifiedAt, &t.CompletedAt, &t.CreatedAt,
			&t.ParentName, &t.ParentPhone, &t.StudentName, &t.AcademicYear); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func collectTasks(rows pgx.Rows) ([]FollowUpTask, error) {
	var tasks []FollowUpTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
