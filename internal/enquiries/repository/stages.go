package repository

import (
	"context"
	"errors"
	"fmt"

	"admissions_backend/internal/enquiries/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrStageNotFound is returned when a named stage does not exist on the
// enquiry's pipeline.
var ErrStageNotFound = errors.New("stage not found on enquiry")

func (r *Repository) loadStages(ctx context.Context, enquiryID uuid.UUID) ([]domain.Stage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT position, stage_name, status
		FROM enquiry_stages
		WHERE enquiry_id = $1
		ORDER BY position ASC`, enquiryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]domain.Stage, 0, 8)
	for rows.Next() {
		var stage domain.Stage
		if err := rows.Scan(&stage.Position, &stage.StageName, &stage.Status); err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// GetStages returns the ordered stage list for an enquiry.
func (r *Repository) GetStages(ctx context.Context, enquiryID uuid.UUID) ([]domain.Stage, error) {
	return r.loadStages(ctx, enquiryID)
}

// SetStageStatus updates a single stage's status.
func (r *Repository) SetStageStatus(ctx context.Context, enquiryID uuid.UUID, stageName, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE enquiry_stages
		SET status = $1, updated_at = now()
		WHERE enquiry_id = $2 AND stage_name = $3`,
		status, enquiryID, stageName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStageNotFound
	}
	return nil
}

// ReplaceStageStatuses writes a whole stage slice back in one transaction.
// Positions and names must match the stored pipeline; only statuses change.
func (r *Repository) ReplaceStageStatuses(ctx context.Context, enquiryID uuid.UUID, stages []domain.Stage) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stage := range stages {
		tag, err := tx.Exec(ctx, `
			UPDATE enquiry_stages
			SET status = $1, updated_at = now()
			WHERE enquiry_id = $2 AND position = $3 AND stage_name = $4`,
			stage.Status, enquiryID, stage.Position, stage.StageName)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrStageNotFound, stage.StageName)
		}
	}
	return tx.Commit(ctx)
}
