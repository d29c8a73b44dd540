package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/pkg/errors"
)

const scheduleColumns = `
	SELECT id, medication_id, due_at, status,
		   fulfilled_at, missed_at, stopped_at, deleted_at,
		   created_at, updated_at
	FROM schedules`

func (r *scheduleRepository) Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	query := scheduleColumns + ` WHERE id = $1`
	var entry model.Schedule
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("schedule", err)
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &entry, nil
}

func (r *scheduleRepository) GetOpenByMedication(ctx context.Context, medicationID uuid.UUID) (*model.Schedule, error) {
	query := scheduleColumns + ` WHERE medication_id = $1 AND status = $2`
	var entry model.Schedule
	err := r.db.GetContext(ctx, &entry, query, medicationID, model.ScheduleStatusScheduled)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("open schedule", err)
		}
		return nil, fmt.Errorf("failed to get open schedule: %w", err)
	}
	return &entry, nil
}

func (r *scheduleRepository) List(ctx context.Context, filters *model.ScheduleFilters) ([]*model.Schedule, error) {
	query := scheduleColumns + ` WHERE medication_id = $1`
	args := []interface{}{filters.MedicationID}
	argCount := 2

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}
	if !filters.DueAfter.IsZero() {
		query += fmt.Sprintf(" AND due_at >= $%d", argCount)
		args = append(args, filters.DueAfter)
		argCount++
	}
	if !filters.DueBefore.IsZero() {
		query += fmt.Sprintf(" AND due_at <= $%d", argCount)
		args = append(args, filters.DueBefore)
		argCount++
	}

	query += " ORDER BY due_at ASC"

	if filters.Pagination.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
		args = append(args, filters.Pagination.PageSize, filters.Pagination.Offset())
	}

	var entries []*model.Schedule
	err := r.db.SelectContext(ctx, &entries, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return entries, nil
}

func (r *scheduleRepository) ListDueBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM schedules
		WHERE status = $1
		AND due_at < $2
		ORDER BY due_at ASC
	`
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, query, model.ScheduleStatusScheduled, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list due schedules: %w", err)
	}
	return ids, nil
}
