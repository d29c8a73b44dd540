package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/pkg/errors"
)

// txExecutor implements repository.Tx over a live sqlx transaction.
type txExecutor struct {
	tx *sqlx.Tx
}

func (t *txExecutor) CreateMedication(ctx context.Context, med *model.Medication) error {
	query := `
		INSERT INTO medications (
			id, user_id, drug_name, total_quantity, total_left,
			dosage_per_intake, frequency_per_day, time_interval_hours,
			priority_flag, priority_lead_time_min, last_intake_time,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	med.CreatedAt = time.Now()
	med.UpdatedAt = med.CreatedAt

	_, err := t.tx.ExecContext(ctx, query,
		med.ID,
		med.UserID,
		med.DrugName,
		med.TotalQuantity,
		med.TotalLeft,
		med.DosagePerIntake,
		med.FrequencyPerDay,
		med.TimeIntervalHours,
		med.PriorityFlag,
		med.PriorityLeadTimeMin,
		med.LastIntakeTime,
		med.Status,
		med.CreatedAt,
		med.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return nil
}

func (t *txExecutor) UpdateMedication(ctx context.Context, med *model.Medication) error {
	query := `
		UPDATE medications
		SET total_left = $1, last_intake_time = $2, status = $3, updated_at = $4
		WHERE id = $5
	`
	med.UpdatedAt = time.Now()

	result, err := t.tx.ExecContext(ctx, query,
		med.TotalLeft,
		med.LastIntakeTime,
		med.Status,
		med.UpdatedAt,
		med.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("medication", nil)
	}
	return nil
}

func (t *txExecutor) GetSchedule(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	query := scheduleColumns + ` WHERE id = $1`
	var entry model.Schedule
	if err := t.tx.GetContext(ctx, &entry, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("schedule", err)
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &entry, nil
}

func (t *txExecutor) GetOpenSchedule(ctx context.Context, medicationID uuid.UUID) (*model.Schedule, error) {
	query := scheduleColumns + ` WHERE medication_id = $1 AND status = $2`
	var entry model.Schedule
	err := t.tx.GetContext(ctx, &entry, query, medicationID, model.ScheduleStatusScheduled)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("open schedule", err)
		}
		return nil, fmt.Errorf("failed to get open schedule: %w", err)
	}
	return &entry, nil
}

func (t *txExecutor) CreateSchedule(ctx context.Context, entry *model.Schedule) error {
	query := `
		INSERT INTO schedules (
			id, medication_id, due_at, status,
			fulfilled_at, missed_at, stopped_at, deleted_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt

	_, err := t.tx.ExecContext(ctx, query,
		entry.ID,
		entry.MedicationID,
		entry.DueAt,
		entry.Status,
		entry.FulfilledAt,
		entry.MissedAt,
		entry.StoppedAt,
		entry.DeletedAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (t *txExecutor) UpdateSchedule(ctx context.Context, entry *model.Schedule) error {
	query := `
		UPDATE schedules
		SET status = $1, fulfilled_at = $2, missed_at = $3,
			stopped_at = $4, deleted_at = $5, updated_at = $6
		WHERE id = $7
	`
	entry.UpdatedAt = time.Now()

	result, err := t.tx.ExecContext(ctx, query,
		entry.Status,
		entry.FulfilledAt,
		entry.MissedAt,
		entry.StoppedAt,
		entry.DeletedAt,
		entry.UpdatedAt,
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("schedule", nil)
	}
	return nil
}

func (t *txExecutor) CreateMissedDose(ctx context.Context, rec *model.MissedDoseRecord) error {
	query := `
		INSERT INTO missed_doses (
			id, medication_id, schedule_id, missed_at, created_at
		) VALUES ($1, $2, $3, $4, $5)
	`
	rec.CreatedAt = time.Now()

	_, err := t.tx.ExecContext(ctx, query,
		rec.ID,
		rec.MedicationID,
		rec.ScheduleID,
		rec.MissedAt,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create missed dose record: %w", err)
	}
	return nil
}

func (t *txExecutor) CreateOutboxEvent(ctx context.Context, event *model.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, retry_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt

	_, err := t.tx.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.RetryCount,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (t *txExecutor) LastPriorityIntake(ctx context.Context, userID uuid.UUID) (*model.PriorityIntake, error) {
	query := `
		SELECT last_intake_time, priority_lead_time_min
		FROM medications
		WHERE user_id = $1
		AND priority_flag = TRUE
		AND last_intake_time IS NOT NULL
		ORDER BY last_intake_time DESC
		LIMIT 1
	`
	var row struct {
		LastIntakeTime time.Time `db:"last_intake_time"`
		LeadTimeMin    int       `db:"priority_lead_time_min"`
	}
	err := t.tx.GetContext(ctx, &row, query, userID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last priority intake: %w", err)
	}
	return &model.PriorityIntake{
		TakenAt:  row.LastIntakeTime,
		LeadTime: time.Duration(row.LeadTimeMin) * time.Minute,
	}, nil
}
