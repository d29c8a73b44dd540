package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/pkg/errors"
)

const medicationColumns = `
	SELECT id, user_id, drug_name, total_quantity, total_left,
		   dosage_per_intake, frequency_per_day, time_interval_hours,
		   priority_flag, priority_lead_time_min, last_intake_time,
		   status, created_at, updated_at
	FROM medications`

func (r *medicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	query := medicationColumns + ` WHERE id = $1`
	var med model.Medication
	if err := r.db.GetContext(ctx, &med, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("medication", err)
		}
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}
	return &med, nil
}

func (r *medicationRepository) List(ctx context.Context, userID uuid.UUID) ([]*model.Medication, error) {
	query := medicationColumns + `
		WHERE user_id = $1
		AND status != $2
		ORDER BY created_at ASC
	`
	var meds []*model.Medication
	err := r.db.SelectContext(ctx, &meds, query, userID, model.MedicationStatusDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}
