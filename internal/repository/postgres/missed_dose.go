package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medtime/medtime-api/internal/model"
)

func (r *missedDoseRepository) ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]*model.MissedDoseRecord, error) {
	query := `
		SELECT id, medication_id, schedule_id, missed_at, created_at
		FROM missed_doses
		WHERE medication_id = $1
		ORDER BY missed_at ASC
	`
	var records []*model.MissedDoseRecord
	err := r.db.SelectContext(ctx, &records, query, medicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list missed doses: %w", err)
	}
	return records, nil
}
