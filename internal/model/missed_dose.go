package model

import (
	"time"

	"github.com/google/uuid"
)

// MissedDoseRecord is an append-only audit entry written by the
// reconciliation sweep, one per detected miss. Never mutated after creation.
type MissedDoseRecord struct {
	ID           uuid.UUID `db:"id" json:"id"`
	MedicationID uuid.UUID `db:"medication_id" json:"medication_id"`
	ScheduleID   uuid.UUID `db:"schedule_id" json:"schedule_id"`
	MissedAt     time.Time `db:"missed_at" json:"missed_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
