package model

import (
	"time"

	"github.com/google/uuid"
)

type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "scheduled"
	ScheduleStatusFulfilled ScheduleStatus = "fulfilled"
	ScheduleStatusMissed    ScheduleStatus = "missed"
	ScheduleStatusStopped   ScheduleStatus = "stopped"
	ScheduleStatusDeleted   ScheduleStatus = "deleted"
)

// Terminal reports whether the entry has left the scheduled state. Terminal
// entries never transition again.
func (s ScheduleStatus) Terminal() bool {
	return s != ScheduleStatusScheduled
}

// Schedule is one planned or occurred dose event. It references its
// medication by ID only; "latest entry for a medication" lookups belong to
// the repository layer.
type Schedule struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	MedicationID uuid.UUID      `db:"medication_id" json:"medication_id"`
	DueAt        time.Time      `db:"due_at" json:"due_at"`
	Status       ScheduleStatus `db:"status" json:"status"`
	FulfilledAt  *time.Time     `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
	MissedAt     *time.Time     `db:"missed_at" json:"missed_at,omitempty"`
	StoppedAt    *time.Time     `db:"stopped_at" json:"stopped_at,omitempty"`
	DeletedAt    *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

type ScheduleFilters struct {
	MedicationID uuid.UUID
	Status       ScheduleStatus
	DueBefore    time.Time
	DueAfter     time.Time
	Pagination   Pagination
}
