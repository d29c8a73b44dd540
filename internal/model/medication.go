package model

import (
	"time"

	"github.com/google/uuid"
)

type MedicationStatus string

const (
	MedicationStatusActive    MedicationStatus = "active"
	MedicationStatusExhausted MedicationStatus = "exhausted"
	MedicationStatusStopped   MedicationStatus = "stopped"
	MedicationStatusDeleted   MedicationStatus = "deleted"
)

// Terminal reports whether the medication can no longer participate in
// scheduling.
func (s MedicationStatus) Terminal() bool {
	return s == MedicationStatusExhausted || s == MedicationStatusStopped || s == MedicationStatusDeleted
}

type Medication struct {
	ID                  uuid.UUID        `db:"id" json:"id"`
	UserID              uuid.UUID        `db:"user_id" json:"user_id"`
	DrugName            string           `db:"drug_name" json:"drug_name"`
	TotalQuantity       int              `db:"total_quantity" json:"total_quantity"`
	TotalLeft           int              `db:"total_left" json:"total_left"`
	DosagePerIntake     int              `db:"dosage_per_intake" json:"dosage_per_intake"`
	FrequencyPerDay     *int             `db:"frequency_per_day" json:"frequency_per_day,omitempty"`
	TimeIntervalHours   *float64         `db:"time_interval_hours" json:"time_interval_hours,omitempty"`
	PriorityFlag        bool             `db:"priority_flag" json:"priority_flag"`
	PriorityLeadTimeMin *int             `db:"priority_lead_time_min" json:"priority_lead_time_min,omitempty"`
	LastIntakeTime      *time.Time       `db:"last_intake_time" json:"last_intake_time,omitempty"`
	Status              MedicationStatus `db:"status" json:"status"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// PriorityLeadTime returns the configured lead time as a duration, or zero
// when the medication is not a priority medication.
func (m *Medication) PriorityLeadTime() time.Duration {
	if !m.PriorityFlag || m.PriorityLeadTimeMin == nil {
		return 0
	}
	return time.Duration(*m.PriorityLeadTimeMin) * time.Minute
}

type CreateMedicationRequest struct {
	UserID              uuid.UUID  `json:"user_id" binding:"required"`
	DrugName            string     `json:"drug_name" binding:"required,max=255"`
	TotalQuantity       int        `json:"total_quantity" binding:"required,gt=0"`
	DosagePerIntake     int        `json:"dosage_per_intake" binding:"required,gt=0"`
	FrequencyPerDay     *int       `json:"frequency_per_day" binding:"omitempty,gt=0"`
	TimeIntervalHours   *float64   `json:"time_interval_hours" binding:"omitempty,gt=0"`
	PriorityFlag        bool       `json:"priority_flag"`
	PriorityLeadTimeMin *int       `json:"priority_lead_time_min" binding:"omitempty,gt=0"`
	StartTime           *time.Time `json:"start_time"`
}

type TakeDoseRequest struct {
	TakenAt *time.Time `json:"taken_at"`
}

// MedicationState is the queryable per-medication view exposed to
// collaborators: remaining supply, lifecycle status and the next due time
// of the open schedule entry, if any.
type MedicationState struct {
	MedicationID uuid.UUID        `json:"medication_id"`
	TotalLeft    int              `json:"total_left"`
	Status       MedicationStatus `json:"status"`
	NextDueAt    *time.Time       `json:"next_due_at,omitempty"`
}

// PriorityIntake captures the most recent intake of any priority medication
// belonging to a user, together with that medication's lead time. It feeds
// the lead-time gate.
type PriorityIntake struct {
	TakenAt  time.Time
	LeadTime time.Duration
}

// NextAllowedAt is the earliest instant a non-priority dose may follow this
// priority intake.
func (p *PriorityIntake) NextAllowedAt() time.Time {
	return p.TakenAt.Add(p.LeadTime)
}
