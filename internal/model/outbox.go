package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusRetry     OutboxStatus = "retry"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Event types emitted on schedule transitions. The reminder dispatcher
// consumes these to decide what notification, if any, to send.
const (
	EventScheduleCreated   = "schedule.scheduled"
	EventScheduleFulfilled = "schedule.fulfilled"
	EventScheduleMissed    = "schedule.missed"
	EventMedicationCreated = "medication.created"
	EventMedicationStopped = "medication.stopped"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// ScheduleEventPayload is the wire payload for schedule transition events.
type ScheduleEventPayload struct {
	ScheduleID   uuid.UUID      `json:"schedule_id"`
	MedicationID uuid.UUID      `json:"medication_id"`
	UserID       uuid.UUID      `json:"user_id"`
	DrugName     string         `json:"drug_name"`
	Status       ScheduleStatus `json:"status"`
	DueAt        time.Time      `json:"due_at"`
	TotalLeft    int            `json:"total_left"`
	OccurredAt   time.Time      `json:"occurred_at"`
}
