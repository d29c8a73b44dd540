package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medtime/medtime-api/internal/model"
)

// Tx is the write surface available inside a transaction. Every compound
// transition that touches a schedule entry and its medication ledger goes
// through one of these.
type Tx interface {
	CreateMedication(ctx context.Context, med *model.Medication) error
	UpdateMedication(ctx context.Context, med *model.Medication) error

	GetSchedule(ctx context.Context, id uuid.UUID) (*model.Schedule, error)
	// GetOpenSchedule returns the single scheduled entry of a medication,
	// or a not-found error when none is open.
	GetOpenSchedule(ctx context.Context, medicationID uuid.UUID) (*model.Schedule, error)
	CreateSchedule(ctx context.Context, entry *model.Schedule) error
	UpdateSchedule(ctx context.Context, entry *model.Schedule) error

	CreateMissedDose(ctx context.Context, rec *model.MissedDoseRecord) error
	CreateOutboxEvent(ctx context.Context, event *model.OutboxEvent) error

	// LastPriorityIntake returns the most recent intake among the user's
	// priority medications together with its lead time, or nil when no
	// priority medication has ever been taken.
	LastPriorityIntake(ctx context.Context, userID uuid.UUID) (*model.PriorityIntake, error)
}

// TxRunner owns transaction boundaries and the per-medication lock.
type TxRunner interface {
	// WithTx runs fn inside a plain transaction.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	// WithMedicationLock acquires exclusive access to one medication row,
	// then runs fn with the freshly loaded row. A lock held elsewhere
	// surfaces as a retryable conflict error. Operations on different
	// medications proceed in parallel.
	WithMedicationLock(ctx context.Context, medicationID uuid.UUID, fn func(tx Tx, med *model.Medication) error) error
}

type MedicationRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Medication, error)
	List(ctx context.Context, userID uuid.UUID) ([]*model.Medication, error)
}

type ScheduleRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error)
	GetOpenByMedication(ctx context.Context, medicationID uuid.UUID) (*model.Schedule, error)
	List(ctx context.Context, filters *model.ScheduleFilters) ([]*model.Schedule, error)
	// ListDueBefore returns IDs of scheduled entries whose due time plus
	// grace window lies before the cutoff. The sweep resolves each one
	// under its own medication lock.
	ListDueBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

type MissedDoseRepository interface {
	ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]*model.MissedDoseRecord, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
