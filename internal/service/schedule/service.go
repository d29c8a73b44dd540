package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/internal/repository"
	"github.com/medtime/medtime-api/internal/scheduler"
	"github.com/medtime/medtime-api/pkg/errors"
)

// Config carries the business-rule durations of the state machine.
type Config struct {
	// GraceWindow is how far past its due time an entry may run before it
	// counts as missed.
	GraceWindow time.Duration
	// MissedDosePolicy decides whether a miss consumes inventory.
	MissedDosePolicy scheduler.MissedDosePolicy
}

func DefaultConfig() Config {
	return Config{
		GraceWindow:      scheduler.DefaultGraceWindow,
		MissedDosePolicy: scheduler.MissedConsumesDose,
	}
}

// Service owns the lifecycle of schedule entries. Every compound transition
// that touches an entry and its medication ledger runs inside the
// per-medication lock, so a dose-taken request and a concurrent sweep
// serialize on the same row and the loser observes a non-scheduled entry.
type Service struct {
	runner       repository.TxRunner
	scheduleRepo repository.ScheduleRepository
	cfg          Config
}

func NewService(runner repository.TxRunner, scheduleRepo repository.ScheduleRepository, cfg Config) *Service {
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = scheduler.DefaultGraceWindow
	}
	return &Service{
		runner:       runner,
		scheduleRepo: scheduleRepo,
		cfg:          cfg,
	}
}

func (s *Service) GraceWindow() time.Duration {
	return s.cfg.GraceWindow
}

// SeedInitial creates the first scheduled entry for a newly created
// medication, inside the caller's transaction. The entry is due at the
// given start time.
func (s *Service) SeedInitial(ctx context.Context, tx repository.Tx, med *model.Medication, startTime time.Time) (*model.Schedule, error) {
	// Fail fast on unusable dosing configuration before anything persists.
	if _, err := scheduler.DoseInterval(med); err != nil {
		return nil, err
	}

	entry := &model.Schedule{
		ID:           uuid.New(),
		MedicationID: med.ID,
		DueAt:        startTime,
		Status:       model.ScheduleStatusScheduled,
	}
	if err := tx.CreateSchedule(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.emitEvent(ctx, tx, model.EventScheduleCreated, med, entry, startTime); err != nil {
		return nil, err
	}
	return entry, nil
}

// Fulfill resolves the open entry of a medication as taken at the given
// instant, updates the ledger and creates the successor entry unless the
// medication left the active state.
func (s *Service) Fulfill(ctx context.Context, medicationID uuid.UUID, takenAt time.Time) (*model.Schedule, error) {
	var fulfilled *model.Schedule

	err := s.runner.WithMedicationLock(ctx, medicationID, func(tx repository.Tx, med *model.Medication) error {
		entry, err := tx.GetOpenSchedule(ctx, medicationID)
		if err != nil {
			if errors.IsNotFound(err) {
				return errors.InvalidTransition(string(med.Status), string(model.ScheduleStatusFulfilled))
			}
			return err
		}

		if err := scheduler.Fulfill(entry, takenAt); err != nil {
			return err
		}

		ledger := scheduler.NewLedger(med, s.cfg.MissedDosePolicy)
		if err := ledger.TakeDose(takenAt); err != nil {
			return err
		}

		if err := tx.UpdateSchedule(ctx, entry); err != nil {
			return err
		}
		if err := tx.UpdateMedication(ctx, med); err != nil {
			return err
		}
		if err := s.emitEvent(ctx, tx, model.EventScheduleFulfilled, med, entry, takenAt); err != nil {
			return err
		}

		if err := s.generateNext(ctx, tx, med, takenAt); err != nil {
			return err
		}

		fulfilled = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fulfilled, nil
}

// MarkMissed resolves one overdue entry as missed: ledger accounting, an
// append-only missed-dose record, and the successor entry. Entries that
// already left the scheduled state, or are still within the grace window,
// are skipped without error so repeated sweeps never double-count.
func (s *Service) MarkMissed(ctx context.Context, scheduleID uuid.UUID, now time.Time) (bool, error) {
	// Resolve the owning medication first; the authoritative re-check of
	// the entry happens under the lock.
	peek, err := s.scheduleRepo.Get(ctx, scheduleID)
	if err != nil {
		return false, err
	}

	missed := false
	err = s.runner.WithMedicationLock(ctx, peek.MedicationID, func(tx repository.Tx, med *model.Medication) error {
		entry, err := tx.GetSchedule(ctx, scheduleID)
		if err != nil {
			return err
		}
		if entry.Status != model.ScheduleStatusScheduled || !scheduler.Overdue(entry, now, s.cfg.GraceWindow) {
			return nil
		}

		if err := scheduler.MarkMissed(entry, now, s.cfg.GraceWindow); err != nil {
			return err
		}

		ledger := scheduler.NewLedger(med, s.cfg.MissedDosePolicy)
		ledger.RecordMiss(now)

		if err := tx.UpdateSchedule(ctx, entry); err != nil {
			return err
		}
		if err := tx.UpdateMedication(ctx, med); err != nil {
			return err
		}

		record := &model.MissedDoseRecord{
			ID:           uuid.New(),
			MedicationID: med.ID,
			ScheduleID:   entry.ID,
			MissedAt:     now,
		}
		if err := tx.CreateMissedDose(ctx, record); err != nil {
			return err
		}
		if err := s.emitEvent(ctx, tx, model.EventScheduleMissed, med, entry, now); err != nil {
			return err
		}

		if err := s.generateNext(ctx, tx, med, now); err != nil {
			return err
		}

		missed = true
		return nil
	})
	return missed, err
}

// StopMedication terminates a medication and its open entry. No successor
// is generated. Idempotent: a medication already terminal stays as it is.
func (s *Service) StopMedication(ctx context.Context, medicationID uuid.UUID, now time.Time) error {
	return s.terminate(ctx, medicationID, now, false)
}

// SoftDeleteMedication removes a medication from scheduling without
// destroying its history.
func (s *Service) SoftDeleteMedication(ctx context.Context, medicationID uuid.UUID, now time.Time) error {
	return s.terminate(ctx, medicationID, now, true)
}

func (s *Service) terminate(ctx context.Context, medicationID uuid.UUID, now time.Time, delete bool) error {
	return s.runner.WithMedicationLock(ctx, medicationID, func(tx repository.Tx, med *model.Medication) error {
		ledger := scheduler.NewLedger(med, s.cfg.MissedDosePolicy)
		if delete {
			ledger.Delete()
		} else {
			ledger.Stop()
		}
		if err := tx.UpdateMedication(ctx, med); err != nil {
			return err
		}

		entry, err := tx.GetOpenSchedule(ctx, medicationID)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil
			}
			return err
		}

		var changed bool
		if delete {
			changed = scheduler.SoftDeleteEntry(entry, now)
		} else {
			changed = scheduler.StopEntry(entry, now)
		}
		if !changed {
			return nil
		}
		if err := tx.UpdateSchedule(ctx, entry); err != nil {
			return err
		}
		return s.emitEvent(ctx, tx, model.EventMedicationStopped, med, entry, now)
	})
}

// generateNext creates the successor entry after a resolved dose. The
// successor's due time starts at the resolution instant plus the dose
// interval, then the lead-time gate may push it out. No successor once the
// medication is not active.
func (s *Service) generateNext(ctx context.Context, tx repository.Tx, med *model.Medication, reference time.Time) error {
	lastPriority, err := tx.LastPriorityIntake(ctx, med.UserID)
	if err != nil {
		return err
	}

	due, err := scheduler.NextDue(med, reference, lastPriority)
	if err != nil {
		return err
	}
	if due == nil {
		return nil
	}

	next := &model.Schedule{
		ID:           uuid.New(),
		MedicationID: med.ID,
		DueAt:        *due,
		Status:       model.ScheduleStatusScheduled,
	}
	if err := tx.CreateSchedule(ctx, next); err != nil {
		return err
	}
	return s.emitEvent(ctx, tx, model.EventScheduleCreated, med, next, reference)
}

func (s *Service) emitEvent(ctx context.Context, tx repository.Tx, eventType string, med *model.Medication, entry *model.Schedule, occurredAt time.Time) error {
	payload, err := json.Marshal(model.ScheduleEventPayload{
		ScheduleID:   entry.ID,
		MedicationID: med.ID,
		UserID:       med.UserID,
		DrugName:     med.DrugName,
		Status:       entry.Status,
		DueAt:        entry.DueAt,
		TotalLeft:    med.TotalLeft,
		OccurredAt:   occurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal schedule event: %w", err)
	}
	return tx.CreateOutboxEvent(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	})
}

// Get returns one schedule entry.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Schedule, error) {
	return s.scheduleRepo.Get(ctx, id)
}

// List returns schedule entries matching the filters.
func (s *Service) List(ctx context.Context, filters *model.ScheduleFilters) ([]*model.Schedule, error) {
	return s.scheduleRepo.List(ctx, filters)
}

// OpenEntry returns the single open entry of a medication, or a not-found
// error when the medication has left scheduling.
func (s *Service) OpenEntry(ctx context.Context, medicationID uuid.UUID) (*model.Schedule, error) {
	return s.scheduleRepo.GetOpenByMedication(ctx, medicationID)
}
