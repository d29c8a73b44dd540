package scheduler

import (
	"time"

	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/pkg/errors"
)

// DefaultGraceWindow is how far past its due time a scheduled entry may run
// before the sweep considers it missed.
const DefaultGraceWindow = 60 * time.Minute

// Fulfill transitions a scheduled entry to fulfilled. Any other source
// state is rejected without touching the entry.
func Fulfill(entry *model.Schedule, now time.Time) error {
	if entry.Status != model.ScheduleStatusScheduled {
		return errors.InvalidTransition(string(entry.Status), string(model.ScheduleStatusFulfilled))
	}
	entry.Status = model.ScheduleStatusFulfilled
	t := now
	entry.FulfilledAt = &t
	return nil
}

// Overdue reports whether a scheduled entry has outlived its grace window.
func Overdue(entry *model.Schedule, now time.Time, grace time.Duration) bool {
	return entry.Status == model.ScheduleStatusScheduled && now.Sub(entry.DueAt) > grace
}

// MarkMissed transitions a scheduled entry to missed. Only legal once the
// entry is overdue by more than the grace window.
func MarkMissed(entry *model.Schedule, now time.Time, grace time.Duration) error {
	if entry.Status != model.ScheduleStatusScheduled {
		return errors.InvalidTransition(string(entry.Status), string(model.ScheduleStatusMissed))
	}
	if !Overdue(entry, now, grace) {
		return errors.BadRequest("schedule entry is still within its grace window", nil)
	}
	entry.Status = model.ScheduleStatusMissed
	t := now
	entry.MissedAt = &t
	return nil
}

// StopEntry transitions a still-open entry to stopped. Returns false when
// the entry is already terminal, in which case nothing changes.
func StopEntry(entry *model.Schedule, now time.Time) bool {
	if entry.Status.Terminal() {
		return false
	}
	entry.Status = model.ScheduleStatusStopped
	t := now
	entry.StoppedAt = &t
	return true
}

// SoftDeleteEntry transitions a still-open entry to deleted. Returns false
// when the entry is already terminal.
func SoftDeleteEntry(entry *model.Schedule, now time.Time) bool {
	if entry.Status.Terminal() {
		return false
	}
	entry.Status = model.ScheduleStatusDeleted
	t := now
	entry.DeletedAt = &t
	return true
}

// NextDue computes the due time of the successor entry after a resolved
// dose, or nil when the medication has left the active state and no
// successor should exist.
//
// The reference time is the resolution instant of the previous entry. The
// lead-time gate is applied to the candidate due time itself: a regular
// dose that would land inside a pending priority lead time is pushed out to
// the gate's allowed instant, never scheduled earlier.
func NextDue(med *model.Medication, reference time.Time, lastPriority *model.PriorityIntake) (*time.Time, error) {
	if med.Status != model.MedicationStatusActive {
		return nil, nil
	}
	interval, err := DoseInterval(med)
	if err != nil {
		return nil, err
	}
	due := reference.Add(interval)
	if d := Gate(due, med.PriorityFlag, lastPriority); !d.Allowed {
		due = d.NextAllowedAt
	}
	return &due, nil
}
