package scheduler

import (
	"time"

	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/pkg/errors"
)

// MissedDosePolicy decides whether a missed dose consumes inventory. The
// product never settled this; keep it behind one named switch instead of
// hard-coding either answer.
type MissedDosePolicy int

const (
	// MissedConsumesDose decrements supply on a miss: the time slot is
	// spent whether or not the dose was taken. Default.
	MissedConsumesDose MissedDosePolicy = iota
	// MissedRetainsDose leaves supply untouched on a miss.
	MissedRetainsDose
)

// ParseMissedDosePolicy maps a config string to a policy. Unknown values
// fall back to the consuming default.
func ParseMissedDosePolicy(s string) MissedDosePolicy {
	if s == "retain" {
		return MissedRetainsDose
	}
	return MissedConsumesDose
}

// Ledger owns quantity bookkeeping and status transitions for a single
// medication. It mutates the wrapped medication in place; persisting the
// result is the caller's responsibility.
type Ledger struct {
	med    *model.Medication
	policy MissedDosePolicy
}

func NewLedger(med *model.Medication, policy MissedDosePolicy) *Ledger {
	return &Ledger{med: med, policy: policy}
}

// TakeDose records an intake at the given instant. Supply drops by the
// per-intake dosage, floored at zero, and the medication becomes exhausted
// when nothing is left.
func (l *Ledger) TakeDose(now time.Time) error {
	if l.med.TotalLeft <= 0 || l.med.Status == model.MedicationStatusExhausted {
		return errors.Exhausted(l.med.DrugName)
	}
	if l.med.Status != model.MedicationStatusActive {
		return errors.InvalidTransition(string(l.med.Status), string(model.MedicationStatusActive))
	}

	l.med.TotalLeft -= l.med.DosagePerIntake
	if l.med.TotalLeft < 0 {
		l.med.TotalLeft = 0
	}
	t := now
	l.med.LastIntakeTime = &t
	if l.med.TotalLeft == 0 {
		l.med.Status = model.MedicationStatusExhausted
	}
	return nil
}

// RecordMiss accounts for a missed dose. Depending on policy the slot still
// consumes inventory, but the last intake time is never advanced: nothing
// was taken.
func (l *Ledger) RecordMiss(now time.Time) {
	if l.policy == MissedRetainsDose {
		return
	}
	if l.med.TotalLeft <= 0 {
		return
	}
	l.med.TotalLeft -= l.med.DosagePerIntake
	if l.med.TotalLeft < 0 {
		l.med.TotalLeft = 0
	}
	if l.med.TotalLeft == 0 {
		l.med.Status = model.MedicationStatusExhausted
	}
}

// Stop is a terminal transition. Idempotent, legal from any state.
func (l *Ledger) Stop() {
	if l.med.Status == model.MedicationStatusDeleted {
		return
	}
	l.med.Status = model.MedicationStatusStopped
}

// Delete is a terminal transition. Idempotent, legal from any state.
func (l *Ledger) Delete() {
	l.med.Status = model.MedicationStatusDeleted
}
