package scheduler

import (
	"time"

	"github.com/medtime/medtime-api/internal/model"
)

// GateDecision is the outcome of the priority lead-time gate. When a dose is
// denied, NextAllowedAt carries the earliest instant it may proceed.
type GateDecision struct {
	Allowed       bool
	NextAllowedAt time.Time
}

// Gate decides whether a dose may be considered due at the given instant.
//
// Priority medications are never gated by other priority medications; ties
// between them are broken by due-time ordering at schedule generation, not
// here. A regular dose is gated only when some priority medication has been
// taken and its lead time has not yet elapsed.
//
// The function is pure and time-injected: callers pass the instant under
// consideration, which for successor generation is the candidate due time
// rather than the wall clock.
func Gate(at time.Time, candidateIsPriority bool, last *model.PriorityIntake) GateDecision {
	if candidateIsPriority || last == nil {
		return GateDecision{Allowed: true}
	}
	next := last.NextAllowedAt()
	if !at.Before(next) {
		return GateDecision{Allowed: true}
	}
	return GateDecision{Allowed: false, NextAllowedAt: next}
}
