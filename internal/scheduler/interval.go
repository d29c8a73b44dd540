package scheduler

import (
	"time"

	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/pkg/errors"
)

const hoursPerDay = 24.0

// DoseInterval returns the duration between two consecutive doses of a
// medication.
//
// An explicit time interval always wins, for priority and regular
// medications alike. Regular medications may instead carry a daily
// frequency; the interval is then 24/frequency hours using true division,
// so frequency 5 yields 4h48m rather than a floored 4h that would
// over-count doses across a day.
func DoseInterval(med *model.Medication) (time.Duration, error) {
	if med.TimeIntervalHours != nil && *med.TimeIntervalHours > 0 {
		return time.Duration(*med.TimeIntervalHours * float64(time.Hour)), nil
	}
	if med.PriorityFlag {
		return 0, errors.Configuration("priority medication requires a time interval")
	}
	if med.FrequencyPerDay != nil && *med.FrequencyPerDay > 0 {
		hours := hoursPerDay / float64(*med.FrequencyPerDay)
		return time.Duration(hours * float64(time.Hour)), nil
	}
	return 0, errors.Configuration("either time interval or frequency per day must be set")
}
