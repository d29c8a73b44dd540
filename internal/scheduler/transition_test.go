package scheduler

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/pkg/errors"
)

func openEntry(dueAt time.Time) *model.Schedule {
	return &model.Schedule{
		ID:           uuid.New(),
		MedicationID: uuid.New(),
		DueAt:        dueAt,
		Status:       model.ScheduleStatusScheduled,
	}
}

func TestFulfill(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	entry := openEntry(now)
	require.NoError(t, Fulfill(entry, now))
	assert.Equal(t, model.ScheduleStatusFulfilled, entry.Status)
	require.NotNil(t, entry.FulfilledAt)
	assert.Equal(t, now, *entry.FulfilledAt)

	// terminal entries never transition again
	err := Fulfill(entry, now.Add(time.Minute))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))
}

func TestMarkMissed(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("past grace window", func(t *testing.T) {
		entry := openEntry(now.Add(-90 * time.Minute))
		require.NoError(t, MarkMissed(entry, now, DefaultGraceWindow))
		assert.Equal(t, model.ScheduleStatusMissed, entry.Status)
		require.NotNil(t, entry.MissedAt)
		assert.Equal(t, now, *entry.MissedAt)
	})

	t.Run("within grace window", func(t *testing.T) {
		entry := openEntry(now.Add(-30 * time.Minute))
		err := MarkMissed(entry, now, DefaultGraceWindow)
		require.Error(t, err)
		assert.Equal(t, model.ScheduleStatusScheduled, entry.Status)
	})

	t.Run("already fulfilled", func(t *testing.T) {
		entry := openEntry(now.Add(-2 * time.Hour))
		require.NoError(t, Fulfill(entry, now))
		err := MarkMissed(entry, now, DefaultGraceWindow)
		require.Error(t, err)
		assert.True(t, errors.IsInvalidTransition(err))
		assert.Equal(t, model.ScheduleStatusFulfilled, entry.Status)
	})
}

func TestStopAndSoftDelete(t *testing.T) {
	now := time.Now()

	entry := openEntry(now)
	assert.True(t, StopEntry(entry, now))
	assert.Equal(t, model.ScheduleStatusStopped, entry.Status)
	assert.False(t, StopEntry(entry, now))

	entry = openEntry(now)
	assert.True(t, SoftDeleteEntry(entry, now))
	assert.Equal(t, model.ScheduleStatusDeleted, entry.Status)
	assert.False(t, SoftDeleteEntry(entry, now))
	assert.False(t, StopEntry(entry, now))
}

func TestNextDue(t *testing.T) {
	ref := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("interval chain", func(t *testing.T) {
		med := activeMedication(20, 18, 2)
		med.TimeIntervalHours = floatPtr(8)
		due, err := NextDue(med, ref, nil)
		require.NoError(t, err)
		require.NotNil(t, due)
		assert.Equal(t, ref.Add(8*time.Hour), *due)
	})

	t.Run("gate pushes regular dose to the allowed time", func(t *testing.T) {
		// priority intake at T with a 30 minute lead; regular dose
		// otherwise due at T+10m must land at T+30m.
		med := activeMedication(20, 18, 2)
		med.TimeIntervalHours = floatPtr(10.0 / 60.0)
		last := &model.PriorityIntake{TakenAt: ref, LeadTime: 30 * time.Minute}

		due, err := NextDue(med, ref, last)
		require.NoError(t, err)
		require.NotNil(t, due)
		assert.Equal(t, ref.Add(30*time.Minute), *due)
	})

	t.Run("priority medication is not pushed by the gate", func(t *testing.T) {
		med := activeMedication(20, 18, 2)
		med.PriorityFlag = true
		med.TimeIntervalHours = floatPtr(0.25)
		med.PriorityLeadTimeMin = intPtr(30)
		last := &model.PriorityIntake{TakenAt: ref, LeadTime: 30 * time.Minute}

		due, err := NextDue(med, ref, last)
		require.NoError(t, err)
		require.NotNil(t, due)
		assert.Equal(t, ref.Add(15*time.Minute), *due)
	})

	t.Run("no successor once the medication is not active", func(t *testing.T) {
		for _, status := range []model.MedicationStatus{
			model.MedicationStatusExhausted,
			model.MedicationStatusStopped,
			model.MedicationStatusDeleted,
		} {
			med := activeMedication(20, 0, 2)
			med.Status = status
			med.TimeIntervalHours = floatPtr(8)
			due, err := NextDue(med, ref, nil)
			require.NoError(t, err)
			assert.Nil(t, due, "status %s", status)
		}
	})

	t.Run("broken configuration surfaces", func(t *testing.T) {
		med := activeMedication(20, 18, 2)
		due, err := NextDue(med, ref, nil)
		require.Error(t, err)
		assert.Nil(t, due)
	})
}
