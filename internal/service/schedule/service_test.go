package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/internal/repository"
	"github.com/medtime/medtime-api/internal/scheduler"
	"github.com/medtime/medtime-api/pkg/errors"
)

// fakeStore is an in-memory stand-in for the postgres layer. It implements
// the transactional write surface, the runner and the schedule read side,
// which is enough to exercise every compound transition without a database.
type fakeStore struct {
	medications map[uuid.UUID]model.Medication
	schedules   map[uuid.UUID]model.Schedule
	missed      []model.MissedDoseRecord
	outbox      []model.OutboxEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		medications: make(map[uuid.UUID]model.Medication),
		schedules:   make(map[uuid.UUID]model.Schedule),
	}
}

func (f *fakeStore) CreateMedication(_ context.Context, med *model.Medication) error {
	f.medications[med.ID] = *med
	return nil
}

func (f *fakeStore) UpdateMedication(_ context.Context, med *model.Medication) error {
	f.medications[med.ID] = *med
	return nil
}

func (f *fakeStore) GetSchedule(_ context.Context, id uuid.UUID) (*model.Schedule, error) {
	entry, ok := f.schedules[id]
	if !ok {
		return nil, errors.NotFound("schedule", nil)
	}
	return &entry, nil
}

func (f *fakeStore) GetOpenSchedule(_ context.Context, medicationID uuid.UUID) (*model.Schedule, error) {
	for _, entry := range f.schedules {
		if entry.MedicationID == medicationID && entry.Status == model.ScheduleStatusScheduled {
			e := entry
			return &e, nil
		}
	}
	return nil, errors.NotFound("schedule", nil)
}

func (f *fakeStore) CreateSchedule(_ context.Context, entry *model.Schedule) error {
	f.schedules[entry.ID] = *entry
	return nil
}

func (f *fakeStore) UpdateSchedule(_ context.Context, entry *model.Schedule) error {
	f.schedules[entry.ID] = *entry
	return nil
}

func (f *fakeStore) CreateMissedDose(_ context.Context, rec *model.MissedDoseRecord) error {
	f.missed = append(f.missed, *rec)
	return nil
}

func (f *fakeStore) CreateOutboxEvent(_ context.Context, event *model.OutboxEvent) error {
	f.outbox = append(f.outbox, *event)
	return nil
}

func (f *fakeStore) LastPriorityIntake(_ context.Context, userID uuid.UUID) (*model.PriorityIntake, error) {
	var latest *model.PriorityIntake
	for _, med := range f.medications {
		if med.UserID != userID || !med.PriorityFlag || med.LastIntakeTime == nil {
			continue
		}
		if latest == nil || med.LastIntakeTime.After(latest.TakenAt) {
			latest = &model.PriorityIntake{
				TakenAt:  *med.LastIntakeTime,
				LeadTime: med.PriorityLeadTime(),
			}
		}
	}
	return latest, nil
}

func (f *fakeStore) WithTx(_ context.Context, fn func(tx repository.Tx) error) error {
	return fn(f)
}

func (f *fakeStore) WithMedicationLock(_ context.Context, medicationID uuid.UUID, fn func(tx repository.Tx, med *model.Medication) error) error {
	med, ok := f.medications[medicationID]
	if !ok {
		return errors.NotFound("medication", nil)
	}
	return fn(f, &med)
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*model.Schedule, error) {
	return f.GetSchedule(context.Background(), id)
}

func (f *fakeStore) GetOpenByMedication(_ context.Context, medicationID uuid.UUID) (*model.Schedule, error) {
	return f.GetOpenSchedule(context.Background(), medicationID)
}

func (f *fakeStore) List(_ context.Context, filters *model.ScheduleFilters) ([]*model.Schedule, error) {
	var out []*model.Schedule
	for _, entry := range f.schedules {
		if filters.MedicationID != uuid.Nil && entry.MedicationID != filters.MedicationID {
			continue
		}
		if filters.Status != "" && entry.Status != filters.Status {
			continue
		}
		e := entry
		out = append(out, &e)
	}
	return out, nil
}

func (f *fakeStore) ListDueBefore(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, entry := range f.schedules {
		if entry.Status == model.ScheduleStatusScheduled && entry.DueAt.Before(cutoff) {
			ids = append(ids, entry.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) openEntries(medicationID uuid.UUID) []model.Schedule {
	var out []model.Schedule
	for _, entry := range f.schedules {
		if entry.MedicationID == medicationID && entry.Status == model.ScheduleStatusScheduled {
			out = append(out, entry)
		}
	}
	return out
}

func (f *fakeStore) addMedication(med model.Medication) {
	f.medications[med.ID] = med
}

func (f *fakeStore) addSchedule(entry model.Schedule) {
	f.schedules[entry.ID] = entry
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func regularMedication(userID uuid.UUID, totalLeft, dosage int, intervalHours float64) model.Medication {
	return model.Medication{
		ID:                uuid.New(),
		UserID:            userID,
		DrugName:          "amoxicillin",
		TotalQuantity:     totalLeft,
		TotalLeft:         totalLeft,
		DosagePerIntake:   dosage,
		TimeIntervalHours: floatPtr(intervalHours),
		Status:            model.MedicationStatusActive,
	}
}

func priorityMedication(userID uuid.UUID, intervalHours float64, leadTimeMin int) model.Medication {
	med := regularMedication(userID, 30, 1, intervalHours)
	med.DrugName = "levothyroxine"
	med.PriorityFlag = true
	med.PriorityLeadTimeMin = intPtr(leadTimeMin)
	return med
}

func TestFulfill(t *testing.T) {
	baseTime := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("resolves entry and creates successor", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		med := regularMedication(uuid.New(), 20, 1, 8)
		store.addMedication(med)
		entry := model.Schedule{ID: uuid.New(), MedicationID: med.ID, DueAt: baseTime, Status: model.ScheduleStatusScheduled}
		store.addSchedule(entry)

		fulfilled, err := svc.Fulfill(context.Background(), med.ID, baseTime)
		require.NoError(t, err)
		assert.Equal(t, model.ScheduleStatusFulfilled, fulfilled.Status)
		require.NotNil(t, fulfilled.FulfilledAt)

		updated := store.medications[med.ID]
		assert.Equal(t, 19, updated.TotalLeft)
		require.NotNil(t, updated.LastIntakeTime)
		assert.Equal(t, baseTime, *updated.LastIntakeTime)

		open := store.openEntries(med.ID)
		require.Len(t, open, 1, "exactly one open entry after fulfillment")
		assert.Equal(t, baseTime.Add(8*time.Hour), open[0].DueAt)
	})

	t.Run("exhaustion suppresses successor", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		med := regularMedication(uuid.New(), 1, 1, 8)
		store.addMedication(med)
		store.addSchedule(model.Schedule{ID: uuid.New(), MedicationID: med.ID, DueAt: baseTime, Status: model.ScheduleStatusScheduled})

		_, err := svc.Fulfill(context.Background(), med.ID, baseTime)
		require.NoError(t, err)

		updated := store.medications[med.ID]
		assert.Equal(t, 0, updated.TotalLeft)
		assert.Equal(t, model.MedicationStatusExhausted, updated.Status)
		assert.Empty(t, store.openEntries(med.ID), "no successor for an exhausted medication")
	})

	t.Run("supply of ten is exhausted by the tenth dose", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		med := regularMedication(uuid.New(), 10, 1, 8)
		store.addMedication(med)
		store.addSchedule(model.Schedule{ID: uuid.New(), MedicationID: med.ID, DueAt: baseTime, Status: model.ScheduleStatusScheduled})

		at := baseTime
		for i := 0; i < 10; i++ {
			_, err := svc.Fulfill(context.Background(), med.ID, at)
			require.NoError(t, err)
			at = at.Add(8 * time.Hour)
		}

		updated := store.medications[med.ID]
		assert.Equal(t, 0, updated.TotalLeft)
		assert.Equal(t, model.MedicationStatusExhausted, updated.Status)
		assert.Empty(t, store.openEntries(med.ID), "no eleventh entry exists")

		_, err := svc.Fulfill(context.Background(), med.ID, at)
		assert.True(t, errors.IsInvalidTransition(err) || errors.IsExhausted(err))
	})

	t.Run("exhausted medication rejects further doses", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		med := regularMedication(uuid.New(), 0, 1, 8)
		med.Status = model.MedicationStatusExhausted
		store.addMedication(med)
		store.addSchedule(model.Schedule{ID: uuid.New(), MedicationID: med.ID, DueAt: baseTime, Status: model.ScheduleStatusScheduled})

		_, err := svc.Fulfill(context.Background(), med.ID, baseTime)
		assert.True(t, errors.IsExhausted(err))
	})

	t.Run("no open entry rejects the transition", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		med := regularMedication(uuid.New(), 20, 1, 8)
		store.addMedication(med)

		_, err := svc.Fulfill(context.Background(), med.ID, baseTime)
		assert.True(t, errors.IsInvalidTransition(err))
	})

	t.Run("successor of regular dose pushed past priority lead time", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		userID := uuid.New()
		priority := priorityMedication(userID, 24, 90)
		priorityTaken := baseTime
		priority.LastIntakeTime = &priorityTaken
		store.addMedication(priority)

		med := regularMedication(userID, 20, 1, 1)
		store.addMedication(med)
		store.addSchedule(model.Schedule{ID: uuid.New(), MedicationID: med.ID, DueAt: baseTime, Status: model.ScheduleStatusScheduled})

		_, err := svc.Fulfill(context.Background(), med.ID, baseTime)
		require.NoError(t, err)

		// Candidate due baseTime+1h falls inside the 90-minute lead time,
		// so the successor lands at the gate boundary instead.
		open := store.openEntries(med.ID)
		require.Len(t, open, 1)
		assert.Equal(t, baseTime.Add(90*time.Minute), open[0].DueAt)
	})

	t.Run("priority successor is never gated", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		userID := uuid.New()
		med := priorityMedication(userID, 1, 120)
		store.addMedication(med)
		store.addSchedule(model.Schedule{ID: uuid.New(), MedicationID: med.ID, DueAt: baseTime, Status: model.ScheduleStatusScheduled})

		_, err := svc.Fulfill(context.Background(), med.ID, baseTime)
		require.NoError(t, err)

		open := store.openEntries(med.ID)
		require.Len(t, open, 1)
		assert.Equal(t, baseTime.Add(time.Hour), open[0].DueAt)
	})
}

func TestMarkMissed(t *testing.T) {
	baseTime := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	setup := func(cfg Config) (*fakeStore, *Service, model.Medication, model.Schedule) {
		store := newFakeStore()
		svc := NewService(store, store, cfg)
		med := regularMedication(uuid.New(), 20, 1, 8)
		store.addMedication(med)
		entry := model.Schedule{ID: uuid.New(), MedicationID: med.ID, DueAt: baseTime, Status: model.ScheduleStatusScheduled}
		store.addSchedule(entry)
		return store, svc, med, entry
	}

	t.Run("overdue entry becomes missed with audit record", func(t *testing.T) {
		store, svc, med, entry := setup(DefaultConfig())

		now := baseTime.Add(90 * time.Minute)
		missed, err := svc.MarkMissed(context.Background(), entry.ID, now)
		require.NoError(t, err)
		assert.True(t, missed)

		resolved := store.schedules[entry.ID]
		assert.Equal(t, model.ScheduleStatusMissed, resolved.Status)

		updated := store.medications[med.ID]
		assert.Equal(t, 19, updated.TotalLeft, "default policy consumes the missed dose")
		assert.Nil(t, updated.LastIntakeTime, "a miss never counts as an intake")

		require.Len(t, store.missed, 1)
		assert.Equal(t, entry.ID, store.missed[0].ScheduleID)

		open := store.openEntries(med.ID)
		require.Len(t, open, 1)
		assert.Equal(t, now.Add(8*time.Hour), open[0].DueAt)
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		store, svc, med, entry := setup(DefaultConfig())

		now := baseTime.Add(90 * time.Minute)
		missed, err := svc.MarkMissed(context.Background(), entry.ID, now)
		require.NoError(t, err)
		require.True(t, missed)

		missed, err = svc.MarkMissed(context.Background(), entry.ID, now.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, missed)

		assert.Len(t, store.missed, 1)
		assert.Equal(t, 19, store.medications[med.ID].TotalLeft)
		assert.Len(t, store.openEntries(med.ID), 1)
	})

	t.Run("entry within grace window is skipped", func(t *testing.T) {
		store, svc, med, entry := setup(DefaultConfig())

		missed, err := svc.MarkMissed(context.Background(), entry.ID, baseTime.Add(30*time.Minute))
		require.NoError(t, err)
		assert.False(t, missed)
		assert.Equal(t, model.ScheduleStatusScheduled, store.schedules[entry.ID].Status)
		assert.Equal(t, 20, store.medications[med.ID].TotalLeft)
	})

	t.Run("retain policy leaves supply untouched", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MissedDosePolicy = scheduler.MissedRetainsDose
		store, svc, med, entry := setup(cfg)

		missed, err := svc.MarkMissed(context.Background(), entry.ID, baseTime.Add(2*time.Hour))
		require.NoError(t, err)
		require.True(t, missed)
		assert.Equal(t, 20, store.medications[med.ID].TotalLeft)
		assert.Len(t, store.missed, 1)
	})
}

func TestTerminate(t *testing.T) {
	baseTime := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("stop closes the open entry without successor", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		med := regularMedication(uuid.New(), 20, 1, 8)
		store.addMedication(med)
		entry := model.Schedule{ID: uuid.New(), MedicationID: med.ID, DueAt: baseTime, Status: model.ScheduleStatusScheduled}
		store.addSchedule(entry)

		require.NoError(t, svc.StopMedication(context.Background(), med.ID, baseTime))

		assert.Equal(t, model.MedicationStatusStopped, store.medications[med.ID].Status)
		assert.Equal(t, model.ScheduleStatusStopped, store.schedules[entry.ID].Status)
		assert.Empty(t, store.openEntries(med.ID))
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		med := regularMedication(uuid.New(), 20, 1, 8)
		store.addMedication(med)

		require.NoError(t, svc.StopMedication(context.Background(), med.ID, baseTime))
		require.NoError(t, svc.StopMedication(context.Background(), med.ID, baseTime.Add(time.Hour)))
		assert.Equal(t, model.MedicationStatusStopped, store.medications[med.ID].Status)
	})

	t.Run("soft delete keeps history", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		med := regularMedication(uuid.New(), 20, 1, 8)
		store.addMedication(med)
		entry := model.Schedule{ID: uuid.New(), MedicationID: med.ID, DueAt: baseTime, Status: model.ScheduleStatusScheduled}
		store.addSchedule(entry)

		require.NoError(t, svc.SoftDeleteMedication(context.Background(), med.ID, baseTime))

		assert.Equal(t, model.MedicationStatusDeleted, store.medications[med.ID].Status)
		deleted := store.schedules[entry.ID]
		assert.Equal(t, model.ScheduleStatusDeleted, deleted.Status)
		require.NotNil(t, deleted.DeletedAt)
	})
}

func TestSeedInitial(t *testing.T) {
	baseTime := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("creates the first entry at the start time", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		med := regularMedication(uuid.New(), 20, 1, 8)
		store.addMedication(med)

		var entry *model.Schedule
		err := store.WithTx(context.Background(), func(tx repository.Tx) error {
			var err error
			entry, err = svc.SeedInitial(context.Background(), tx, &med, baseTime)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, baseTime, entry.DueAt)
		assert.Equal(t, model.ScheduleStatusScheduled, entry.Status)
		assert.Len(t, store.openEntries(med.ID), 1)
	})

	t.Run("rejects unusable dosing configuration", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, store, DefaultConfig())

		med := regularMedication(uuid.New(), 20, 1, 8)
		med.TimeIntervalHours = nil
		store.addMedication(med)

		err := store.WithTx(context.Background(), func(tx repository.Tx) error {
			_, err := svc.SeedInitial(context.Background(), tx, &med, baseTime)
			return err
		})
		assert.True(t, errors.IsConfiguration(err))
		assert.Empty(t, store.openEntries(med.ID), "nothing persists on a rejected configuration")
	})
}

func TestFulfillEmitsOutboxEvents(t *testing.T) {
	baseTime := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	store := newFakeStore()
	svc := NewService(store, store, DefaultConfig())

	med := regularMedication(uuid.New(), 20, 1, 8)
	store.addMedication(med)
	store.addSchedule(model.Schedule{ID: uuid.New(), MedicationID: med.ID, DueAt: baseTime, Status: model.ScheduleStatusScheduled})

	_, err := svc.Fulfill(context.Background(), med.ID, baseTime)
	require.NoError(t, err)

	var types []string
	for _, event := range store.outbox {
		types = append(types, event.EventType)
	}
	assert.Equal(t, []string{model.EventScheduleFulfilled, model.EventScheduleCreated}, types)
}
