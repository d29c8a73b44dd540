package medication

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/internal/repository"
	scheduleService "github.com/medtime/medtime-api/internal/service/schedule"
	"github.com/medtime/medtime-api/pkg/errors"
	"github.com/medtime/medtime-api/pkg/metrics"
)

const (
	stateCacheTTL     = 30 * time.Second
	stateCacheCleanup = 5 * time.Minute
)

// Service owns medication creation and the queryable per-medication state.
// All schedule transitions are delegated to the schedule service; this
// service only adds creation validation, state reads and cache
// invalidation on the write paths.
type Service struct {
	runner      repository.TxRunner
	repo        repository.MedicationRepository
	missedRepo  repository.MissedDoseRepository
	scheduleSvc *scheduleService.Service
	metrics     *metrics.Metrics
	stateCache  *gocache.Cache
}

func NewService(runner repository.TxRunner, repo repository.MedicationRepository, missedRepo repository.MissedDoseRepository, scheduleSvc *scheduleService.Service, m *metrics.Metrics) *Service {
	return &Service{
		runner:      runner,
		repo:        repo,
		missedRepo:  missedRepo,
		scheduleSvc: scheduleSvc,
		metrics:     m,
		stateCache:  gocache.New(stateCacheTTL, stateCacheCleanup),
	}
}

// Create validates the dosing configuration, persists the medication and
// seeds its first schedule entry in one transaction.
func (s *Service) Create(ctx context.Context, req *model.CreateMedicationRequest) (*model.Medication, error) {
	if err := validateConfiguration(req); err != nil {
		return nil, err
	}

	now := time.Now()
	startTime := now
	if req.StartTime != nil {
		startTime = *req.StartTime
	}

	med := &model.Medication{
		ID:                  uuid.New(),
		UserID:              req.UserID,
		DrugName:            req.DrugName,
		TotalQuantity:       req.TotalQuantity,
		TotalLeft:           req.TotalQuantity,
		DosagePerIntake:     req.DosagePerIntake,
		FrequencyPerDay:     req.FrequencyPerDay,
		TimeIntervalHours:   req.TimeIntervalHours,
		PriorityFlag:        req.PriorityFlag,
		PriorityLeadTimeMin: req.PriorityLeadTimeMin,
		Status:              model.MedicationStatusActive,
	}

	err := s.runner.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateMedication(ctx, med); err != nil {
			return err
		}
		if _, err := s.scheduleSvc.SeedInitial(ctx, tx, med, startTime); err != nil {
			return err
		}
		payload, err := json.Marshal(med)
		if err != nil {
			return fmt.Errorf("failed to marshal medication: %w", err)
		}
		return tx.CreateOutboxEvent(ctx, &model.OutboxEvent{
			EventType: model.EventMedicationCreated,
			Payload:   payload,
		})
	})
	if err != nil {
		return nil, err
	}
	return med, nil
}

// TakeDose routes a dose-taken signal to the schedule state machine and
// drops the cached state of the medication.
func (s *Service) TakeDose(ctx context.Context, medicationID uuid.UUID, takenAt time.Time) (*model.Schedule, error) {
	entry, err := s.scheduleSvc.Fulfill(ctx, medicationID, takenAt)
	if err != nil {
		return nil, err
	}
	s.metrics.DosesTaken.Inc()
	s.stateCache.Delete(medicationID.String())
	return entry, nil
}

// Stop terminates the medication and its open schedule entry.
func (s *Service) Stop(ctx context.Context, medicationID uuid.UUID) error {
	if err := s.scheduleSvc.StopMedication(ctx, medicationID, time.Now()); err != nil {
		return err
	}
	s.stateCache.Delete(medicationID.String())
	return nil
}

// Delete soft-deletes the medication; history stays queryable.
func (s *Service) Delete(ctx context.Context, medicationID uuid.UUID) error {
	if err := s.scheduleSvc.SoftDeleteMedication(ctx, medicationID, time.Now()); err != nil {
		return err
	}
	s.stateCache.Delete(medicationID.String())
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*model.Medication, error) {
	return s.repo.List(ctx, userID)
}

// GetState returns the queryable view of one medication: remaining supply,
// status and the next due time. Cached briefly; every write path
// invalidates.
func (s *Service) GetState(ctx context.Context, id uuid.UUID) (*model.MedicationState, error) {
	if cached, ok := s.stateCache.Get(id.String()); ok {
		return cached.(*model.MedicationState), nil
	}

	med, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	state := &model.MedicationState{
		MedicationID: med.ID,
		TotalLeft:    med.TotalLeft,
		Status:       med.Status,
	}

	open, err := s.scheduleSvc.OpenEntry(ctx, id)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if open != nil {
		state.NextDueAt = &open.DueAt
	}

	s.stateCache.Set(id.String(), state, gocache.DefaultExpiration)
	return state, nil
}

// ListMissedDoses returns the append-only miss audit trail of a medication.
func (s *Service) ListMissedDoses(ctx context.Context, medicationID uuid.UUID) ([]*model.MissedDoseRecord, error) {
	return s.missedRepo.ListByMedication(ctx, medicationID)
}

func validateConfiguration(req *model.CreateMedicationRequest) error {
	if req.TotalQuantity <= 0 {
		return errors.Configuration("total quantity must be a positive integer")
	}
	if req.DosagePerIntake <= 0 {
		return errors.Configuration("dosage per intake must be a positive integer")
	}
	if req.PriorityFlag {
		if req.PriorityLeadTimeMin == nil || *req.PriorityLeadTimeMin <= 0 {
			return errors.Configuration("priority lead time must be set for priority medications")
		}
		if req.TimeIntervalHours == nil || *req.TimeIntervalHours <= 0 {
			return errors.Configuration("time interval must be set for priority medications")
		}
		return nil
	}
	hasInterval := req.TimeIntervalHours != nil && *req.TimeIntervalHours > 0
	hasFrequency := req.FrequencyPerDay != nil && *req.FrequencyPerDay > 0
	if !hasInterval && !hasFrequency {
		return errors.Configuration("either time interval or frequency per day must be set for regular medications")
	}
	return nil
}
