package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/medtime/medtime-api/internal/repository"
)

type medicationRepository struct {
	db *sqlx.DB
}

type scheduleRepository struct {
	db *sqlx.DB
}

type missedDoseRepository struct {
	db *sqlx.DB
}

func NewMedicationRepository(db *sqlx.DB) repository.MedicationRepository {
	return &medicationRepository{db: db}
}

func NewScheduleRepository(db *sqlx.DB) repository.ScheduleRepository {
	return &scheduleRepository{db: db}
}

func NewMissedDoseRepository(db *sqlx.DB) repository.MissedDoseRepository {
	return &missedDoseRepository{db: db}
}
