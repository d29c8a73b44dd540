package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/internal/repository"
	"github.com/medtime/medtime-api/pkg/errors"
)

// pqLockNotAvailable is raised by FOR UPDATE NOWAIT when another
// transaction holds the row.
const pqLockNotAvailable = "55P03"

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) *BaseRepository {
	return &BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(repository.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txExecutor{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// WithMedicationLock runs fn holding an exclusive row lock on one
// medication. The lock is taken with NOWAIT: a row already locked by a
// concurrent dose-taking request or sweep surfaces immediately as a
// retryable conflict instead of queueing.
func (r *BaseRepository) WithMedicationLock(ctx context.Context, medicationID uuid.UUID, fn func(tx repository.Tx, med *model.Medication) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	med, err := lockMedication(ctx, tx, medicationID)
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := fn(&txExecutor{tx: tx}, med); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func lockMedication(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Medication, error) {
	query := `
		SELECT id, user_id, drug_name, total_quantity, total_left,
			   dosage_per_intake, frequency_per_day, time_interval_hours,
			   priority_flag, priority_lead_time_min, last_intake_time,
			   status, created_at, updated_at
		FROM medications
		WHERE id = $1
		FOR UPDATE NOWAIT
	`
	var med model.Medication
	err := tx.GetContext(ctx, &med, query, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("medication", err)
		}
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable {
			return nil, errors.Conflict(err)
		}
		return nil, fmt.Errorf("failed to lock medication: %w", err)
	}
	return &med, nil
}
