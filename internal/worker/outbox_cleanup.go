package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/medtime/medtime-api/internal/repository"
	"github.com/medtime/medtime-api/pkg/logger"
)

// OutboxCleanupWorker removes processed outbox events past their retention
// window so the table stays small.
type OutboxCleanupWorker struct {
	repo            repository.OutboxRepository
	retentionDays   int
	cleanupInterval time.Duration
	logger          *logger.Logger
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retentionDays int, cleanupInterval time.Duration, logger *logger.Logger) *OutboxCleanupWorker {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	return &OutboxCleanupWorker{
		repo:            repo,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		logger:          logger,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.cleanup(ctx); err != nil {
				w.logger.Error(err, "Failed to clean up processed outbox events")
			}
		}
	}
}

func (w *OutboxCleanupWorker) cleanup(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete processed outbox events: %w", err)
	}

	if rows > 0 {
		w.logger.WithFields(map[string]interface{}{
			"deleted": rows,
			"cutoff":  cutoff,
		}).Info("Cleaned up processed outbox events")
	}
	return nil
}
