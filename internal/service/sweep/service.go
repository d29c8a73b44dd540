package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/medtime/medtime-api/internal/repository"
	scheduleService "github.com/medtime/medtime-api/internal/service/schedule"
	"github.com/medtime/medtime-api/pkg/errors"
	"github.com/medtime/medtime-api/pkg/metrics"
)

// Result summarizes one reconciliation run.
type Result struct {
	Scanned int `json:"scanned"`
	Missed  int `json:"missed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Service is the reconciliation sweep: it scans overdue scheduled entries
// and resolves each one as missed through the schedule state machine. The
// sweep holds no state between runs; running it twice in succession
// produces the same set of missed transitions as running it once, because
// entries already resolved are skipped under the medication lock.
type Service struct {
	scheduleRepo repository.ScheduleRepository
	scheduleSvc  *scheduleService.Service
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

func NewService(scheduleRepo repository.ScheduleRepository, scheduleSvc *scheduleService.Service, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		scheduleRepo: scheduleRepo,
		scheduleSvc:  scheduleSvc,
		metrics:      m,
		logger:       logger,
	}
}

// Run performs one sweep at the given instant. A failure on one entry is
// logged and counted, never fatal to the batch: one bad medication must not
// halt reconciliation for the others.
func (s *Service) Run(ctx context.Context, now time.Time) (*Result, error) {
	cutoff := now.Add(-s.scheduleSvc.GraceWindow())
	ids, err := s.scheduleRepo.ListDueBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &Result{Scanned: len(ids)}
	for _, id := range ids {
		missed, err := s.scheduleSvc.MarkMissed(ctx, id, now)
		switch {
		case err == nil && missed:
			result.Missed++
			s.metrics.MissedDoses.Inc()
		case err == nil:
			// already resolved by a concurrent fulfill or earlier run
			result.Skipped++
		case errors.IsConflict(err):
			// locked by an in-flight dose-taking request; the next run
			// picks it up
			result.Skipped++
			s.logger.Debug().Str("schedule_id", id.String()).Msg("schedule locked, skipping")
		default:
			result.Failed++
			s.metrics.SweepFailures.Inc()
			s.logger.Error().Err(err).Str("schedule_id", id.String()).Msg("failed to mark schedule missed")
		}
	}

	s.metrics.SweepRuns.Inc()
	s.logger.Info().
		Int("scanned", result.Scanned).
		Int("missed", result.Missed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("reconciliation sweep finished")

	return result, nil
}
