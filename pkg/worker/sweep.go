package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medtime/medtime-api/internal/service/sweep"
	"github.com/medtime/medtime-api/pkg/logger"
	"github.com/medtime/medtime-api/pkg/metrics"
)

// SweepRunner drives the reconciliation sweep on a fixed period. It also
// accepts manual triggers for operational use and testing.
type SweepRunner struct {
	svc      *sweep.Service
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
	trigger  chan chan sweepOutcome
}

type sweepOutcome struct {
	result *sweep.Result
	err    error
}

func NewSweepRunner(svc *sweep.Service, interval time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *SweepRunner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweepRunner{
		svc:      svc,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		trigger:  make(chan chan sweepOutcome),
	}
}

func (r *SweepRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Starting reconciliation sweep runner")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Shutting down sweep runner")
			return
		case <-ticker.C:
			r.run(ctx, nil)
		case reply := <-r.trigger:
			r.run(ctx, reply)
		}
	}
}

// TriggerNow requests an immediate sweep and waits for its result. A failed
// sweep surfaces its error to the caller.
func (r *SweepRunner) TriggerNow(ctx context.Context) (*sweep.Result, error) {
	reply := make(chan sweepOutcome, 1)
	select {
	case r.trigger <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-reply:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *SweepRunner) run(ctx context.Context, reply chan sweepOutcome) {
	timer := prometheus.NewTimer(r.metrics.SweepLatency)
	defer timer.ObserveDuration()

	result, err := r.svc.Run(ctx, time.Now())
	if err != nil {
		r.logger.Error(err, "Sweep run failed")
	}
	if reply != nil {
		reply <- sweepOutcome{result: result, err: err}
	}
}
