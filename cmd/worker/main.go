package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/medtime/medtime-api/internal/config"
	"github.com/medtime/medtime-api/internal/email"
	"github.com/medtime/medtime-api/internal/repository/postgres"
	"github.com/medtime/medtime-api/internal/scheduler"
	reminderService "github.com/medtime/medtime-api/internal/service/reminder"
	scheduleService "github.com/medtime/medtime-api/internal/service/schedule"
	sweepService "github.com/medtime/medtime-api/internal/service/sweep"
	internalWorker "github.com/medtime/medtime-api/internal/worker"
	"github.com/medtime/medtime-api/pkg/logger"
	"github.com/medtime/medtime-api/pkg/messaging/redis"
	"github.com/medtime/medtime-api/pkg/metrics"
	"github.com/medtime/medtime-api/pkg/worker"
)

func setupHealthCheck(appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := &logger.Logger{ZL: log.Logger}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis broker")
	}
	defer broker.Close()

	// Repositories
	baseRepo := postgres.NewBaseRepository(db)
	scheduleRepo := postgres.NewScheduleRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.New("medtime_worker")

	scheduleSvc := scheduleService.NewService(baseRepo, scheduleRepo, scheduleService.Config{
		GraceWindow:      cfg.Sweep.GraceWindow,
		MissedDosePolicy: scheduler.ParseMissedDosePolicy(cfg.Sweep.MissedDosePolicy),
	})
	sweepSvc := sweepService.NewService(scheduleRepo, scheduleSvc, m, log.Logger)
	sweepRunner := worker.NewSweepRunner(sweepSvc, cfg.Sweep.Interval, appLogger, m)

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
		},
		appLogger,
		m,
	)

	cleanup := internalWorker.NewOutboxCleanupWorker(
		outboxRepo,
		cfg.Outbox.RetentionDays,
		cfg.Outbox.CleanupInterval,
		appLogger,
	)

	emailSvc := email.NewService(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
	reminder := reminderService.NewService(
		broker,
		emailSvc,
		reminderService.StaticDirectory{Address: cfg.Email.DefaultRecipient},
		log.Logger,
	)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	go sweepRunner.Start(ctx)
	go cleanup.Start(ctx)
	go func() {
		if err := reminder.Start(ctx); err != nil {
			appLogger.Error(err, "Reminder dispatcher stopped")
		}
	}()

	processor.Start(ctx)
}
