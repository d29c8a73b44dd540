package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/medtime/medtime-api/internal/config"
	"github.com/medtime/medtime-api/internal/handler"
	medicationHandler "github.com/medtime/medtime-api/internal/handler/medication"
	scheduleHandler "github.com/medtime/medtime-api/internal/handler/schedule"
	sweepHandler "github.com/medtime/medtime-api/internal/handler/sweep"
	"github.com/medtime/medtime-api/internal/middleware"
	"github.com/medtime/medtime-api/internal/repository/postgres"
	"github.com/medtime/medtime-api/internal/router"
	"github.com/medtime/medtime-api/internal/scheduler"
	medicationService "github.com/medtime/medtime-api/internal/service/medication"
	scheduleService "github.com/medtime/medtime-api/internal/service/schedule"
	sweepService "github.com/medtime/medtime-api/internal/service/sweep"
	"github.com/medtime/medtime-api/pkg/logger"
	"github.com/medtime/medtime-api/pkg/messaging/redis"
	"github.com/medtime/medtime-api/pkg/metrics"
	"github.com/medtime/medtime-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := &logger.Logger{ZL: log.Logger}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	baseRepo := postgres.NewBaseRepository(db)
	medicationRepo := postgres.NewMedicationRepository(db)
	scheduleRepo := postgres.NewScheduleRepository(db)
	missedDoseRepo := postgres.NewMissedDoseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Services
	m := metrics.New("medtime_api")
	scheduleSvc := scheduleService.NewService(baseRepo, scheduleRepo, scheduleService.Config{
		GraceWindow:      cfg.Sweep.GraceWindow,
		MissedDosePolicy: scheduler.ParseMissedDosePolicy(cfg.Sweep.MissedDosePolicy),
	})
	medicationSvc := medicationService.NewService(baseRepo, medicationRepo, missedDoseRepo, scheduleSvc, m)
	sweepSvc := sweepService.NewService(scheduleRepo, scheduleSvc, m, log.Logger)
	sweepRunner := worker.NewSweepRunner(sweepSvc, cfg.Sweep.Interval, appLogger, m)

	// Handlers
	h := handler.NewHandler(db)
	medicationH := medicationHandler.NewHandler(medicationSvc)
	scheduleH := scheduleHandler.NewHandler(scheduleSvc)
	sweepH := sweepHandler.NewHandler(sweepRunner)

	r := router.NewRouter(medicationH, scheduleH, sweepH, h, router.RouterConfig{
		RateLimit:     rate.Limit(cfg.Rate.RPS),
		RateBurst:     cfg.Rate.Burst,
		CORSConfig:    middleware.DefaultCORSConfig(),
		MetricsPrefix: "medtime_http",
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis message broker for the outbox feed
	broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	outboxProcessor := worker.NewOutboxProcessor(
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
	go outboxProcessor.Start(ctx)
	go sweepRunner.Start(ctx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
