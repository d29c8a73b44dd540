package reminder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medtime/medtime-api/internal/email"
	"github.com/medtime/medtime-api/internal/model"
	"github.com/medtime/medtime-api/pkg/messaging"
)

// Directory resolves a user to a notification address. User management
// lives outside this service; callers plug in whatever account system they
// run.
type Directory interface {
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// StaticDirectory routes every reminder to one address. Useful for
// single-tenant deployments and testing.
type StaticDirectory struct {
	Address string
}

func (d StaticDirectory) EmailFor(_ context.Context, _ uuid.UUID) (string, error) {
	return d.Address, nil
}

// Service consumes the schedule transition feed and sends reminder
// notifications. Dispatch is fire-and-forget with respect to the dosing
// engine: by the time an event reaches this service its transition has
// already committed.
type Service struct {
	broker    messaging.Broker
	emailSvc  email.Service
	directory Directory
	logger    zerolog.Logger
}

func NewService(broker messaging.Broker, emailSvc email.Service, directory Directory, logger zerolog.Logger) *Service {
	return &Service{
		broker:    broker,
		emailSvc:  emailSvc,
		directory: directory,
		logger:    logger,
	}
}

// Start blocks consuming the feed until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	msgs, err := s.broker.Subscribe(ctx, messaging.EventsChannel)
	if err != nil {
		return err
	}

	s.logger.Info().Msg("reminder dispatcher started")

	for msg := range msgs {
		s.handle(ctx, msg)
	}
	return nil
}

func (s *Service) handle(ctx context.Context, raw []byte) {
	var msg struct {
		Type    string                     `json:"type"`
		Payload model.ScheduleEventPayload `json:"payload"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Error().Err(err).Msg("failed to decode schedule event")
		return
	}

	to, err := s.directory.EmailFor(ctx, msg.Payload.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", msg.Payload.UserID.String()).Msg("failed to resolve recipient")
		return
	}

	switch msg.Type {
	case model.EventScheduleCreated:
		err = s.emailSvc.SendReminder(ctx, to, msg.Payload.DrugName, msg.Payload.DueAt.Format(time.RFC1123))
	case model.EventScheduleMissed:
		content := "You missed a dose of " + msg.Payload.DrugName + " that was due at " +
			msg.Payload.DueAt.Format(time.RFC1123) + "."
		err = s.emailSvc.SendCustom(ctx, to, "Missed Dose", content)
	default:
		// fulfilled and lifecycle events need no notification
		return
	}

	if err != nil {
		s.logger.Error().Err(err).
			Str("event_type", msg.Type).
			Str("schedule_id", msg.Payload.ScheduleID.String()).
			Msg("failed to send reminder")
	}
}
