package worker

import (
	"context"
	"encoding/json"

	"github.com/mindease/mindease-api/internal/email"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/pkg/messaging"
	"github.com/rs/zerolog"
)

// BookingTopics matches every booking domain event.
const BookingTopics = "booking.*"

// EmailRelay turns published booking events into emails.
type EmailRelay struct {
	broker messaging.Broker
	sender email.Sender
	logger zerolog.Logger
}

func NewEmailRelay(broker messaging.Broker, sender email.Sender, logger zerolog.Logger) *EmailRelay {
	return &EmailRelay{
		broker: broker,
		sender: sender,
		logger: logger.With().Str("component", "email-relay").Logger(),
	}
}

// Run consumes until ctx is done.
func (r *EmailRelay) Run(ctx context.Context) error {
	return messaging.Consume(ctx, r.broker, BookingTopics, r.Handle, r.logger)
}

// Handle sends the email for one event. Undecodable or irrelevant events are
// dropped; only delivery failures are returned for redelivery.
func (r *EmailRelay) Handle(ctx context.Context, payload []byte) error {
	var evt model.BookingEventPayload
	if err := json.Unmarshal(payload, &evt); err != nil {
		r.logger.Warn().Err(err).Msg("Dropping undecodable booking event")
		return nil
	}

	var (
		msg email.Message
		ok  bool
	)
	switch evt.Type {
	case model.EventBookingCreated:
		msg, ok = email.BookingCreated(&evt)
	case model.EventBookingStatusChanged:
		msg, ok = email.BookingStatusChanged(&evt)
	default:
		return nil
	}
	if !ok {
		r.logger.Debug().Str("event_type", evt.Type).Msg("No recipient for booking event")
		return nil
	}

	if err := r.sender.Send(ctx, msg); err != nil {
		return err
	}
	r.logger.Info().Str("event_type", evt.Type).Str("booking_id", evt.Booking.ID).Msg("Booking email sent")
	return nil
}
