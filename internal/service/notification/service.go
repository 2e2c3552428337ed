package notification

import (
	"context"
	"fmt"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/realtime"
	"github.com/rs/zerolog"
)

const (
	noticeTypeBooking       = "booking"
	noticeTypeBookingStatus = "booking_status"
)

// Service fans domain changes out to user channels. Every method is best
// effort: failures are logged and never reach the caller.
type Service struct {
	emitter realtime.Emitter
	logger  zerolog.Logger
}

func NewService(emitter realtime.Emitter, logger zerolog.Logger) *Service {
	return &Service{
		emitter: emitter,
		logger:  logger.With().Str("component", "notification").Logger(),
	}
}

// BookingCreated tells the therapist about a new request.
func (s *Service) BookingCreated(ctx context.Context, booking *model.Booking, patientName string) {
	s.emit(ctx, booking.TherapistID, model.EventNewBooking, model.BookingNotice{
		Type:        noticeTypeBooking,
		Message:     "You have a new booking!",
		Booking:     booking,
		PatientName: patientName,
	})
}

// BookingUpdated tells the patient about a status change.
func (s *Service) BookingUpdated(ctx context.Context, booking *model.Booking) {
	s.emit(ctx, booking.PatientID, model.EventBookingUpdated, model.BookingNotice{
		Type:    noticeTypeBookingStatus,
		Message: fmt.Sprintf("Your booking is now %s", booking.Status),
		Booking: booking,
	})
}

// NewMessage routes a persisted chat message to the recipient's channel only.
func (s *Service) NewMessage(ctx context.Context, msg *model.ChatMessage) {
	s.emit(ctx, msg.RecipientID, model.EventNewMessage, msg)
}

// Typing forwards a typing indicator with the sender stamped on it.
func (s *Service) Typing(ctx context.Context, senderID, recipientID string, payload map[string]any, started bool) {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["senderId"] = senderID

	event := model.EventUserStoppedTyping
	if started {
		event = model.EventUserTyping
	}
	s.emit(ctx, recipientID, event, out)
}

func (s *Service) emit(ctx context.Context, userID, event string, data any) {
	if s.emitter == nil || userID == "" {
		return
	}
	if err := s.emitter.EmitTo(ctx, userID, event, data); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("event", event).Msg("Failed to deliver notification")
	}
}
