package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/policy"
	"github.com/mindease/mindease-api/internal/repository"
	"github.com/mindease/mindease-api/internal/service/event"
	apperrors "github.com/mindease/mindease-api/pkg/errors"
	"github.com/mindease/mindease-api/pkg/metrics"
	"github.com/rs/zerolog"
)

// Accepted session date layouts. The second is what an HTML datetime-local
// input submits; it is read as UTC.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// Notifier receives successful booking changes. It must not block.
type Notifier interface {
	BookingCreated(ctx context.Context, booking *model.Booking, patientName string)
	BookingUpdated(ctx context.Context, booking *model.Booking)
}

type Options struct {
	// RejectOverlaps refuses a booking that intersects an active booking of the same therapist.
	RejectOverlaps bool
	// MaxDuration caps the session length in minutes; zero means no cap.
	MaxDuration int
	Now         func() time.Time
}

type Service struct {
	bookings   repository.BookingRepository
	users      repository.UserRepository
	therapists repository.TherapistRepository
	notifier   Notifier
	events     event.Recorder
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	opts       Options
}

// NewService wires the booking core. events and m may be nil.
func NewService(
	bookings repository.BookingRepository,
	users repository.UserRepository,
	therapists repository.TherapistRepository,
	notifier Notifier,
	events event.Recorder,
	m *metrics.Metrics,
	logger zerolog.Logger,
	opts Options,
) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		bookings:   bookings,
		users:      users,
		therapists: therapists,
		notifier:   notifier,
		events:     events,
		metrics:    m,
		logger:     logger.With().Str("component", "booking").Logger(),
		opts:       opts,
	}
}

func (s *Service) Create(ctx context.Context, actor policy.Actor, req *model.CreateBookingRequest) (*model.Booking, error) {
	patientID, err := s.resolvePatient(actor, req.PatientID)
	if err != nil {
		return nil, err
	}

	sessionDate, err := ParseSessionDate(req.SessionDate)
	if err != nil {
		return nil, err
	}
	if !sessionDate.After(s.opts.Now()) {
		return nil, apperrors.Validation("session date must be in the future", nil)
	}
	if req.Duration <= 0 {
		return nil, apperrors.Validation("duration must be a positive number of minutes", nil)
	}
	if s.opts.MaxDuration > 0 && req.Duration > s.opts.MaxDuration {
		return nil, apperrors.Validation(fmt.Sprintf("duration must not exceed %d minutes", s.opts.MaxDuration), nil)
	}

	therapist, err := s.activeUser(ctx, req.TherapistID, model.RoleTherapist, "therapist")
	if err != nil {
		return nil, err
	}
	patient, err := s.activeUser(ctx, patientID, model.RolePatient, "patient")
	if err != nil {
		return nil, err
	}

	rate := 0.0
	profile, err := s.therapists.GetProfile(ctx, therapist.ID)
	switch {
	case err == nil:
		rate = profile.HourlyRate
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to get therapist profile: %w", err)
	}

	now := s.opts.Now().UTC()
	booking := &model.Booking{
		ID:          uuid.NewString(),
		PatientID:   patient.ID,
		TherapistID: therapist.ID,
		SessionDate: sessionDate,
		Duration:    req.Duration,
		Status:      model.BookingStatusPending,
		Notes:       req.Notes,
		Price:       Price(rate, req.Duration),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.insert(ctx, booking); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.BookingsCreated.Inc()
	}
	s.logger.Info().Str("booking_id", booking.ID).Str("patient_id", booking.PatientID).Str("therapist_id", booking.TherapistID).Msg("Booking created")

	s.notifier.BookingCreated(ctx, booking, patient.DisplayName())
	s.record(ctx, model.EventBookingCreated, &model.BookingEventPayload{
		Booking:   booking,
		Patient:   contact(patient),
		Therapist: contact(therapist),
	})

	return booking, nil
}

func (s *Service) insert(ctx context.Context, booking *model.Booking) error {
	create := s.bookings.Create
	if s.opts.RejectOverlaps {
		create = s.bookings.CreateIfFree
	}

	err := create(ctx, booking)
	if errors.Is(err, repository.ErrOverlap) {
		return apperrors.Conflict("therapist already has a booking at that time")
	}
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (s *Service) resolvePatient(actor policy.Actor, requested string) (string, error) {
	patientID := requested
	switch {
	case actor.Role == model.RolePatient && patientID == "":
		patientID = actor.ID
	case actor.IsAdmin() && patientID == "":
		return "", apperrors.Validation("patientId is required when booking on behalf of a patient", nil)
	}

	err := policy.Authorize(actor, policy.ActionCreate, policy.Target{
		Resource: policy.ResourceBooking,
		OwnerID:  patientID,
	})
	if err != nil {
		return "", err
	}
	return patientID, nil
}

func (s *Service) activeUser(ctx context.Context, id string, role model.Role, label string) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(label, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", label, err)
	}
	if user.Role != role || !user.IsActive {
		return nil, apperrors.NotFound(label, nil)
	}
	return user, nil
}

// List returns the actor's bookings ordered by session date. Admins see every booking.
func (s *Service) List(ctx context.Context, actor policy.Actor, filter model.BookingFilter) ([]*model.Booking, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown status %q", filter.Status), nil)
	}
	filter.UserID = actor.ID
	if actor.IsAdmin() {
		filter.UserID = ""
	}
	filter.Now = s.opts.Now().UTC()

	bookings, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, nil
}

func (s *Service) Get(ctx context.Context, actor policy.Actor, id string) (*model.Booking, error) {
	booking, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionRead, bookingTarget(booking)); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *Service) get(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.bookings.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("booking", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateStatus moves a booking along its lifecycle. Only the assigned
// therapist or an admin may do so.
func (s *Service) UpdateStatus(ctx context.Context, actor policy.Actor, id string, req *model.UpdateBookingStatusRequest) (*model.Booking, error) {
	if !req.Status.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown status %q", req.Status), nil)
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ActionUpdateStatus, bookingTarget(current)); err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(req.Status) {
		return nil, apperrors.InvalidTransition(string(current.Status), string(req.Status))
	}

	var reason *string
	if req.Status == model.BookingStatusCancelled {
		reason = req.CancelReason
	}

	updated, err := s.bookings.UpdateStatus(ctx, id, current.Status, req.Status, reason)
	switch {
	case errors.Is(err, repository.ErrStale):
		latest, getErr := s.get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if latest.Status.CanTransitionTo(req.Status) {
			return nil, apperrors.Conflict("booking was modified concurrently, please retry")
		}
		return nil, apperrors.InvalidTransition(string(latest.Status), string(req.Status))
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NotFound("booking", err)
	case err != nil:
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	if s.metrics != nil {
		s.metrics.BookingTransitions.WithLabelValues(string(current.Status), string(updated.Status)).Inc()
	}
	s.logger.Info().Str("booking_id", id).Str("from", string(current.Status)).Str("to", string(updated.Status)).Str("actor_id", actor.ID).Msg("Booking status changed")

	s.notifier.BookingUpdated(ctx, updated)
	s.record(ctx, model.EventBookingStatusChanged, s.statusPayload(ctx, updated, current.Status))

	return updated, nil
}

func (s *Service) statusPayload(ctx context.Context, booking *model.Booking, previous model.BookingStatus) *model.BookingEventPayload {
	payload := &model.BookingEventPayload{Booking: booking, PreviousStatus: previous}
	if s.events == nil {
		return payload
	}
	if patient, err := s.users.Get(ctx, booking.PatientID); err == nil {
		payload.Patient = contact(patient)
	}
	if therapist, err := s.users.Get(ctx, booking.TherapistID); err == nil {
		payload.Therapist = contact(therapist)
	}
	return payload
}

func (s *Service) record(ctx context.Context, eventType string, payload *model.BookingEventPayload) {
	if s.events == nil {
		return
	}
	payload.Type = eventType
	if err := s.events.Record(ctx, eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", payload.Booking.ID).Msg("Failed to record outbox event")
	}
}

func bookingTarget(b *model.Booking) policy.Target {
	return policy.Target{
		Resource:   policy.ResourceBooking,
		OwnerID:    b.PatientID,
		AssigneeID: b.TherapistID,
	}
}

func contact(u *model.User) *model.ContactDetail {
	return &model.ContactDetail{ID: u.ID, Name: u.DisplayName(), Email: u.Email}
}

// ParseSessionDate accepts RFC 3339 or a zone-less local date-time read as UTC.
func ParseSessionDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperrors.Validation(fmt.Sprintf("invalid session date %q", s), nil)
}

// Price is the hourly rate pro-rated to duration minutes, rounded to cents.
func Price(hourlyRate float64, minutes int) float64 {
	return math.Round(hourlyRate*float64(minutes)/60*100) / 100
}
