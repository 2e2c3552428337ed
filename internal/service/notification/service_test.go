package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	userID, except, event string
	data                  any
}

type recordingEmitter struct {
	mu   sync.Mutex
	sent []emitted
	err  error
}

func (e *recordingEmitter) EmitTo(ctx context.Context, userID, event string, data any) error {
	return e.EmitToExcept(ctx, userID, "", event, data)
}

func (e *recordingEmitter) EmitToExcept(_ context.Context, userID, except, event string, data any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, emitted{userID, except, event, data})
	return e.err
}

func TestBookingCreatedGoesToTherapist(t *testing.T) {
	em := &recordingEmitter{}
	svc := NewService(em, zerolog.Nop())
	b := &model.Booking{ID: "b1", PatientID: "p1", TherapistID: "t1", Status: model.BookingStatusPending}

	svc.BookingCreated(context.Background(), b, "Pat Doe")

	require.Len(t, em.sent, 1)
	assert.Equal(t, "t1", em.sent[0].userID)
	assert.Equal(t, model.EventNewBooking, em.sent[0].event)

	raw, err := json.Marshal(em.sent[0].data)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "booking", body["type"])
	assert.Equal(t, "You have a new booking!", body["message"])
	assert.Equal(t, "Pat Doe", body["patientName"])
	assert.Equal(t, "b1", body["booking"].(map[string]any)["id"])
}

func TestBookingUpdatedGoesToPatient(t *testing.T) {
	em := &recordingEmitter{}
	svc := NewService(em, zerolog.Nop())

	svc.BookingUpdated(context.Background(), &model.Booking{ID: "b1", PatientID: "p1", TherapistID: "t1", Status: model.BookingStatusConfirmed})

	require.Len(t, em.sent, 1)
	assert.Equal(t, "p1", em.sent[0].userID)
	assert.Equal(t, model.EventBookingUpdated, em.sent[0].event)
	notice := em.sent[0].data.(model.BookingNotice)
	assert.Equal(t, "booking_status", notice.Type)
	assert.Equal(t, "Your booking is now confirmed", notice.Message)
}

func TestNewMessageGoesToRecipientOnly(t *testing.T) {
	em := &recordingEmitter{}
	svc := NewService(em, zerolog.Nop())

	svc.NewMessage(context.Background(), &model.ChatMessage{ID: "m1", SenderID: "p1", RecipientID: "t1"})

	require.Len(t, em.sent, 1)
	assert.Equal(t, emitted{"t1", "", model.EventNewMessage, em.sent[0].data}, em.sent[0])
}

func TestTypingAddsSender(t *testing.T) {
	em := &recordingEmitter{}
	svc := NewService(em, zerolog.Nop())

	svc.Typing(context.Background(), "p1", "t1", map[string]any{"recipientId": "t1"}, true)
	svc.Typing(context.Background(), "p1", "t1", nil, false)

	require.Len(t, em.sent, 2)
	assert.Equal(t, model.EventUserTyping, em.sent[0].event)
	assert.Equal(t, "p1", em.sent[0].data.(map[string]any)["senderId"])
	assert.Equal(t, model.EventUserStoppedTyping, em.sent[1].event)
}

func TestEmitterFailureIsSwallowed(t *testing.T) {
	em := &recordingEmitter{err: errors.New("redis down")}
	svc := NewService(em, zerolog.Nop())

	assert.NotPanics(t, func() {
		svc.BookingUpdated(context.Background(), &model.Booking{PatientID: "p1", Status: model.BookingStatusCancelled})
	})
}
