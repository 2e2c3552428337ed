package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mindease/mindease-api/pkg/messaging"
	"github.com/rs/zerolog"
)

// Emitter delivers events to user channels. Delivery is best effort.
type Emitter interface {
	EmitTo(ctx context.Context, userID, event string, data any) error
	EmitToExcept(ctx context.Context, userID, exceptConnID, event string, data any) error
}

// LocalEmitter delivers into this process's hub only.
type LocalEmitter struct {
	hub *Hub
}

func NewLocalEmitter(hub *Hub) *LocalEmitter {
	return &LocalEmitter{hub: hub}
}

func (e *LocalEmitter) EmitTo(_ context.Context, userID, event string, data any) error {
	_, err := e.hub.EmitTo(userID, event, data)
	return err
}

func (e *LocalEmitter) EmitToExcept(_ context.Context, userID, exceptConnID, event string, data any) error {
	_, err := e.hub.EmitToExcept(userID, exceptConnID, event, data)
	return err
}

type envelope struct {
	Origin       string          `json:"origin"`
	UserID       string          `json:"userId"`
	ExceptConnID string          `json:"exceptConnId,omitempty"`
	Event        string          `json:"event"`
	Frame        json.RawMessage `json:"frame"`
}

// Relay delivers locally and publishes every event on a broker channel so
// other instances can deliver to their own connections.
type Relay struct {
	hub     *Hub
	broker  messaging.Broker
	channel string
	origin  string
	logger  zerolog.Logger
}

func NewRelay(hub *Hub, broker messaging.Broker, channel string, logger zerolog.Logger) *Relay {
	return &Relay{
		hub:     hub,
		broker:  broker,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger.With().Str("component", "realtime-relay").Logger(),
	}
}

func (r *Relay) EmitTo(ctx context.Context, userID, event string, data any) error {
	return r.EmitToExcept(ctx, userID, "", event, data)
}

func (r *Relay) EmitToExcept(ctx context.Context, userID, exceptConnID, event string, data any) error {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		return err
	}
	r.hub.deliver(userID, exceptConnID, event, frame)

	payload, err := json.Marshal(envelope{
		Origin:       r.origin,
		UserID:       userID,
		ExceptConnID: exceptConnID,
		Event:        event,
		Frame:        frame,
	})
	if err != nil {
		return fmt.Errorf("failed to encode relay envelope: %w", err)
	}
	if err := r.broker.Publish(ctx, r.channel, payload); err != nil {
		return fmt.Errorf("failed to relay %s: %w", event, err)
	}
	return nil
}

// Run delivers events published by other instances until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().Str("channel", r.channel).Msg("Starting realtime relay")
	return messaging.Consume(ctx, r.broker, r.channel, r.handle, r.logger)
}

func (r *Relay) handle(_ context.Context, payload []byte) error {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("failed to decode relay envelope: %w", err)
	}
	if env.Origin == r.origin || env.UserID == "" {
		return nil
	}
	r.hub.deliver(env.UserID, env.ExceptConnID, env.Event, env.Frame)
	return nil
}
