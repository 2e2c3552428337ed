package messaging

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Consume delivers every payload on topic to handler until ctx is done or the
// subscription ends. Brokers that support acknowledgements get handler errors
// back for redelivery; for the rest a failed payload is logged and skipped.
func Consume(ctx context.Context, broker Broker, topic string, handler Handler, logger zerolog.Logger) error {
	if hs, ok := broker.(HandlerSubscriber); ok {
		return hs.SubscribeHandler(ctx, topic, handler)
	}

	msgs, err := broker.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := handler(ctx, msg); err != nil {
				logger.Error().Err(err).Str("topic", topic).Msg("Failed to handle message")
			}
		}
	}
}
