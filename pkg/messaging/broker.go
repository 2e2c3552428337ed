package messaging

import (
	"context"
	"errors"
	"strings"
)

var ErrClosed = errors.New("broker closed")

// Broker moves opaque payloads between processes. Topics are dot-separated
// (booking.created); Subscribe accepts "*" as a single-segment wildcard.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	Close() error
}

// Handler processes one delivered payload.
type Handler func(ctx context.Context, payload []byte) error

// HandlerSubscriber is implemented by brokers that can acknowledge deliveries,
// redelivering a payload when the handler fails.
type HandlerSubscriber interface {
	SubscribeHandler(ctx context.Context, topic string, handler Handler) error
}

// Pinger is implemented by brokers that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MatchTopic reports whether topic matches pattern, where "*" in pattern
// matches exactly one segment.
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	ps := strings.Split(pattern, ".")
	ts := strings.Split(topic, ".")
	if len(ps) != len(ts) {
		return false
	}
	for i := range ps {
		if ps[i] != "*" && ps[i] != ts[i] {
			return false
		}
	}
	return true
}
