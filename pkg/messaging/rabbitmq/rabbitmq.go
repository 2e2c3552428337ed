package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"github.com/mindease/mindease-api/pkg/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type Config struct {
	URL      string
	Exchange string
	// Queue is the durable queue subscriptions bind to.
	Queue    string
	Prefetch int
}

// Broker publishes to a durable topic exchange and consumes from a durable queue
// bound with the subscribed routing key.
type Broker struct {
	cfg    Config
	conn   *amqp.Connection
	mu     sync.Mutex
	pubCh  *amqp.Channel
	logger zerolog.Logger
}

var (
	_ messaging.Broker            = (*Broker)(nil)
	_ messaging.HandlerSubscriber = (*Broker)(nil)
)

func NewBroker(cfg Config, logger zerolog.Logger) (*Broker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 8
	}
	return &Broker{
		cfg:    cfg,
		conn:   conn,
		pubCh:  ch,
		logger: logger.With().Str("component", "rabbitmq-broker").Logger(),
	}, nil
}

func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.pubCh.PublishWithContext(ctx, b.cfg.Exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
}

// Subscribe acknowledges each delivery once it has been handed to the returned channel.
func (b *Broker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	ch, deliveries, err := b.consume(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan []byte, b.cfg.Prefetch)
	go func() {
		defer func() {
			_ = ch.Close()
			close(out)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- d.Body:
					_ = d.Ack(false)
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

// SubscribeHandler blocks until ctx is done. A failed delivery is requeued once
// and dropped if it fails again on redelivery.
func (b *Broker) SubscribeHandler(ctx context.Context, topic string, handler messaging.Handler) error {
	ch, deliveries, err := b.consume(ctx, topic)
	if err != nil {
		return err
	}
	defer ch.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := handler(ctx, d.Body); err != nil {
				b.logger.Error().Err(err).Str("routing_key", d.RoutingKey).Bool("redelivered", d.Redelivered).Msg("Failed to handle delivery")
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (b *Broker) consume(ctx context.Context, topic string) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	q, err := ch.QueueDeclare(b.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, bindingKey(topic), b.cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("bind %s: %w", topic, err)
	}
	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("consume %s: %w", q.Name, err)
	}
	return ch, deliveries, nil
}

func (b *Broker) Ping(_ context.Context) error {
	if b.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubCh != nil {
		_ = b.pubCh.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// bindingKey uses the AMQP catch-all when no topic is given; "*" already
// matches one word in AMQP.
func bindingKey(topic string) string {
	if topic == "" {
		return "#"
	}
	return topic
}
