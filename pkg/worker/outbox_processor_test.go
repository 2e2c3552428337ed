package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository/memory"
	"github.com/mindease/mindease-api/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	mu        sync.Mutex
	failUntil int
	calls     int
	published map[string][][]byte
}

func (b *fakeBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls <= b.failUntil {
		return errors.New("broker unavailable")
	}
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[topic] = append(b.published[topic], payload)
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBroker) Close() error { return nil }

func seedEvent(t *testing.T, store *memory.OutboxStore, id string) {
	t.Helper()
	payload, err := json.Marshal(model.BookingEventPayload{Booking: &model.Booking{ID: "b-" + id}})
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), &model.OutboxEvent{
		ID:        id,
		EventType: model.EventBookingCreated,
		Payload:   payload,
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	}))
}

func newProcessor(t *testing.T, store *memory.OutboxStore, broker *fakeBroker, maxRetries int) (*OutboxProcessor, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	p, err := NewOutboxProcessor(store, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 1,
		RetryDelay:    0,
		MaxRetries:    maxRetries,
	}, zerolog.Nop(), m)
	require.NoError(t, err)
	return p, m
}

func TestProcessOncePublishesAndMarksProcessed(t *testing.T) {
	store := memory.NewOutboxStore()
	seedEvent(t, store, "e1")
	seedEvent(t, store, "e2")
	broker := &fakeBroker{}
	p, m := newProcessor(t, store, broker, 3)

	n, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, broker.published[model.EventBookingCreated], 2)

	e, ok := store.Get("e1")
	require.True(t, ok)
	assert.Equal(t, model.OutboxStatusProcessed, e.Status)
	assert.NotNil(t, e.ProcessedAt)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OutboxEventsProcessed))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.OutboxQueueSize))
}

func TestFailedPublishIsRetriedLater(t *testing.T) {
	store := memory.NewOutboxStore()
	seedEvent(t, store, "e1")
	broker := &fakeBroker{failUntil: 1}
	p, m := newProcessor(t, store, broker, 3)

	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	e, _ := store.Get("e1")
	assert.Equal(t, model.OutboxStatusPending, e.Status)
	assert.Equal(t, 1, e.RetryCount)
	require.NotNil(t, e.RetryAt)
	assert.Equal(t, now.Add(time.Second), *e.RetryAt)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventBookingCreated)))

	// Not due yet.
	n, err = p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	now = now.Add(2 * time.Second)
	n, err = p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, _ = store.Get("e1")
	assert.Equal(t, model.OutboxStatusProcessed, e.Status)
}

func TestEventFailsPermanentlyAfterMaxRetries(t *testing.T) {
	store := memory.NewOutboxStore()
	seedEvent(t, store, "e1")
	broker := &fakeBroker{failUntil: 100}
	p, m := newProcessor(t, store, broker, 2)

	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	_, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = p.ProcessOnce(context.Background())
	require.NoError(t, err)

	e, _ := store.Get("e1")
	assert.Equal(t, model.OutboxStatusFailed, e.Status)
	assert.Equal(t, 2, e.RetryCount)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsFailed))
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	_, err := NewOutboxProcessor(memory.NewOutboxStore(), &fakeBroker{}, OutboxProcessorConfig{}, zerolog.Nop(),
		metrics.NewMetrics("test", prometheus.NewRegistry()))
	assert.Error(t, err)
}

func TestBackoffIsCapped(t *testing.T) {
	assert.Equal(t, time.Second, backoff(time.Second, 0))
	assert.Equal(t, 4*time.Second, backoff(time.Second, 2))
	assert.Equal(t, 64*time.Second, backoff(time.Second, 20))
}
