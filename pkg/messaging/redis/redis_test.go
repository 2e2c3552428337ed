package redis

import (
	"context"
	"testing"
	"time"

	"github.com/mindease/mindease-api/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	_, err := NewRedisBroker(context.Background(), Config{URL: "not a url"}, zerolog.Nop(), nil)
	assert.ErrorContains(t, err, "failed to parse Redis URL")
}

func TestPublishTripsBreakerWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	b := newBroker(client, zerolog.Nop(), m)
	defer b.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.Error(t, b.Publish(ctx, "booking.created", []byte("{}")))
	}

	err := b.Publish(ctx, "booking.created", []byte("{}"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, float64(6), testutil.ToFloat64(m.RedisOperations.WithLabelValues("publish", "error")))
}
