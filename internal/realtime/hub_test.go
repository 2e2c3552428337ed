package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mindease/mindease-api/pkg/messaging"
	"github.com/mindease/mindease-api/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	limit  int
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id, limit: 100} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) >= c.limit {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) received(t *testing.T) []Frame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, 0, len(c.frames))
	for _, raw := range c.frames {
		var f Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		out = append(out, f)
	}
	return out
}

func newTestHub() (*Hub, *metrics.Metrics) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	return NewHub(zerolog.Nop(), m), m
}

func TestEmitToDeliversOneCopyPerConnection(t *testing.T) {
	hub, m := newTestHub()
	tab1, tab2, other := newFakeConn("c1"), newFakeConn("c2"), newFakeConn("c3")
	hub.Join(tab1, "t1")
	hub.Join(tab2, "t1")
	hub.Join(other, "p1")

	n, err := hub.EmitTo("t1", "newBooking", map[string]string{"type": "booking"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, c := range []*fakeConn{tab1, tab2} {
		frames := c.received(t)
		require.Len(t, frames, 1)
		assert.Equal(t, "newBooking", frames[0].Event)
		assert.JSONEq(t, `{"type":"booking"}`, string(frames[0].Data))
	}
	assert.Empty(t, other.received(t))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RealtimeDelivered.WithLabelValues("newBooking")))
}

func TestEmitToEmptyChannelIsSilent(t *testing.T) {
	hub, _ := newTestHub()
	n, err := hub.EmitTo("nobody", "newBooking", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEmitToExceptSkipsOrigin(t *testing.T) {
	hub, _ := newTestHub()
	a, b := newFakeConn("a"), newFakeConn("b")
	hub.Join(a, "u1")
	hub.Join(b, "u1")

	n, err := hub.EmitToExcept("u1", "a", "newMessage", "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, a.received(t))
	assert.Len(t, b.received(t), 1)
}

func TestRejoinMovesConnection(t *testing.T) {
	hub, m := newTestHub()
	c := newFakeConn("c1")
	hub.Join(c, "u1")
	hub.Join(c, "u2")

	assert.False(t, hub.IsOnline("u1"))
	assert.True(t, hub.IsOnline("u2"))
	assert.Equal(t, 1, hub.Count())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RealtimeConnections))

	channel, ok := hub.ChannelOf(c)
	assert.True(t, ok)
	assert.Equal(t, "u2", channel)
}

func TestLeaveRemovesEmptyChannel(t *testing.T) {
	hub, m := newTestHub()
	a, b := newFakeConn("a"), newFakeConn("b")
	hub.Join(a, "u1")
	hub.Join(b, "u1")

	hub.Leave(a)
	assert.Equal(t, []string{"u1"}, hub.ConnectedUsers())
	hub.Leave(b)
	assert.Empty(t, hub.ConnectedUsers())
	hub.Leave(b)

	assert.Zero(t, hub.Count())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.RealtimeConnections))
}

func TestFullBufferDropsForThatConnectionOnly(t *testing.T) {
	hub, m := newTestHub()
	slow, fast := newFakeConn("slow"), newFakeConn("fast")
	slow.limit = 0
	hub.Join(slow, "u1")
	hub.Join(fast, "u1")

	n, err := hub.EmitTo("u1", "bookingUpdated", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, fast.received(t), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RealtimeDropped))
}

func TestConcurrentJoinEmitLeave(t *testing.T) {
	hub, _ := newTestHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn(fmt.Sprintf("c%d", i))
			hub.Join(c, "u1")
			_, _ = hub.EmitTo("u1", "ping", i)
			hub.Leave(c)
		}(i)
	}
	wg.Wait()
	assert.Zero(t, hub.Count())
}

func TestRelayDeliversAcrossInstances(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := messaging.NewMemoryBroker(16)
	hubA, _ := newTestHub()
	hubB, _ := newTestHub()
	relayA := NewRelay(hubA, broker, "realtime", zerolog.Nop())
	relayB := NewRelay(hubB, broker, "realtime", zerolog.Nop())

	go func() { _ = relayA.Run(ctx) }()
	go func() { _ = relayB.Run(ctx) }()

	local, remote := newFakeConn("local"), newFakeConn("remote")
	hubA.Join(local, "t1")
	hubB.Join(remote, "t1")

	require.Eventually(t, func() bool {
		_ = relayA.EmitTo(ctx, "t1", "newBooking", map[string]string{"id": "b1"})
		return remote.count() > 0
	}, time.Second, 20*time.Millisecond)

	frames := remote.received(t)
	assert.Equal(t, "newBooking", frames[0].Event)
	assert.JSONEq(t, `{"id":"b1"}`, string(frames[0].Data))
	assert.GreaterOrEqual(t, local.count(), remote.count())
}

func TestRelayIgnoresOwnEnvelope(t *testing.T) {
	hub, _ := newTestHub()
	c := newFakeConn("c1")
	hub.Join(c, "u1")
	r := NewRelay(hub, messaging.NewMemoryBroker(1), "realtime", zerolog.Nop())

	frame, err := EncodeFrame("newMessage", "x")
	require.NoError(t, err)
	own, _ := json.Marshal(envelope{Origin: r.origin, UserID: "u1", Event: "newMessage", Frame: frame})
	foreign, _ := json.Marshal(envelope{Origin: "elsewhere", UserID: "u1", Event: "newMessage", Frame: frame})

	require.NoError(t, r.handle(context.Background(), own))
	assert.Empty(t, c.received(t))
	require.NoError(t, r.handle(context.Background(), foreign))
	assert.Len(t, c.received(t), 1)
	assert.Error(t, r.handle(context.Background(), []byte("{")))
}
