// Package realtime keeps the registry of live connections per user channel
// and delivers events to them.
package realtime

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/mindease/mindease-api/pkg/metrics"
	"github.com/rs/zerolog"
)

// Conn is one live client connection. Send must not block.
type Conn interface {
	ID() string
	Send(frame []byte) bool
}

// Frame is the JSON envelope exchanged in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func EncodeFrame(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
		}
		raw = b
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// Hub maps a user id to the connections joined to that user's channel.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[string]Conn
	// connUser is the channel each connection is joined to.
	connUser map[string]string

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewHub returns an empty registry. m may be nil.
func NewHub(logger zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		channels: make(map[string]map[string]Conn),
		connUser: make(map[string]string),
		logger:   logger.With().Str("component", "realtime-hub").Logger(),
		metrics:  m,
	}
}

// Join binds conn to userID's channel, moving it if it was joined elsewhere.
func (h *Hub) Join(conn Conn, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.connUser[conn.ID()]; ok {
		if prev == userID {
			return
		}
		h.removeLocked(conn.ID(), prev)
	}

	members, ok := h.channels[userID]
	if !ok {
		members = make(map[string]Conn)
		h.channels[userID] = members
	}
	members[conn.ID()] = conn
	h.connUser[conn.ID()] = userID

	if h.metrics != nil {
		h.metrics.RealtimeConnections.Inc()
	}
	h.logger.Debug().Str("user_id", userID).Str("conn_id", conn.ID()).Msg("Connection joined channel")
}

// Leave removes conn from whatever channel it joined. Unknown connections are ignored.
func (h *Hub) Leave(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID, ok := h.connUser[conn.ID()]
	if !ok {
		return
	}
	h.removeLocked(conn.ID(), userID)
}

func (h *Hub) removeLocked(connID, userID string) {
	delete(h.connUser, connID)
	if members, ok := h.channels[userID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.channels, userID)
		}
	}
	if h.metrics != nil {
		h.metrics.RealtimeConnections.Dec()
	}
}

// ChannelOf returns the channel conn is joined to.
func (h *Hub) ChannelOf(conn Conn) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	userID, ok := h.connUser[conn.ID()]
	return userID, ok
}

// EmitTo queues event to every connection on userID's channel and returns
// how many accepted it. Nobody joined is not an error.
func (h *Hub) EmitTo(userID, event string, data any) (int, error) {
	return h.EmitToExcept(userID, "", event, data)
}

// EmitToExcept is EmitTo skipping the connection with id exceptConnID.
func (h *Hub) EmitToExcept(userID, exceptConnID, event string, data any) (int, error) {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		return 0, err
	}
	return h.deliver(userID, exceptConnID, event, frame), nil
}

func (h *Hub) deliver(userID, exceptConnID, event string, frame []byte) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.channels[userID]))
	for id, c := range h.channels[userID] {
		if id == exceptConnID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Send(frame) {
			delivered++
			continue
		}
		if h.metrics != nil {
			h.metrics.RealtimeDropped.Inc()
		}
		h.logger.Warn().Str("user_id", userID).Str("conn_id", c.ID()).Str("event", event).Msg("Dropped event for slow connection")
	}
	if h.metrics != nil && delivered > 0 {
		h.metrics.RealtimeDelivered.WithLabelValues(event).Add(float64(delivered))
	}
	return delivered
}

// SendTo writes event to a single connection regardless of channel membership.
func (h *Hub) SendTo(conn Conn, event string, data any) bool {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode frame")
		return false
	}
	return conn.Send(frame)
}

// Count is the number of joined connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connUser)
}

// ConnectedUsers lists user ids with at least one joined connection, sorted.
func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.channels))
	for id := range h.channels {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[userID]) > 0
}
