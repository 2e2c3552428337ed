package companion

import (
	"context"
	"errors"
	"testing"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/policy"
	"github.com/mindease/mindease-api/internal/repository/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var patient = policy.Actor{ID: "p1", Role: model.RolePatient}

type failingResponder struct{}

func (failingResponder) GenerateReply(context.Context, string, []*model.CompanionMessage) (Reply, error) {
	return Reply{}, errors.New("model unavailable")
}

func TestSendStoresBothTurns(t *testing.T) {
	svc := NewService(memory.NewCompanionStore(), nil, zerolog.Nop())
	ctx := context.Background()

	reply, err := svc.Send(ctx, patient, &model.CompanionRequest{Message: "  I feel so anxious before work  "})
	require.NoError(t, err)
	assert.Equal(t, "I feel so anxious before work", reply.UserMessage.Content)
	assert.Equal(t, model.CompanionSenderAI, reply.AIMessage.Sender)
	require.NotNil(t, reply.AIMessage.Confidence)
	assert.Equal(t, 0.8, *reply.AIMessage.Confidence)
	assert.True(t, reply.AIMessage.CreatedAt.After(reply.UserMessage.CreatedAt))

	history, err := svc.History(ctx, patient, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.CompanionSenderUser, history[0].Sender)
	assert.Equal(t, model.CompanionSenderAI, history[1].Sender)

	other, err := svc.History(ctx, policy.Actor{ID: "p2", Role: model.RolePatient}, 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSendPropagatesResponderError(t *testing.T) {
	svc := NewService(memory.NewCompanionStore(), failingResponder{}, zerolog.Nop())
	_, err := svc.Send(context.Background(), patient, &model.CompanionRequest{Message: "hello"})
	assert.ErrorContains(t, err, "model unavailable")
}

func TestRuleResponder(t *testing.T) {
	r := NewRuleResponder()
	ctx := context.Background()

	tests := []struct {
		message    string
		confidence float64
	}{
		{"I want to end my life", 0.95},
		{"thinking about self-harm again", 0.95},
		{"Hi there", 0.9},
		{"Can I book a session?", 0.85},
		{"this is something else entirely", fallbackConfidence},
		{"which therapist is best?", 0.85},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			reply, err := r.GenerateReply(ctx, tt.message, nil)
			require.NoError(t, err)
			assert.NotEmpty(t, reply.Content)
			assert.Equal(t, tt.confidence, reply.Confidence)
		})
	}
}
