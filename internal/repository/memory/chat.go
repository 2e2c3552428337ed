package memory

import (
	"context"
	"sync"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

// ChatStore keeps messages in insertion order, which is also chronological.
type ChatStore struct {
	mu       sync.RWMutex
	messages []*model.ChatMessage
}

func NewChatStore() *ChatStore {
	return &ChatStore{}
}

var _ repository.ChatRepository = (*ChatStore)(nil)

func (s *ChatStore) Create(_ context.Context, msg *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *ChatStore) Conversation(_ context.Context, userA, userB string, limit int) ([]*model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.ChatMessage, 0)
	for _, m := range s.messages {
		if (m.SenderID == userA && m.RecipientID == userB) || (m.SenderID == userB && m.RecipientID == userA) {
			cp := *m
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *ChatStore) MarkRead(_ context.Context, recipientID, senderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.RecipientID == recipientID && m.SenderID == senderID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

type CompanionStore struct {
	mu       sync.RWMutex
	messages map[string][]*model.CompanionMessage
}

func NewCompanionStore() *CompanionStore {
	return &CompanionStore{
		messages: make(map[string][]*model.CompanionMessage),
	}
}

var _ repository.CompanionRepository = (*CompanionStore)(nil)

func (s *CompanionStore) Create(_ context.Context, msg *model.CompanionMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	s.messages[msg.UserID] = append(s.messages[msg.UserID], &cp)
	return nil
}

func (s *CompanionStore) History(_ context.Context, userID string, limit int) ([]*model.CompanionMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*model.CompanionMessage, len(msgs))
	for i, m := range msgs {
		cp := *m
		out[i] = &cp
	}
	return out, nil
}
