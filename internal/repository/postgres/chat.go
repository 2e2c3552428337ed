package postgres

import (
	"context"
	"fmt"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

type chatRepository struct {
	BaseRepository
}

func NewChatRepository(base BaseRepository) repository.ChatRepository {
	return &chatRepository{base}
}

func (r *chatRepository) Create(ctx context.Context, m *model.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, sender_id, recipient_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.SenderID, m.RecipientID, m.Content, m.Read, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}
	return nil
}

func (r *chatRepository) Conversation(ctx context.Context, userA, userB string, limit int) ([]*model.ChatMessage, error) {
	query := `
		SELECT * FROM (
			SELECT id, sender_id, recipient_id, content, is_read, created_at
			FROM chat_messages
			WHERE (sender_id = $1 AND recipient_id = $2)
			   OR (sender_id = $2 AND recipient_id = $1)
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC, id ASC
	`
	msgs := []*model.ChatMessage{}
	if err := r.db.SelectContext(ctx, &msgs, query, userA, userB, limit); err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return msgs, nil
}

func (r *chatRepository) MarkRead(ctx context.Context, recipientID, senderID string) (int64, error) {
	query := `
		UPDATE chat_messages SET is_read = TRUE
		WHERE recipient_id = $1 AND sender_id = $2 AND is_read = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, recipientID, senderID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return result.RowsAffected()
}

type companionRepository struct {
	BaseRepository
}

func NewCompanionRepository(base BaseRepository) repository.CompanionRepository {
	return &companionRepository{base}
}

func (r *companionRepository) Create(ctx context.Context, m *model.CompanionMessage) error {
	query := `
		INSERT INTO companion_messages (id, user_id, sender, content, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.UserID, m.Sender, m.Content, m.Confidence, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create companion message: %w", err)
	}
	return nil
}

func (r *companionRepository) History(ctx context.Context, userID string, limit int) ([]*model.CompanionMessage, error) {
	query := `
		SELECT * FROM (
			SELECT id, user_id, sender, content, confidence, created_at
			FROM companion_messages
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`
	msgs := []*model.CompanionMessage{}
	if err := r.db.SelectContext(ctx, &msgs, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to load companion history: %w", err)
	}
	return msgs, nil
}
