package model

import "time"

type ChatMessage struct {
	ID          string    `db:"id" json:"id"`
	SenderID    string    `db:"sender_id" json:"senderId"`
	RecipientID string    `db:"recipient_id" json:"recipientId"`
	Content     string    `db:"content" json:"content"`
	Read        bool      `db:"is_read" json:"read"`
	CreatedAt   time.Time `db:"created_at" json:"timestamp"`
}

type CompanionSender string

const (
	CompanionSenderUser CompanionSender = "user"
	CompanionSenderAI   CompanionSender = "ai"
)

// CompanionMessage is one turn of a user's conversation with the AI companion.
type CompanionMessage struct {
	ID         string          `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"-"`
	Sender     CompanionSender `db:"sender" json:"sender"`
	Content    string          `db:"content" json:"content"`
	Confidence *float64        `db:"confidence" json:"confidence,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"timestamp"`
}

type CompanionRequest struct {
	Message string `json:"message" binding:"required,notblank,max=4000"`
}

type CompanionReply struct {
	UserMessage *CompanionMessage `json:"userMessage"`
	AIMessage   *CompanionMessage `json:"aiMessage"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required,notblank,max=4000"`
}
