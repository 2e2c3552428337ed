package model

import (
	"encoding/json"
	"time"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Domain event types recorded in the outbox.
const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"
)

type OutboxEvent struct {
	ID           string          `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"eventType"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"errorMessage,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retryCount"`
	RetryAt      *time.Time      `db:"retry_at" json:"retryAt,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
}

// BookingEventPayload is the body published for booking domain events.
type BookingEventPayload struct {
	Type           string         `json:"type"`
	Booking        *Booking       `json:"booking"`
	PreviousStatus BookingStatus  `json:"previousStatus,omitempty"`
	Patient        *ContactDetail `json:"patient,omitempty"`
	Therapist      *ContactDetail `json:"therapist,omitempty"`
}

type ContactDetail struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
