package model

import (
	"time"

	"github.com/lib/pq"
)

type JournalEntry struct {
	ID        string         `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"userId"`
	Title     string         `db:"title" json:"title"`
	Content   string         `db:"content" json:"content"`
	Mood      *int           `db:"mood" json:"mood,omitempty"`
	Tags      pq.StringArray `db:"tags" json:"tags"`
	IsPrivate bool           `db:"is_private" json:"isPrivate"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

type JournalEntryRequest struct {
	Title     string   `json:"title" binding:"required,notblank,max=200"`
	Content   string   `json:"content" binding:"required,max=20000"`
	Mood      *int     `json:"mood" binding:"omitempty,min=1,max=10"`
	Tags      []string `json:"tags" binding:"omitempty,max=20,dive,max=40"`
	IsPrivate *bool    `json:"isPrivate"`
}

type MoodEntry struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Mood      int       `db:"mood" json:"mood"`
	Energy    int       `db:"energy" json:"energy"`
	Anxiety   int       `db:"anxiety" json:"anxiety"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type MoodEntryRequest struct {
	Mood    int     `json:"mood" binding:"required,min=1,max=10"`
	Energy  int     `json:"energy" binding:"required,min=1,max=10"`
	Anxiety int     `json:"anxiety" binding:"required,min=1,max=10"`
	Notes   *string `json:"notes" binding:"omitempty,max=1000"`
}

type MoodStats struct {
	Days           int     `json:"days"`
	Count          int     `json:"count"`
	AverageMood    float64 `json:"averageMood"`
	AverageEnergy  float64 `json:"averageEnergy"`
	AverageAnxiety float64 `json:"averageAnxiety"`
}
