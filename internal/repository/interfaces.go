package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mindease/mindease-api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	ErrStale     = errors.New("record changed since it was read")
	ErrOverlap   = errors.New("slot overlaps an active booking")
)

// OutboxClaimLease is how long a claimed event stays hidden from other
// workers. Claims held by a worker that died mid-batch lapse after it.
const OutboxClaimLease = 5 * time.Minute

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id string) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		List(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
	}

	TherapistRepository interface {
		UpsertProfile(ctx context.Context, profile *model.TherapistProfile) error
		GetProfile(ctx context.Context, userID string) (*model.TherapistProfile, error)
		// List returns active therapists with their profiles.
		List(ctx context.Context, filter model.TherapistFilter) ([]*model.Therapist, error)
	}

	BookingRepository interface {
		Create(ctx context.Context, booking *model.Booking) error
		// CreateIfFree inserts booking unless the therapist already has an
		// active booking intersecting it, returning ErrOverlap. Check and insert
		// are atomic for every process sharing the store.
		CreateIfFree(ctx context.Context, booking *model.Booking) error
		Get(ctx context.Context, id string) (*model.Booking, error)
		// UpdateStatus sets the status only if the stored status still equals from.
		UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, cancelReason *string) (*model.Booking, error)
		// List is ordered by session date ascending, ties broken by id.
		List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error)
		FindOverlapping(ctx context.Context, therapistID string, start, end time.Time) ([]*model.Booking, error)
	}

	JournalRepository interface {
		Create(ctx context.Context, entry *model.JournalEntry) error
		Get(ctx context.Context, id string) (*model.JournalEntry, error)
		Update(ctx context.Context, entry *model.JournalEntry) error
		Delete(ctx context.Context, id string) error
		ListByUser(ctx context.Context, userID string, limit int) ([]*model.JournalEntry, error)
	}

	MoodRepository interface {
		Create(ctx context.Context, entry *model.MoodEntry) error
		ListByUser(ctx context.Context, userID string, since time.Time) ([]*model.MoodEntry, error)
	}

	ChatRepository interface {
		Create(ctx context.Context, msg *model.ChatMessage) error
		// Conversation returns the latest messages between two users, oldest first.
		Conversation(ctx context.Context, userA, userB string, limit int) ([]*model.ChatMessage, error)
		MarkRead(ctx context.Context, recipientID, senderID string) (int64, error)
	}

	CompanionRepository interface {
		Create(ctx context.Context, msg *model.CompanionMessage) error
		// History returns the latest messages for the user, oldest first.
		History(ctx context.Context, userID string, limit int) ([]*model.CompanionMessage, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending moves up to limit due events to processing and returns
		// them, oldest first. Concurrent callers never receive the same event
		// while its claim lease holds.
		ClaimPending(ctx context.Context, limit int, now time.Time) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id string, at time.Time) error
		// MarkFailed returns the event to pending until retryAt, or fails it
		// for good when retryAt is nil.
		MarkFailed(ctx context.Context, id string, errMsg string, retryAt *time.Time) error
		// CountPending counts events not yet published, claimed ones included.
		CountPending(ctx context.Context) (int64, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Repositories bundles one implementation of each repository.
type Repositories struct {
	Users      UserRepository
	Therapists TherapistRepository
	Bookings   BookingRepository
	Journal    JournalRepository
	Mood       MoodRepository
	Chat       ChatRepository
	Companion  CompanionRepository
	Outbox     OutboxRepository
}
