// Package memory implements the repository interfaces on mutex-guarded maps.
// It backs the "memory" storage driver and the service tests.
package memory

import "github.com/mindease/mindease-api/internal/repository"

type Store struct {
	Users      *UserStore
	Therapists *TherapistStore
	Bookings   *BookingStore
	Journal    *JournalStore
	Mood       *MoodStore
	Chat       *ChatStore
	Companion  *CompanionStore
	Outbox     *OutboxStore
}

func NewStore() *Store {
	users := NewUserStore()
	return &Store{
		Users:      users,
		Therapists: NewTherapistStore(users),
		Bookings:   NewBookingStore(),
		Journal:    NewJournalStore(),
		Mood:       NewMoodStore(),
		Chat:       NewChatStore(),
		Companion:  NewCompanionStore(),
		Outbox:     NewOutboxStore(),
	}
}

func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Users:      s.Users,
		Therapists: s.Therapists,
		Bookings:   s.Bookings,
		Journal:    s.Journal,
		Mood:       s.Mood,
		Chat:       s.Chat,
		Companion:  s.Companion,
		Outbox:     s.Outbox,
	}
}
