package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

type BookingStore struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
}

func NewBookingStore() *BookingStore {
	return &BookingStore{
		bookings: make(map[string]*model.Booking),
	}
}

var _ repository.BookingRepository = (*BookingStore)(nil)

func copyBooking(b *model.Booking) *model.Booking {
	cp := *b
	cp.Notes = copyString(b.Notes)
	cp.CancelReason = copyString(b.CancelReason)
	return &cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func (s *BookingStore) Create(_ context.Context, booking *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; ok {
		return repository.ErrDuplicate
	}
	s.bookings[booking.ID] = copyBooking(booking)
	return nil
}

// CreateIfFree checks and inserts under the store's write lock.
func (s *BookingStore) CreateIfFree(_ context.Context, booking *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, b := range s.bookings {
		if b.TherapistID == booking.TherapistID && b.Status.Active() && b.Overlaps(booking.SessionDate, booking.EndsAt()) {
			return repository.ErrOverlap
		}
	}
	s.bookings[booking.ID] = copyBooking(booking)
	return nil
}

func (s *BookingStore) Get(_ context.Context, id string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyBooking(b), nil
}

func (s *BookingStore) UpdateStatus(_ context.Context, id string, from, to model.BookingStatus, cancelReason *string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != from {
		return nil, repository.ErrStale
	}
	b.Status = to
	if cancelReason != nil {
		b.CancelReason = copyString(cancelReason)
	}
	b.UpdatedAt = time.Now().UTC()
	return copyBooking(b), nil
}

func (s *BookingStore) List(_ context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Booking, 0)
	for _, b := range s.bookings {
		if filter.UserID != "" && !b.Involves(filter.UserID) {
			continue
		}
		if filter.Upcoming && !b.SessionDate.After(filter.Now) {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, copyBooking(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SessionDate.Equal(out[j].SessionDate) {
			return out[i].SessionDate.Before(out[j].SessionDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *BookingStore) FindOverlapping(_ context.Context, therapistID string, start, end time.Time) ([]*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Booking
	for _, b := range s.bookings {
		if b.TherapistID != therapistID || !b.Status.Active() {
			continue
		}
		if b.Overlaps(start, end) {
			out = append(out, copyBooking(b))
		}
	}
	return out, nil
}
