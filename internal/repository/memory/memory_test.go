package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindease/mindease-api/internal/model"
	"github.com/mindease/mindease-api/internal/repository"
)

func TestUserStoreEmailIsUniqueCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	require.NoError(t, s.Create(ctx, &model.User{ID: "u1", Email: "Ana@example.com", Role: model.RolePatient}))
	err := s.Create(ctx, &model.User{ID: "u2", Email: "ana@EXAMPLE.com", Role: model.RolePatient})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	u, err := s.GetByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestUserStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	require.NoError(t, s.Create(ctx, &model.User{ID: "u1", Email: "a@example.com", FirstName: "Ana"}))

	u, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	u.FirstName = "mutated"

	again, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", again.FirstName)
}

func TestBookingStoreListOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewBookingStore()
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, &model.Booking{ID: "b", PatientID: "p1", TherapistID: "t1", SessionDate: now.Add(2 * time.Hour), Status: model.BookingStatusPending}))
	require.NoError(t, s.Create(ctx, &model.Booking{ID: "a", PatientID: "p1", TherapistID: "t1", SessionDate: now.Add(2 * time.Hour), Status: model.BookingStatusPending}))
	require.NoError(t, s.Create(ctx, &model.Booking{ID: "c", PatientID: "p1", TherapistID: "t2", SessionDate: now.Add(1 * time.Hour), Status: model.BookingStatusConfirmed}))
	require.NoError(t, s.Create(ctx, &model.Booking{ID: "old", PatientID: "p1", TherapistID: "t1", SessionDate: now.Add(-1 * time.Hour), Status: model.BookingStatusCompleted}))
	require.NoError(t, s.Create(ctx, &model.Booking{ID: "other", PatientID: "p2", TherapistID: "t3", SessionDate: now.Add(time.Hour), Status: model.BookingStatusPending}))

	all, err := s.List(ctx, model.BookingFilter{UserID: "p1", Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "c", "a", "b"}, bookingIDs(all))

	upcoming, err := s.List(ctx, model.BookingFilter{UserID: "p1", Upcoming: true, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, bookingIDs(upcoming))

	asTherapist, err := s.List(ctx, model.BookingFilter{UserID: "t1", Status: model.BookingStatusPending, Now: now})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, bookingIDs(asTherapist))
}

func TestBookingStoreUpdateStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewBookingStore()
	require.NoError(t, s.Create(ctx, &model.Booking{ID: "b1", Status: model.BookingStatusPending}))

	_, err := s.UpdateStatus(ctx, "b1", model.BookingStatusConfirmed, model.BookingStatusCompleted, nil)
	assert.ErrorIs(t, err, repository.ErrStale)

	updated, err := s.UpdateStatus(ctx, "b1", model.BookingStatusPending, model.BookingStatusConfirmed, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, updated.Status)

	_, err = s.UpdateStatus(ctx, "missing", model.BookingStatusPending, model.BookingStatusConfirmed, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBookingStoreFindOverlappingIgnoresInactive(t *testing.T) {
	ctx := context.Background()
	s := NewBookingStore()
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, &model.Booking{ID: "live", TherapistID: "t1", SessionDate: start, Duration: 60, Status: model.BookingStatusConfirmed}))
	require.NoError(t, s.Create(ctx, &model.Booking{ID: "gone", TherapistID: "t1", SessionDate: start, Duration: 60, Status: model.BookingStatusCancelled}))
	require.NoError(t, s.Create(ctx, &model.Booking{ID: "else", TherapistID: "t2", SessionDate: start, Duration: 60, Status: model.BookingStatusPending}))

	found, err := s.FindOverlapping(ctx, "t1", start.Add(30*time.Minute), start.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, bookingIDs(found))
}

func TestBookingStoreReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	s := NewBookingStore()
	notes := "first session"
	in := &model.Booking{ID: "b1", Status: model.BookingStatusPending, Notes: &notes}
	require.NoError(t, s.Create(ctx, in))
	notes = "edited by caller"

	reason := "conflict"
	_, err := s.UpdateStatus(ctx, "b1", model.BookingStatusPending, model.BookingStatusCancelled, &reason)
	require.NoError(t, err)
	reason = "edited by caller"

	got, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	*got.Notes = "mutated"
	*got.CancelReason = "mutated"

	again, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "first session", *again.Notes)
	assert.Equal(t, "conflict", *again.CancelReason)
}

func TestBookingStoreCreateIfFree(t *testing.T) {
	ctx := context.Background()
	s := NewBookingStore()
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	slot := func(id, therapist string, at time.Time) *model.Booking {
		return &model.Booking{ID: id, TherapistID: therapist, SessionDate: at, Duration: 60, Status: model.BookingStatusPending}
	}

	require.NoError(t, s.CreateIfFree(ctx, slot("a", "t1", start)))
	assert.ErrorIs(t, s.CreateIfFree(ctx, slot("b", "t1", start.Add(59*time.Minute))), repository.ErrOverlap)
	assert.NoError(t, s.CreateIfFree(ctx, slot("c", "t1", start.Add(time.Hour))))
	assert.NoError(t, s.CreateIfFree(ctx, slot("d", "t2", start)))
	assert.ErrorIs(t, s.CreateIfFree(ctx, slot("a", "t3", start)), repository.ErrDuplicate)

	_, err := s.UpdateStatus(ctx, "a", model.BookingStatusPending, model.BookingStatusCancelled, nil)
	require.NoError(t, err)
	assert.NoError(t, s.CreateIfFree(ctx, slot("e", "t1", start)))
}

func TestBookingStoreCreateIfFreeUnderContention(t *testing.T) {
	ctx := context.Background()
	s := NewBookingStore()
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.CreateIfFree(ctx, &model.Booking{
				ID: fmt.Sprintf("b%d", i), TherapistID: "t1", SessionDate: start.Add(time.Duration(i) * time.Minute),
				Duration: 60, Status: model.BookingStatusPending,
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestTherapistStoreListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for _, u := range []*model.User{
		{ID: "t1", Email: "t1@example.com", LastName: "Alpha", Role: model.RoleTherapist, IsActive: true},
		{ID: "t2", Email: "t2@example.com", LastName: "Beta", Role: model.RoleTherapist, IsActive: true},
		{ID: "t3", Email: "t3@example.com", LastName: "Gamma", Role: model.RoleTherapist, IsActive: false},
		{ID: "p1", Email: "p1@example.com", Role: model.RolePatient, IsActive: true},
	} {
		require.NoError(t, store.Users.Create(ctx, u))
	}
	require.NoError(t, store.Therapists.UpsertProfile(ctx, &model.TherapistProfile{UserID: "t1", Specialties: []string{"Anxiety"}, HourlyRate: 80, Rating: 4.1}))
	require.NoError(t, store.Therapists.UpsertProfile(ctx, &model.TherapistProfile{UserID: "t2", Specialties: []string{"Grief"}, HourlyRate: 150, Rating: 4.9, Verified: true}))
	require.NoError(t, store.Therapists.UpsertProfile(ctx, &model.TherapistProfile{UserID: "t3", Specialties: []string{"Anxiety"}, HourlyRate: 60}))

	all, err := store.Therapists.List(ctx, model.TherapistFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t2", all[0].ID, "highest rating first")

	maxRate := 100.0
	cheap, err := store.Therapists.List(ctx, model.TherapistFilter{MaxRate: &maxRate})
	require.NoError(t, err)
	require.Len(t, cheap, 1)
	assert.Equal(t, "t1", cheap[0].ID)

	anxiety, err := store.Therapists.List(ctx, model.TherapistFilter{Specialty: "anxiety"})
	require.NoError(t, err)
	require.Len(t, anxiety, 1)
	assert.Equal(t, "t1", anxiety[0].ID)
}

func TestOutboxStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewOutboxStore()
	now := time.Now().UTC()

	require.NoError(t, s.Create(ctx, &model.OutboxEvent{ID: "e1", EventType: model.EventBookingCreated, Status: model.OutboxStatusPending, CreatedAt: now}))
	require.NoError(t, s.Create(ctx, &model.OutboxEvent{ID: "e2", EventType: model.EventBookingCreated, Status: model.OutboxStatusPending, CreatedAt: now.Add(time.Second)}))

	retryAt := now.Add(time.Minute)
	require.NoError(t, s.MarkFailed(ctx, "e2", "broker down", &retryAt))

	claimed, err := s.ClaimPending(ctx, 10, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "e1", claimed[0].ID)
	assert.Equal(t, model.OutboxStatusProcessing, claimed[0].Status)

	// e1 is still claimed, e2 is now due.
	claimed, err = s.ClaimPending(ctx, 10, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "e2", claimed[0].ID)

	pending, err := s.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	require.NoError(t, s.MarkProcessed(ctx, "e1", now))
	require.NoError(t, s.MarkFailed(ctx, "e2", "gave up", nil))

	e2, ok := s.Get("e2")
	require.True(t, ok)
	assert.Equal(t, model.OutboxStatusFailed, e2.Status)
	assert.Equal(t, 2, e2.RetryCount)

	pending, err = s.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	deleted, err := s.DeleteProcessedBefore(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestOutboxClaimLeaseAndRetry(t *testing.T) {
	ctx := context.Background()
	s := NewOutboxStore()
	now := time.Now().UTC()
	for i, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, s.Create(ctx, &model.OutboxEvent{ID: id, Status: model.OutboxStatusPending, CreatedAt: now.Add(time.Duration(i) * time.Second)}))
	}

	first, err := s.ClaimPending(ctx, 2, now)
	require.NoError(t, err)
	second, err := s.ClaimPending(ctx, 2, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, eventIDs(first))
	assert.Equal(t, []string{"e3"}, eventIDs(second))

	none, err := s.ClaimPending(ctx, 10, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, none)

	retryAt := now.Add(time.Minute)
	require.NoError(t, s.MarkFailed(ctx, "e3", "broker down", &retryAt))
	e3, _ := s.Get("e3")
	assert.Equal(t, model.OutboxStatusPending, e3.Status)

	again, err := s.ClaimPending(ctx, 10, retryAt)
	require.NoError(t, err)
	assert.Equal(t, []string{"e3"}, eventIDs(again))

	// Claims from a worker that never reported back lapse after the lease.
	expired, err := s.ClaimPending(ctx, 10, now.Add(repository.OutboxClaimLease+time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, eventIDs(expired))
}

func TestOutboxConcurrentClaimsAreDisjoint(t *testing.T) {
	ctx := context.Background()
	s := NewOutboxStore()
	now := time.Now().UTC()
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Create(ctx, &model.OutboxEvent{ID: fmt.Sprintf("e%02d", i), Status: model.OutboxStatusPending, CreatedAt: now}))
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch, err := s.ClaimPending(ctx, 5, now)
				if err != nil || len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, e := range batch {
					seen[e.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func eventIDs(es []*model.OutboxEvent) []string {
	ids := make([]string, len(es))
	for i, e := range es {
		ids[i] = e.ID
	}
	return ids
}

func bookingIDs(bs []*model.Booking) []string {
	ids := make([]string, len(bs))
	for i, b := range bs {
		ids[i] = b.ID
	}
	return ids
}
