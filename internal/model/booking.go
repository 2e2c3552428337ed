package model

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCompleted, BookingStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// CanTransitionTo reports whether the lifecycle permits moving from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active bookings occupy the therapist's calendar.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type Booking struct {
	ID           string        `db:"id" json:"id"`
	PatientID    string        `db:"patient_id" json:"patientId"`
	TherapistID  string        `db:"therapist_id" json:"therapistId"`
	SessionDate  time.Time     `db:"session_date" json:"sessionDate"`
	Duration     int           `db:"duration" json:"duration"`
	Status       BookingStatus `db:"status" json:"status"`
	Notes        *string       `db:"notes" json:"notes,omitempty"`
	Price        float64       `db:"price" json:"price"`
	CancelReason *string       `db:"cancel_reason" json:"cancelReason,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updatedAt"`
}

// EndsAt is the end of the session interval.
func (b *Booking) EndsAt() time.Time {
	return b.SessionDate.Add(time.Duration(b.Duration) * time.Minute)
}

// Overlaps reports whether [start, end) intersects the booking's interval.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.SessionDate.Before(end) && start.Before(b.EndsAt())
}

// Involves reports whether userID is a party to the booking.
func (b *Booking) Involves(userID string) bool {
	return b.PatientID == userID || b.TherapistID == userID
}

type BookingFilter struct {
	UserID   string
	Upcoming bool
	Status   BookingStatus
	Now      time.Time
}

type CreateBookingRequest struct {
	PatientID   string  `json:"patientId"`
	TherapistID string  `json:"therapistId" binding:"required"`
	SessionDate string  `json:"sessionDate" binding:"required"`
	Duration    int     `json:"duration"`
	Notes       *string `json:"notes" binding:"omitempty,max=1000"`
}

type UpdateBookingStatusRequest struct {
	Status       BookingStatus `json:"status" binding:"required,bookingstatus"`
	CancelReason *string       `json:"cancelReason" binding:"omitempty,max=500"`
}
