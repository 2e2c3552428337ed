package email

import (
	"fmt"
	"strings"

	"github.com/mindease/mindease-api/internal/model"
)

const sessionLayout = "Mon 2 Jan 2006 at 15:04 MST"

// BookingCreated is the therapist's notice of a new request.
func BookingCreated(p *model.BookingEventPayload) (Message, bool) {
	if p.Booking == nil || p.Therapist == nil || p.Therapist.Email == "" {
		return Message{}, false
	}
	patient := "A patient"
	if p.Patient != nil && p.Patient.Name != "" {
		patient = p.Patient.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greeting(p.Therapist.Name))
	fmt.Fprintf(&b, "%s has requested a %d minute session on %s.\n", patient, p.Booking.Duration, p.Booking.SessionDate.UTC().Format(sessionLayout))
	if p.Booking.Notes != nil && *p.Booking.Notes != "" {
		fmt.Fprintf(&b, "\nNotes from the patient:\n%s\n", *p.Booking.Notes)
	}
	b.WriteString("\nPlease confirm or decline it from your MindEase dashboard.\n")

	return Message{
		To:      p.Therapist.Email,
		ToName:  p.Therapist.Name,
		Subject: "New booking request",
		Body:    b.String(),
	}, true
}

// BookingStatusChanged tells the patient where their booking stands.
func BookingStatusChanged(p *model.BookingEventPayload) (Message, bool) {
	if p.Booking == nil || p.Patient == nil || p.Patient.Email == "" {
		return Message{}, false
	}
	with := "your therapist"
	if p.Therapist != nil && p.Therapist.Name != "" {
		with = p.Therapist.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greeting(p.Patient.Name))
	fmt.Fprintf(&b, "Your session with %s on %s is now %s.\n", with, p.Booking.SessionDate.UTC().Format(sessionLayout), p.Booking.Status)
	if p.Booking.Status == model.BookingStatusCancelled && p.Booking.CancelReason != nil && *p.Booking.CancelReason != "" {
		fmt.Fprintf(&b, "\nReason: %s\n", *p.Booking.CancelReason)
	}
	b.WriteString("\nThank you for using MindEase.\n")

	return Message{
		To:      p.Patient.Email,
		ToName:  p.Patient.Name,
		Subject: fmt.Sprintf("Your booking is now %s", p.Booking.Status),
		Body:    b.String(),
	}, true
}

func greeting(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
