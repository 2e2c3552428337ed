package model

// Real-time event names exchanged over a user's channel.
const (
	EventJoin              = "join"
	EventJoined            = "joined"
	EventError             = "error"
	EventPrivateMessage    = "privateMessage"
	EventTyping            = "typing"
	EventStopTyping        = "stopTyping"
	EventNewMessage        = "newMessage"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventNewBooking        = "newBooking"
	EventBookingUpdated    = "bookingUpdated"
)

// BookingNotice is delivered to a party of a booking when it is created or changes status.
type BookingNotice struct {
	Type        string   `json:"type"`
	Message     string   `json:"message"`
	Booking     *Booking `json:"booking"`
	PatientName string   `json:"patientName,omitempty"`
}

type PrivateMessagePayload struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
}
