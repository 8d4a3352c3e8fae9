package models

import "time"

// Booking is a reserved [Start, End) interval on a facility for one date.
type Booking struct {
	ID         string    `json:"id"`
	FacilityID string    `json:"facilityId"`
	Date       string    `json:"date"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	UserEmail  string    `json:"userEmail"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Reservation is the busy-interval projection of a booking.
type Reservation struct {
	ID    string `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (b *Booking) Reservation() Reservation {
	return Reservation{ID: b.ID, Start: b.Start, End: b.End}
}
