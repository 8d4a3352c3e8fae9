package models

// Slot is a candidate free interval returned by the glimpse.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// GlimpseStatus is the per-facility outcome of a glimpse request.
type GlimpseStatus struct {
	Status string `json:"status"`
	Slots  []Slot `json:"slots,omitempty"`
}

// GlimpseRequest describes a batch preview of the next free slots.
type GlimpseRequest struct {
	FacilityIDs    []string
	Date           string
	PreferredStart string
	BusinessStart  string
	BusinessEnd    string
	Duration       int
	Step           int
	Limit          int
}

// GlimpseResult is keyed by facility id.
type GlimpseResult struct {
	Date     string                   `json:"date"`
	Duration int                      `json:"duration"`
	Items    map[string]GlimpseStatus `json:"items"`
}

// DayReservations is the calendar view of one facility on one date.
type DayReservations struct {
	FacilityID   string        `json:"facilityId"`
	Date         string        `json:"date"`
	Reservations []Reservation `json:"reservations"`
}
