package models

// Facility is a bookable room. Equipment is derived from ID on every read.
type Facility struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Campus    string   `json:"campus"`
	Building  string   `json:"building"`
	Capacity  int      `json:"capacity"`
	Equipment []string `json:"equipment"`
	Active    bool     `json:"active"`
}

// FacilityFilter narrows a catalog listing.
type FacilityFilter struct {
	Query       string
	MinCapacity int
	Equipment   []string
	Page        int
	PageSize    int
}

// Page is one page of an offset-paginated listing.
type Page[T any] struct {
	Items     []T `json:"items"`
	Total     int `json:"total"`
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
}
