package domain

import (
	"fbs/internal/models"
	"fbs/internal/timeutil"
)

// FindConflict returns the first reservation in existing whose interval overlaps [start, end).
// Reservations with unparsable times are skipped.
func FindConflict(existing []models.Reservation, start, end string) (models.Reservation, bool) {
	s, okS := timeutil.ParseTime(start)
	e, okE := timeutil.ParseTime(end)
	if !okS || !okE {
		return models.Reservation{}, false
	}
	for _, r := range existing {
		rs, ok1 := timeutil.ParseTime(r.Start)
		re, ok2 := timeutil.ParseTime(r.End)
		if !ok1 || !ok2 {
			continue
		}
		if timeutil.IntervalsOverlap(s, e, rs, re) {
			return r, true
		}
	}
	return models.Reservation{}, false
}
