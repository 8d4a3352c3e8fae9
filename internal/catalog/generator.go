package catalog

import (
	"fmt"

	"fbs/internal/models"
)

type building struct {
	code string
	name string
}

type roomType struct {
	number   int
	label    string
	baseCap  int
	capRange int
}

var defaultBuildings = []building{
	{code: "ENG", name: "Engineering Hall"},
	{code: "SCI", name: "Science Center"},
	{code: "LIB", name: "Central Library"},
	{code: "BUS", name: "Business School"},
	{code: "ART", name: "Arts Building"},
}

var defaultRoomTypes = []roomType{
	{number: 1, label: "Seminar Room", baseCap: 12, capRange: 18},
	{number: 2, label: "Meeting Room", baseCap: 4, capRange: 8},
	{number: 5, label: "Lecture Hall", baseCap: 60, capRange: 140},
}

const defaultFloors = 3

// Generate builds the default catalog: every building x floor x room type.
// Output depends only on the fixed tables above, so ids and capacities are stable across restarts.
func Generate() []models.Facility {
	out := make([]models.Facility, 0, len(defaultBuildings)*defaultFloors*len(defaultRoomTypes))
	for _, b := range defaultBuildings {
		for floor := 1; floor <= defaultFloors; floor++ {
			for _, rt := range defaultRoomTypes {
				room := floor*100 + rt.number
				id := fmt.Sprintf("%s-%d", b.code, room)
				out = append(out, models.Facility{
					ID:       id,
					Name:     fmt.Sprintf("%s %d %s", b.code, room, rt.label),
					Building: b.name,
					Capacity: rt.baseCap + int(codeHash(id)%uint32(rt.capRange)),
					Active:   true,
				})
			}
		}
	}
	return out
}
