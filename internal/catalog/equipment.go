package catalog

import (
	"hash/fnv"
	"strings"
)

// EquipmentPool is the ordered tag list; bit i of the code hash selects tag i.
var EquipmentPool = []string{"Projector", "Whiteboard", "Video Conferencing", "Microphone", "PC Lab"}

func codeHash(code string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(code))
	return h.Sum32()
}

// Equipment derives the tag set of a facility from its code alone.
func Equipment(code string) []string {
	h := codeHash(code)
	tags := make([]string, 0, len(EquipmentPool))
	for i, tag := range EquipmentPool {
		if h&(1<<uint(i)) != 0 {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		tags = append(tags, EquipmentPool[h%uint32(len(EquipmentPool))])
	}
	return tags
}

// HasEquipment reports whether tags contains every entry of required (case-insensitive).
func HasEquipment(tags, required []string) bool {
	for _, want := range required {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		found := false
		for _, tag := range tags {
			if strings.EqualFold(tag, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
