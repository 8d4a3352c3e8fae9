package catalog

import (
	"sort"
	"strings"

	"fbs/internal/domain"
	"fbs/internal/models"
)

// Catalog is an immutable, in-memory facility index.
type Catalog struct {
	facilities []models.Facility
	byID       map[string]int
}

// New indexes facilities sorted by name then id. An empty list selects the generated default catalog.
func New(facilities []models.Facility) *Catalog {
	if len(facilities) == 0 {
		facilities = Generate()
	}

	sorted := make([]models.Facility, len(facilities))
	copy(sorted, facilities)
	for i := range sorted {
		sorted[i].Equipment = nil
		sorted[i].Campus = ""
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ID < sorted[j].ID
	})

	byID := make(map[string]int, len(sorted))
	for i, f := range sorted {
		byID[f.ID] = i
	}
	return &Catalog{facilities: sorted, byID: byID}
}

// hydrate fills the derived fields. Equipment is recomputed on every read.
func hydrate(f models.Facility) models.Facility {
	f.Campus = models.CampusLabel
	f.Equipment = Equipment(f.ID)
	return f
}

func (c *Catalog) Get(id string) (models.Facility, error) {
	idx, ok := c.byID[id]
	if !ok {
		return models.Facility{}, domain.ErrFacilityNotFound
	}
	return hydrate(c.facilities[idx]), nil
}

// All returns every facility, active or not, in catalog order.
func (c *Catalog) All() []models.Facility {
	out := make([]models.Facility, 0, len(c.facilities))
	for _, f := range c.facilities {
		out = append(out, hydrate(f))
	}
	return out
}

func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.facilities))
	for _, f := range c.facilities {
		ids = append(ids, f.ID)
	}
	return ids
}

// List filters active facilities and returns the requested page.
func (c *Catalog) List(filter models.FacilityFilter) models.Page[models.Facility] {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	matched := make([]models.Facility, 0)
	for _, raw := range c.facilities {
		if !raw.Active {
			continue
		}
		f := hydrate(raw)
		if query != "" && !matchesQuery(f, query) {
			continue
		}
		if filter.MinCapacity > 0 && f.Capacity < filter.MinCapacity {
			continue
		}
		if !HasEquipment(f.Equipment, filter.Equipment) {
			continue
		}
		matched = append(matched, f)
	}

	return Paginate(matched, filter.Page, filter.PageSize)
}

func matchesQuery(f models.Facility, query string) bool {
	for _, field := range []string{f.Name, f.Building, f.Campus} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// Paginate slices items into one page, clamping page and pageSize into range.
func Paginate[T any](items []T, page, pageSize int) models.Page[T] {
	if pageSize == 0 {
		pageSize = models.DefaultPageSize
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > models.MaxPageSize {
		pageSize = models.MaxPageSize
	}

	total := len(items)
	pageCount := (total + pageSize - 1) / pageSize
	if pageCount < 1 {
		pageCount = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pageCount {
		page = pageCount
	}

	from := (page - 1) * pageSize
	to := from + pageSize
	if to > total {
		to = total
	}

	pageItems := make([]T, 0, to-from)
	pageItems = append(pageItems, items[from:to]...)

	return models.Page[T]{
		Items:     pageItems,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		PageCount: pageCount,
	}
}
