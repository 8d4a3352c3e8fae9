// Package export renders booking schedules as xlsx workbooks.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"fbs/internal/config"
	"fbs/internal/domain"
	"fbs/internal/models"
	"fbs/internal/timeutil"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Schedule"

// ScheduleExporter builds a day grid: one row per facility, one column per time step.
type ScheduleExporter struct {
	repo          domain.BookingRepository
	catalog       domain.FacilityCatalog
	booking       config.BookingConfig
	maxFacilities int
	logger        *zerolog.Logger
}

func NewScheduleExporter(repo domain.BookingRepository, catalog domain.FacilityCatalog, booking config.BookingConfig, maxFacilities int, logger *zerolog.Logger) *ScheduleExporter {
	if booking.BusinessStart == "" {
		booking.BusinessStart = models.DefaultBusinessStart
	}
	if booking.BusinessEnd == "" {
		booking.BusinessEnd = models.DefaultBusinessEnd
	}
	if booking.SlotStep <= 0 {
		booking.SlotStep = models.DefaultSlotStep
	}
	if maxFacilities <= 0 {
		maxFacilities = models.MaxPageSize
	}
	return &ScheduleExporter{
		repo:          repo,
		catalog:       catalog,
		booking:       booking,
		maxFacilities: maxFacilities,
		logger:        logger,
	}
}

// resolveFacilities returns the requested facilities in request order,
// or every active facility when ids is empty.
func (e *ScheduleExporter) resolveFacilities(ids []string) ([]models.Facility, error) {
	var out []models.Facility
	if len(ids) == 0 {
		for _, f := range e.catalog.All() {
			if f.Active {
				out = append(out, f)
			}
		}
	} else {
		seen := make(map[string]bool, len(ids))
		for _, raw := range ids {
			id := strings.TrimSpace(raw)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			f, err := e.catalog.Get(id)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", id, err)
			}
			out = append(out, f)
		}
	}
	if len(out) > e.maxFacilities {
		return nil, domain.NewValidationError("ids", "at most %d facilities per export", e.maxFacilities)
	}
	return out, nil
}

// WriteDaySchedule streams the workbook for date into w.
func (e *ScheduleExporter) WriteDaySchedule(ctx context.Context, w io.Writer, date string, ids []string) error {
	date = strings.TrimSpace(date)
	day, err := timeutil.ParseDate(date)
	if err != nil {
		return domain.NewValidationError("date", "%v", err)
	}

	facilities, err := e.resolveFacilities(ids)
	if err != nil {
		return err
	}

	from, _ := timeutil.ParseTime(e.booking.BusinessStart)
	to, _ := timeutil.ParseTime(e.booking.BusinessEnd)
	step := e.booking.SlotStep

	facilityIDs := make([]string, len(facilities))
	for i, f := range facilities {
		facilityIDs[i] = f.ID
	}
	reservations := map[string][]models.Reservation{}
	if len(facilityIDs) > 0 {
		reservations, err = e.repo.ListBookingsForMany(ctx, facilityIDs, date)
		if err != nil {
			return fmt.Errorf("list reservations: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s, %s", models.CampusLabel, day.Format("Monday 02.01.2006")))
	_ = f.SetCellStyle(sheetName, "A1", "A1", styles.title)

	// Заголовки - временные слоты
	col := 2
	for start := from; start+step <= to; start += step {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, timeutil.FormatTime(start))
		_ = f.SetCellStyle(sheetName, cell, cell, styles.header)
		col++
	}
	lastCol := col - 1

	for i, facility := range facilities {
		row := i + 3
		nameCell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, nameCell, fmt.Sprintf("%s (%d)", facility.Name, facility.Capacity))
		_ = f.SetCellStyle(sheetName, nameCell, nameCell, styles.facility)

		busy := reservations[facility.ID]
		col := 2
		for start := from; start+step <= to; start += step {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			if r, ok := domain.FindConflict(busy, timeutil.FormatTime(start), timeutil.FormatTime(start+step)); ok {
				_ = f.SetCellValue(sheetName, cell, r.Start+"-"+r.End)
				_ = f.SetCellStyle(sheetName, cell, cell, styles.busy)
			} else {
				_ = f.SetCellStyle(sheetName, cell, cell, styles.free)
			}
			col++
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 36)
	if lastCol >= 2 {
		first, _ := excelize.ColumnNumberToName(2)
		last, _ := excelize.ColumnNumberToName(lastCol)
		_ = f.SetColWidth(sheetName, first, last, 12)
		lastName, _ := excelize.CoordinatesToCellName(lastCol, 1)
		_ = f.MergeCell(sheetName, "A1", lastName)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}

	e.logger.Info().Str("date", date).Int("facilities", len(facilities)).Msg("schedule exported")
	return nil
}

type sheetStyles struct {
	title, header, facility, busy, free int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 14},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&s.header, &excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
			Font:      &excelize.Font{Bold: true},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&s.facility, &excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
			Font: &excelize.Font{Bold: true},
		}},
		{&s.busy, &excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top", WrapText: true},
		}},
		{&s.free, &excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFFFFF"}, Pattern: 1},
		}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return sheetStyles{}, fmt.Errorf("error creating style: %w", err)
		}
		*d.dst = id
	}
	return s, nil
}
