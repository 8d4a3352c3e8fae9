package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"fbs/internal/config"
	"fbs/internal/events"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var ErrMirrorQueueFull = errors.New("sheets mirror queue is full")

var headerRow = []interface{}{"ID", "Facility", "Date", "Start", "End", "User", "Reason", "Created"}

// SheetsMirror appends every created booking as a row of one spreadsheet tab.
type SheetsMirror struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	queue         chan events.BookingEventPayload
	logger        zerolog.Logger

	rowCache map[string]int
	cacheMu  sync.RWMutex
}

// NewSheetsMirror authenticates with a service account key file.
func NewSheetsMirror(ctx context.Context, cfg config.SheetsConfig, logger *zerolog.Logger) (*SheetsMirror, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newSheetsMirror(srv, cfg, logger), nil
}

func newSheetsMirror(srv *sheets.Service, cfg config.SheetsConfig, logger *zerolog.Logger) *SheetsMirror {
	sheetName := cfg.SheetName
	if sheetName == "" {
		sheetName = "Bookings"
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "sheets_mirror").Logger()
	}

	return &SheetsMirror{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		queue:         make(chan events.BookingEventPayload, queueSize),
		logger:        base,
		rowCache:      make(map[string]int),
	}
}

// TestConnection проверяет подключение к таблице
func (s *SheetsMirror) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to access spreadsheet: %w", err)
	}
	return nil
}

// EnsureHeader writes the column titles into the first row.
func (s *SheetsMirror) EnsureHeader(ctx context.Context) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{headerRow}}
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetName+"!A1:H1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// WarmUpCache maps booking ids in column A to their row numbers.
func (s *SheetsMirror) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue // заголовок
		}
		if id := fmt.Sprint(row[0]); id != "" {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// AppendBooking добавляет новое бронирование
func (s *SheetsMirror) AppendBooking(ctx context.Context, b events.BookingEventPayload) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{bookingRowValues(b)}}

	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A:A", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}

	if resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(b.BookingID, row)
		}
	}
	return nil
}

// Handle subscribes the mirror to the event bus; delivery happens in Start.
func (s *SheetsMirror) Handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}

	select {
	case s.queue <- payload:
		return nil
	default:
		return ErrMirrorQueueFull
	}
}

// Start appends queued bookings until ctx is done. Rows already present after WarmUpCache are skipped.
func (s *SheetsMirror) Start(ctx context.Context) {
	s.logger.Info().Str("spreadsheet_id", s.spreadsheetID).Msg("Sheets mirror started")
	defer s.logger.Info().Msg("Sheets mirror stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case b := <-s.queue:
			if _, ok := s.getCachedRow(b.BookingID); ok {
				continue // уже в таблице
			}
			callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := s.AppendBooking(callCtx, b)
			cancel()
			if err != nil {
				s.logger.Error().Err(err).Str("booking_id", b.BookingID).Msg("append booking row")
			}
		}
	}
}

func (s *SheetsMirror) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsMirror) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func bookingRowValues(b events.BookingEventPayload) []interface{} {
	return []interface{}{
		b.BookingID,
		b.FacilityID,
		b.Date,
		b.Start,
		b.End,
		b.UserEmail,
		b.Reason,
		b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

var rangeRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// rowFromRange extracts the first row number from an A1 range like "Bookings!A10:H10".
func rowFromRange(r string) (int, bool) {
	m := rangeRowRe.FindStringSubmatch(r)
	if m == nil {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return row, true
}
