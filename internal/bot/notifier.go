package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fbs/internal/config"
	"fbs/internal/domain"
	"fbs/internal/events"
	"fbs/internal/timeutil"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var ErrNotifyQueueFull = errors.New("manager notification queue is full")

// Sender is the part of tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ManagerNotifier sends a message to every manager chat when a booking is created.
type ManagerNotifier struct {
	sender   Sender
	managers []int64
	catalog  domain.FacilityCatalog
	queue    chan events.BookingEventPayload
	logger   zerolog.Logger
}

// NewBotAPI connects to Telegram with the configured token.
func NewBotAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	botAPI.Debug = cfg.Debug
	return botAPI, nil
}

func NewManagerNotifier(sender Sender, cfg config.TelegramConfig, catalog domain.FacilityCatalog, logger *zerolog.Logger) *ManagerNotifier {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "telegram_notifier").Logger()
	}

	return &ManagerNotifier{
		sender:   sender,
		managers: append([]int64(nil), cfg.Managers...),
		catalog:  catalog,
		queue:    make(chan events.BookingEventPayload, queueSize),
		logger:   base,
	}
}

// Handle is subscribed to booking_created; messages go out from Start.
func (n *ManagerNotifier) Handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}

	select {
	case n.queue <- payload:
		return nil
	default:
		return ErrNotifyQueueFull
	}
}

func (n *ManagerNotifier) Start(ctx context.Context) {
	n.logger.Info().Int("managers", len(n.managers)).Msg("Telegram notifier started")
	defer n.logger.Info().Msg("Telegram notifier stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case b := <-n.queue:
			n.notifyManagers(b)
		}
	}
}

// notifyManagers уведомление менеджеров о новом бронировании
func (n *ManagerNotifier) notifyManagers(b events.BookingEventPayload) {
	text := n.formatBooking(b)
	for _, managerID := range n.managers {
		if _, err := n.sender.Send(tgbotapi.NewMessage(managerID, text)); err != nil {
			n.logger.Error().Err(err).Int64("manager_id", managerID).Str("booking_id", b.BookingID).Msg("Failed to notify manager")
		}
	}
}

func (n *ManagerNotifier) formatBooking(b events.BookingEventPayload) string {
	facility := b.FacilityID
	if n.catalog != nil {
		if f, err := n.catalog.Get(b.FacilityID); err == nil {
			facility = fmt.Sprintf("%s (%s)", f.Name, f.ID)
		}
	}

	date := b.Date
	if d, err := timeutil.ParseDate(b.Date); err == nil {
		date = d.Format("02.01.2006")
	}

	reason := b.Reason
	if reason == "" {
		reason = "-"
	}

	return fmt.Sprintf(`🆕 New booking

🏢 Room: %s
📅 Date: %s, %s-%s
👤 Requested by: %s
💬 Reason: %s
🆔 ID: %s`,
		facility,
		date, b.Start, b.End,
		b.UserEmail,
		reason,
		b.BookingID)
}
