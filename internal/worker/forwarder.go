package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fbs/internal/config"
	"fbs/internal/events"
	"fbs/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

var ErrQueueFull = errors.New("event queue is full")

const deadLetterTimeout = 2 * time.Second

// MessageWriter is the subset of *kafka.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetter is an event that exhausted its retries.
type DeadLetter struct {
	Event    events.Event `json:"event"`
	Error    string       `json:"error"`
	Attempts int          `json:"attempts"`
	FailedAt time.Time    `json:"failed_at"`
}

// NewKafkaWriter builds a writer that partitions by message key.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID},
	}
}

// EventForwarder publishes domain events to the broker off the request path.
// Events that keep failing land in a Redis dead-letter list.
type EventForwarder struct {
	writer        MessageWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan events.Event
	deadLetterKey string
	logger        *zerolog.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewEventForwarder builds a forwarder with sane defaults. redisClient may be nil.
func NewEventForwarder(writer MessageWriter, redisClient *redis.Client, retry RetryPolicy, queueSize int, deadLetterKey string, logger *zerolog.Logger) *EventForwarder {
	retry = retry.withDefaults()
	if queueSize <= 0 {
		queueSize = 100
	}
	if deadLetterKey == "" {
		deadLetterKey = "fbs:events:deadletter"
	}
	l := logger.With().Str("component", "event_forwarder").Logger()

	return &EventForwarder{
		writer:        writer,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan events.Event, queueSize),
		deadLetterKey: deadLetterKey,
		logger:        &l,
		sleep:         sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Handle is an events.EventHandler; it only enqueues and never blocks the publisher.
func (f *EventForwarder) Handle(event *events.Event) error {
	select {
	case f.queue <- *event:
		return nil
	default:
		go f.pushDeadLetterAsync(*event, ErrQueueFull)
		return ErrQueueFull
	}
}

// pushDeadLetterAsync runs off the publisher's goroutine, bounded by deadLetterTimeout.
func (f *EventForwarder) pushDeadLetterAsync(ev events.Event, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), deadLetterTimeout)
	defer cancel()
	f.pushDeadLetter(ctx, ev, cause, 0)
}

// Start drains the queue until ctx is done. Events still queued on shutdown go to the dead-letter list.
func (f *EventForwarder) Start(ctx context.Context) {
	f.logger.Info().Msg("Event forwarder started")
	defer f.logger.Info().Msg("Event forwarder stopped")

	for {
		select {
		case <-ctx.Done():
			f.drain()
			return
		case ev := <-f.queue:
			f.process(ctx, ev)
		}
	}
}

func (f *EventForwarder) drain() {
	for {
		select {
		case ev := <-f.queue:
			f.pushDeadLetter(context.Background(), ev, errors.New("shutdown before delivery"), 0)
		default:
			return
		}
	}
}

func (f *EventForwarder) process(ctx context.Context, ev events.Event) {
	msg, err := toMessage(ev)
	if err != nil {
		f.pushDeadLetter(ctx, ev, err, 0)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= f.retryPolicy.MaxRetries; attempt++ {
		lastErr = f.writer.WriteMessages(ctx, msg)
		if lastErr == nil {
			metrics.IncEventForwarded("sent")
			f.logger.Debug().Str("event_id", ev.ID).Str("type", ev.Type).Int("attempt", attempt).Msg("Event forwarded")
			return
		}
		if attempt == f.retryPolicy.MaxRetries {
			break
		}

		metrics.IncEventForwarded("retry")
		delay := f.retryPolicy.NextDelay(attempt)
		f.logger.Warn().Err(lastErr).Str("event_id", ev.ID).Int("attempt", attempt).Dur("delay", delay).Msg("Event forward failed, retrying")
		if err := f.sleep(ctx, delay); err != nil {
			lastErr = fmt.Errorf("retry interrupted: %w", lastErr)
			break
		}
	}

	f.pushDeadLetter(context.Background(), ev, lastErr, f.retryPolicy.MaxRetries)
}

func toMessage(ev events.Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.Key),
		Value: value,
		Time:  ev.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.ID)},
		},
	}, nil
}

func (f *EventForwarder) pushDeadLetter(ctx context.Context, ev events.Event, cause error, attempts int) {
	metrics.IncEventForwarded("dead_letter")
	f.logger.Error().Err(cause).Str("event_id", ev.ID).Str("type", ev.Type).Msg("Event moved to dead letter")

	if f.redis == nil {
		return
	}
	entry := DeadLetter{Event: ev, Attempts: attempts, FailedAt: time.Now().UTC()}
	if cause != nil {
		entry.Error = cause.Error()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		f.logger.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to encode dead letter")
		return
	}
	if err := f.redis.LPush(ctx, f.deadLetterKey, data).Err(); err != nil {
		f.logger.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to push dead letter")
	}
}

// DeadLetters returns up to limit of the most recent dead letters.
func (f *EventForwarder) DeadLetters(ctx context.Context, limit int64) ([]DeadLetter, error) {
	if f.redis == nil {
		return nil, errors.New("redis client is nil")
	}
	raw, err := f.redis.LRange(ctx, f.deadLetterKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}
	out := make([]DeadLetter, 0, len(raw))
	for _, item := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(item), &dl); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, dl)
	}
	return out, nil
}

func (f *EventForwarder) Close() error {
	return f.writer.Close()
}
