package publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/storage"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
	// подряд неудачных отправок до размыкания
	tripAfterFailures = 5
)

// MessageWriter — то, что нужно поллеру от *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter создаёт writer без фиксированного топика: топик берётся из события
func NewKafkaWriter(brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
}

// OutboxPoller переносит события из таблицы outbox в брокер.
// Доставка "как минимум один раз": событие помечается отправленным только после успешной записи.
type OutboxPoller struct {
	log       *slog.Logger
	repo      storage.OutboxStorage
	writer    MessageWriter
	breaker   *gobreaker.CircuitBreaker[any]
	interval  time.Duration
	batchSize int
}

func NewOutboxPoller(
	log *slog.Logger,
	repo storage.OutboxStorage,
	writer MessageWriter,
	interval time.Duration,
	batchSize int,
) *OutboxPoller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	log = log.With(slog.String("component", "outbox-poller"))

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "kafka-outbox",
		MaxRequests: 1,
		Timeout:     10 * interval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfterFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &OutboxPoller{
		log:       log,
		repo:      repo,
		writer:    writer,
		breaker:   breaker,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run опрашивает outbox до отмены контекста
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("outbox poller started", slog.Duration("interval", p.interval))
	for {
		select {
		case <-ticker.C:
			p.ProcessPending(ctx)
		case <-ctx.Done():
			p.log.Info("outbox poller stopped")
			return
		}
	}
}

// ProcessPending отправляет одну пачку событий и возвращает число отправленных
func (p *OutboxPoller) ProcessPending(ctx context.Context) int {
	const op = "publisher.OutboxPoller.ProcessPending"
	logger := p.log.With(slog.String("op", op))

	if p.breaker.State() == gobreaker.StateOpen {
		return 0
	}

	events, err := p.repo.FetchPending(ctx, p.batchSize)
	if err != nil {
		logger.Error("failed to fetch outbox events", slog.Any("error", err))
		return 0
	}

	sent := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				logger.Warn("broker unavailable, postponing outbox batch", slog.Int("left", len(events)-sent))
				return sent
			}
			logger.Error("failed to publish outbox event",
				slog.Int64("eventID", event.ID),
				slog.String("topic", event.Topic),
				slog.Any("error", err),
			)
			// порядок событий внутри топика важнее скорости: остаток пачки ждёт следующего тика
			return sent
		}

		if err := p.repo.MarkSent(ctx, event.ID); err != nil {
			// событие уйдёт повторно, потребители дедуплицируют по order_id
			logger.Error("failed to mark outbox event as sent", slog.Int64("eventID", event.ID), slog.Any("error", err))
			return sent
		}
		sent++
	}

	if sent > 0 {
		logger.Debug("outbox events published", slog.Int("count", sent))
	}
	return sent
}

func (p *OutboxPoller) publish(ctx context.Context, event *models.OutboxEvent) error {
	msg := kafka.Message{
		Topic: event.Topic,
		Key:   []byte(event.Key),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Topic)},
		},
		Time: event.CreatedAt,
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	return err
}
