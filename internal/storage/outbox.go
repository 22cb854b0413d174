package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/linemk/online-store/internal/domain/models"
)

// OutboxStorage — таблица исходящих событий.
// Insert выполняется в транзакции бизнес-операции, чтение и отметка отправки вне её.
type OutboxStorage interface {
	Insert(ctx context.Context, q Querier, event *models.OutboxEvent) error
	// FetchPending возвращает неотправленные события в порядке записи
	FetchPending(ctx context.Context, limit int) ([]*models.OutboxEvent, error)
	MarkSent(ctx context.Context, id int64) error
}

type outboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) OutboxStorage {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Insert(ctx context.Context, q Querier, event *models.OutboxEvent) error {
	query := `INSERT INTO outbox (topic, key, payload, created_at)
	          VALUES ($1, $2, $3, NOW())
	          RETURNING id, created_at`
	err := q.QueryRowContext(ctx, query, event.Topic, event.Key, []byte(event.Payload)).
		Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", Classify(err))
	}
	return nil
}

func (r *outboxRepository) FetchPending(ctx context.Context, limit int) ([]*models.OutboxEvent, error) {
	query := `
		SELECT id, topic, key, payload, created_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var events []*models.OutboxEvent
	for rows.Next() {
		e := &models.OutboxEvent{}
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Topic, &e.Key, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Payload = payload
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE outbox SET sent_at = NOW() WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to mark outbox event %d as sent: %w", id, err)
	}
	return nil
}
