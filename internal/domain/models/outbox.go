package models

import (
	"encoding/json"
	"time"
)

const TopicOrderPlaced = "order.placed"

// OutboxEvent — событие, записанное в той же транзакции, что и изменение данных
type OutboxEvent struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// OrderPlacedPayload — содержимое события order.placed
type OrderPlacedPayload struct {
	OrderID string            `json:"order_id"`
	UserID  int64             `json:"user_id"`
	Total   string            `json:"total"`
	Items   []OrderPlacedItem `json:"items"`
}

type OrderPlacedItem struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}
