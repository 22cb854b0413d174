package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/storage"
	"github.com/shopspring/decimal"
)

// OrderMaterializer превращает снимок корзины в заказ
type OrderMaterializer struct {
	orders storage.OrderStorage
	cart   storage.CartStorage
	outbox storage.OutboxStorage
	ledger *InventoryLedger
	newID  func() uuid.UUID
}

// NewOrderMaterializer создаёт материализатор. outbox может быть nil, тогда событие не пишется.
func NewOrderMaterializer(orders storage.OrderStorage, cart storage.CartStorage, outbox storage.OutboxStorage, ledger *InventoryLedger) *OrderMaterializer {
	return &OrderMaterializer{
		orders: orders,
		cart:   cart,
		outbox: outbox,
		ledger: ledger,
		newID:  uuid.New,
	}
}

// Materialize создаёт заказ и позиции, списывает остатки и удаляет строки корзины.
// Ошибки возвращаются как есть, откат делает координатор.
func (m *OrderMaterializer) Materialize(
	ctx context.Context,
	q storage.Querier,
	userID int64,
	lines []SnapshotLine,
	perLine []decimal.Decimal,
	grandTotal decimal.Decimal,
) (*models.Order, error) {
	if len(lines) != len(perLine) {
		return nil, fmt.Errorf("materialize: %d lines but %d line amounts", len(lines), len(perLine))
	}

	order := &models.Order{
		ID:     m.newID(),
		UserID: userID,
		Total:  grandTotal,
		Items:  make([]models.OrderItem, 0, len(lines)),
	}
	if err := m.orders.CreateOrder(ctx, q, order); err != nil {
		return nil, err
	}

	for _, line := range lines {
		name := line.Product.Name
		item := models.OrderItem{
			OrderID:     order.ID,
			ProductID:   line.Product.ID,
			ProductName: &name,
			Quantity:    line.Item.Quantity,
			UnitPrice:   line.Product.Price,
		}
		if err := m.orders.CreateOrderItem(ctx, q, &item); err != nil {
			return nil, err
		}
		if err := m.ledger.Reserve(ctx, q, line.Product.ID, line.Item.Quantity); err != nil {
			return nil, err
		}
		if err := m.cart.DeleteItemTx(ctx, q, line.Item.ID); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if m.outbox != nil {
		event, err := orderPlacedEvent(order)
		if err != nil {
			return nil, err
		}
		if err := m.outbox.Insert(ctx, q, event); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func orderPlacedEvent(order *models.Order) (*models.OutboxEvent, error) {
	payload := models.OrderPlacedPayload{
		OrderID: order.ID.String(),
		UserID:  order.UserID,
		Total:   order.Total.StringFixed(2),
		Items:   make([]models.OrderPlacedItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, models.OrderPlacedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		})
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", models.TopicOrderPlaced, err)
	}
	return &models.OutboxEvent{
		Topic:   models.TopicOrderPlaced,
		Key:     order.ID.String(),
		Payload: raw,
	}, nil
}
