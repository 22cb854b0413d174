package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linemk/online-store/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrder вставляет шапку заказа в рамках транзакции.
	CreateOrder(ctx context.Context, q Querier, order *models.Order) error
	// CreateOrderItem вставляет позицию заказа в рамках транзакции.
	CreateOrderItem(ctx context.Context, q Querier, item *models.OrderItem) error
	// GetOrdersByUserID возвращает заказы пользователя вместе с позициями, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	GetOrderByID(ctx context.Context, userID int64, orderID uuid.UUID) (*models.Order, error)
}

// orderRepository — конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrder(ctx context.Context, q Querier, order *models.Order) error {
	query := `INSERT INTO orders (id, user_id, total, created_at)
	          VALUES ($1, $2, $3, NOW())
	          RETURNING created_at`
	if err := q.QueryRowContext(ctx, query, order.ID, order.UserID, order.Total).Scan(&order.CreatedAt); err != nil {
		return fmt.Errorf("failed to create order: %w", Classify(err))
	}
	return nil
}

func (r *orderRepository) CreateOrderItem(ctx context.Context, q Querier, item *models.OrderItem) error {
	query := `INSERT INTO order_items (order_id, product_id, quantity, unit_price)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id`
	if err := q.QueryRowContext(ctx, query, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice).Scan(&item.ID); err != nil {
		return fmt.Errorf("failed to create order item: %w", Classify(err))
	}
	return nil
}

// GetOrdersByUserID читает заказы и затем одним запросом все их позиции.
// Имя товара берётся из каталога через LEFT JOIN, у удалённого товара оно пустое.
func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	query := `
		SELECT id, user_id, total, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := rows.Scan(&order.ID, &order.UserID, &order.Total, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, userID int64, orderID uuid.UUID) (*models.Order, error) {
	order := &models.Order{}
	row := r.db.QueryRowContext(ctx, "SELECT id, user_id, total, created_at FROM orders WHERE id = $1 AND user_id = $2", orderID, userID)
	if err := row.Scan(&order.ID, &order.UserID, &order.Total, &order.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if err := r.attachItems(ctx, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) attachItems(ctx context.Context, orders []*models.Order) error {
	ids := make([]string, 0, len(orders))
	byID := make(map[uuid.UUID]*models.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID.String())
		byID[o.ID] = o
	}

	query := `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1::uuid[])
		ORDER BY oi.id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item models.OrderItem
			name sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &name, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if name.Valid {
			item.ProductName = &name.String
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}
