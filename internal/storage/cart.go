package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/online-store/internal/domain/models"
)

var ErrCartItemNotFound = errors.New("cart item not found")

// CartStorage описывает методы для работы с корзиной.
type CartStorage interface {
	// GetCartItemsByUserID возвращает строки корзины в порядке добавления
	GetCartItemsByUserID(ctx context.Context, q Querier, userID int64) ([]*models.CartItem, error)
	// ListCartWithProducts возвращает корзину вместе с товарами, для выдачи клиенту
	ListCartWithProducts(ctx context.Context, userID int64) ([]*models.CartItem, error)
	// AddItem добавляет товар в корзину; если строка уже есть, количество складывается
	AddItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	// DeleteItem удаляет строку корзины, принадлежащую пользователю
	DeleteItem(ctx context.Context, userID, itemID int64) error
	// DeleteItemTx удаляет строку корзины внутри транзакции оформления заказа
	DeleteItemTx(ctx context.Context, q Querier, itemID int64) error
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetCartItemsByUserID(ctx context.Context, q Querier, userID int64) ([]*models.CartItem, error) {
	query := `SELECT id, user_id, product_id, quantity, created_at
	          FROM cart_items
	          WHERE user_id = $1
	          ORDER BY id`
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, Classify(err)
	}
	defer rows.Close()

	var items []*models.CartItem
	for rows.Next() {
		item := &models.CartItem{}
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(err)
	}
	return items, nil
}

func (r *cartRepository) ListCartWithProducts(ctx context.Context, userID int64) ([]*models.CartItem, error) {
	query := `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at,
		       p.id, p.name, p.description, p.price, p.stock, p.sold, p.created_at, p.updated_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	defer rows.Close()

	var items []*models.CartItem
	for rows.Next() {
		item := &models.CartItem{Product: &models.Product{}}
		p := item.Product
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Sold, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *cartRepository) AddItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	query := `INSERT INTO cart_items (user_id, product_id, quantity, created_at)
	          VALUES ($1, $2, $3, NOW())
	          ON CONFLICT (user_id, product_id)
	          DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	          RETURNING id, quantity, created_at`
	err := r.db.QueryRowContext(ctx, query, item.UserID, item.ProductID, item.Quantity).
		Scan(&item.ID, &item.Quantity, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}
	return item, nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, userID, itemID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *cartRepository) DeleteItemTx(ctx context.Context, q Querier, itemID int64) error {
	res, err := q.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1", itemID)
	if err != nil {
		return Classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}
