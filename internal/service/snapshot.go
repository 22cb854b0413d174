package service

import (
	"context"

	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/storage"
)

// SnapshotLine — строка корзины вместе с товаром, прочитанным в транзакции оформления
type SnapshotLine struct {
	Item    *models.CartItem
	Product *models.Product
}

// CartSnapshotReader читает корзину и связывает её строки с каталогом
type CartSnapshotReader struct {
	cart     storage.CartStorage
	products storage.ProductStorage
}

func NewCartSnapshotReader(cart storage.CartStorage, products storage.ProductStorage) *CartSnapshotReader {
	return &CartSnapshotReader{cart: cart, products: products}
}

// Snapshot возвращает строки корзины в порядке добавления.
// Товары читаются одним запросом с блокировкой строк по возрастанию id.
func (r *CartSnapshotReader) Snapshot(ctx context.Context, q storage.Querier, userID int64) ([]SnapshotLine, error) {
	items, err := r.cart.GetCartItemsByUserID(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	products, err := r.products.LockProductsByIDs(ctx, q, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]SnapshotLine, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		lines = append(lines, SnapshotLine{Item: item, Product: product})
	}
	return lines, nil
}
