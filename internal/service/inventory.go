package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/storage"
)

// InventoryLedger владеет остатками товаров.
// Все операции выполняются внутри транзакции вызывающего.
type InventoryLedger struct {
	products  storage.ProductStorage
	trackSold bool
}

// NewInventoryLedger создаёт леджер. trackSold включает учёт проданных единиц.
func NewInventoryLedger(products storage.ProductStorage, trackSold bool) *InventoryLedger {
	return &InventoryLedger{products: products, trackSold: trackSold}
}

// Check сверяет строку снимка с остатком, прочитанным в текущей транзакции
func (l *InventoryLedger) Check(line SnapshotLine) error {
	if line.Product.Stock < line.Item.Quantity {
		return &InsufficientStockError{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Available:   line.Product.Stock,
			Requested:   line.Item.Quantity,
		}
	}
	return nil
}

// Reserve атомарно проверяет и списывает остаток.
// Списание условное (stock >= quantity), поэтому отрицательный остаток невозможен.
func (l *InventoryLedger) Reserve(ctx context.Context, q storage.Querier, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("reserve product %d: quantity must be positive, got %d", productID, quantity)
	}

	_, err := l.products.DecrementStock(ctx, q, productID, quantity, l.trackSold)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrStockNotDecremented) {
		return err
	}

	// строка не обновилась: выясняем, товара нет или остатка мало
	product, err := l.products.GetProductByIDTx(ctx, q, productID)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return &ProductNotFoundError{ProductID: productID}
		}
		return storage.Classify(err)
	}
	return &InsufficientStockError{
		ProductID:   product.ID,
		ProductName: product.Name,
		Available:   product.Stock,
		Requested:   quantity,
	}
}

// Restock оприходует поступление: остаток увеличивается на quantity относительно текущего значения.
func (l *InventoryLedger) Restock(ctx context.Context, q storage.Querier, productID int64, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("restock product %d: %w", productID, models.ErrNonPositiveQuantity)
	}

	stock, err := l.products.IncrementStock(ctx, q, productID, quantity)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return 0, &ProductNotFoundError{ProductID: productID}
		}
		return 0, err
	}
	return stock, nil
}
