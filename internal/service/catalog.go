package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/storage"
	"github.com/shopspring/decimal"
)

const (
	defaultTopLimit = 5
	recentLimit     = 10
)

// ProductPatch — изменяемые поля каталога; nil оставляет текущее значение.
// Остатка здесь нет: он меняется через RestockProduct и оформление заказа.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
}

// CatalogService — просмотр и редактирование каталога
type CatalogService interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	TopProducts(ctx context.Context, limit int) ([]*models.Product, error)
	RecentProducts(ctx context.Context) ([]*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, name, description string, price decimal.Decimal, stock int) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*models.Product, error)
	RestockProduct(ctx context.Context, id int64, quantity int) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type catalogService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
	txs         storage.TxBeginner
	ledger      *InventoryLedger
}

func NewCatalogService(log *slog.Logger, productRepo storage.ProductStorage, txs storage.TxBeginner, ledger *InventoryLedger) CatalogService {
	return &catalogService{log: log, productRepo: productRepo, txs: txs, ledger: ledger}
}

func (s *catalogService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	const op = "service.CatalogService.ListProducts"

	products, err := s.productRepo.ListProducts(ctx)
	if err != nil {
		s.log.Error("failed to list products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if products == nil {
		products = []*models.Product{}
	}
	return products, nil
}

// TopProducts возвращает самые продаваемые товары
func (s *catalogService) TopProducts(ctx context.Context, limit int) ([]*models.Product, error) {
	const op = "service.CatalogService.TopProducts"
	if limit <= 0 {
		limit = defaultTopLimit
	}

	products, err := s.productRepo.ListTopSelling(ctx, limit)
	if err != nil {
		s.log.Error("failed to list top products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if products == nil {
		products = []*models.Product{}
	}
	return products, nil
}

// RecentProducts возвращает десять последних добавленных товаров
func (s *catalogService) RecentProducts(ctx context.Context) ([]*models.Product, error) {
	const op = "service.CatalogService.RecentProducts"

	products, err := s.productRepo.ListRecent(ctx, recentLimit)
	if err != nil {
		s.log.Error("failed to list recent products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if products == nil {
		products = []*models.Product{}
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	const op = "service.CatalogService.GetProduct"

	product, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		s.log.Error("failed to get product", slog.String("op", op), slog.Int64("productID", id), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, name, description string, price decimal.Decimal, stock int) (*models.Product, error) {
	const op = "service.CatalogService.CreateProduct"
	logger := s.log.With(slog.String("op", op), slog.String("name", name))

	product, err := models.NewProduct(name, description, price, stock)
	if err != nil {
		return nil, err
	}
	created, err := s.productRepo.CreateProduct(ctx, product)
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("product created", slog.Int64("productID", created.ID))
	return created, nil
}

// UpdateProduct накладывает patch на текущую карточку товара.
// Остаток в запись не попадает, поэтому параллельное оформление заказа не теряется.
func (s *catalogService) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*models.Product, error) {
	const op = "service.CatalogService.UpdateProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		product.Name = *patch.Name
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	updated, err := models.NewProduct(product.Name, product.Description, product.Price, 0)
	if err != nil {
		return nil, err
	}
	updated.ID = id

	if err := s.productRepo.UpdateProduct(ctx, updated); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		logger.Error("failed to update product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("product updated")
	return s.GetProduct(ctx, id)
}

// RestockProduct оприходует поступление товара через леджер остатков
func (s *catalogService) RestockProduct(ctx context.Context, id int64, quantity int) (*models.Product, error) {
	const op = "service.CatalogService.RestockProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", id), slog.Int("quantity", quantity))

	if quantity <= 0 {
		return nil, models.ErrNonPositiveQuantity
	}

	tx, err := s.txs.BeginTx(ctx)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stock, err := s.ledger.Restock(ctx, tx, id, quantity)
	if err != nil {
		_ = tx.Rollback()
		var notFound *ProductNotFoundError
		if !errors.As(err, &notFound) {
			logger.Error("failed to restock product", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit restock", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("product restocked", slog.Int("stock", stock))
	return s.GetProduct(ctx, id)
}

func (s *catalogService) DeleteProduct(ctx context.Context, id int64) error {
	const op = "service.CatalogService.DeleteProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	if err := s.productRepo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return &ProductNotFoundError{ProductID: id}
		}
		logger.Error("failed to delete product", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("product deleted")
	return nil
}
