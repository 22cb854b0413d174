package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/storage"
)

var ErrCartItemNotFound = errors.New("cart item not found")

// CartService управляет строками корзины вне оформления заказа
type CartService interface {
	ListCart(ctx context.Context, userID int64) ([]*models.CartItem, error)
	AddToCart(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error)
	RemoveFromCart(ctx context.Context, userID, itemID int64) error
}

type cartService struct {
	log         *slog.Logger
	cartRepo    storage.CartStorage
	productRepo storage.ProductStorage
}

func NewCartService(log *slog.Logger, cartRepo storage.CartStorage, productRepo storage.ProductStorage) CartService {
	return &cartService{log: log, cartRepo: cartRepo, productRepo: productRepo}
}

func (s *cartService) ListCart(ctx context.Context, userID int64) ([]*models.CartItem, error) {
	const op = "service.CartService.ListCart"

	items, err := s.cartRepo.ListCartWithProducts(ctx, userID)
	if err != nil {
		s.log.Error("failed to list cart", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list cart: %w", op, err)
	}
	if items == nil {
		items = []*models.CartItem{}
	}
	return items, nil
}

// AddToCart добавляет товар в корзину.
// Остаток проверяется заранее для удобства клиента, окончательная проверка будет при оформлении.
func (s *cartService) AddToCart(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	const op = "service.CartService.AddToCart"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.Int64("productID", productID),
		slog.Int("quantity", quantity),
	)

	item, err := models.NewCartItem(userID, productID, quantity)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			logger.Warn("product not found")
			return nil, &ProductNotFoundError{ProductID: productID}
		}
		logger.Error("failed to get product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
	}
	if product.Stock < quantity {
		logger.Warn("not enough stock", slog.Int("available", product.Stock))
		return nil, &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.Stock,
			Requested:   quantity,
		}
	}

	saved, err := s.cartRepo.AddItem(ctx, item)
	if err != nil {
		logger.Error("failed to add cart item", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to add cart item: %w", op, err)
	}
	saved.Product = product
	logger.Info("item added to cart", slog.Int64("itemID", saved.ID), slog.Int("total quantity", saved.Quantity))
	return saved, nil
}

func (s *cartService) RemoveFromCart(ctx context.Context, userID, itemID int64) error {
	const op = "service.CartService.RemoveFromCart"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("itemID", itemID))

	if err := s.cartRepo.DeleteItem(ctx, userID, itemID); err != nil {
		if errors.Is(err, storage.ErrCartItemNotFound) {
			return ErrCartItemNotFound
		}
		logger.Error("failed to delete cart item", slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete cart item: %w", op, err)
	}
	logger.Info("item removed from cart")
	return nil
}
