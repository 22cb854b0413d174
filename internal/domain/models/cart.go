package models

import (
	"errors"
	"time"
)

var ErrNonPositiveQuantity = errors.New("quantity must be positive")

// CartItem — строка корзины пользователя. На пару (пользователь, товар) не больше одной строки.
type CartItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	Product   *Product  `json:"product,omitempty"` // заполняется при выдаче корзины
}

// NewCartItem создаёт строку корзины, количество должно быть > 0
func NewCartItem(userID, productID int64, quantity int) (*CartItem, error) {
	if quantity <= 0 {
		return nil, ErrNonPositiveQuantity
	}
	return &CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	}, nil
}
