package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order представляет заказ, созданный при оформлении корзины.
// После создания заказ не меняется.
type Order struct {
	ID        uuid.UUID       `json:"id"`
	UserID    int64           `json:"user_id"`
	Total     decimal.Decimal `json:"total"` // сумма подытогов всех позиций
	CreatedAt time.Time       `json:"created_at"`
	Items     []OrderItem     `json:"items"`
}

// OrderItem — позиция заказа с ценой на момент покупки
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName *string         `json:"product_name,omitempty"` // nil, если товар уже удалён из каталога
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Subtotal возвращает стоимость позиции
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsTotal пересчитывает сумму по позициям; для корректного заказа равна Total
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}
