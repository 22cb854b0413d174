package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyProductName = errors.New("product name is required")
	ErrNegativePrice    = errors.New("price must not be negative")
	ErrNegativeStock    = errors.New("stock must not be negative")
	ErrPriceScale       = errors.New("price must have at most two decimal places")
)

// priceScale — число знаков после запятой в колонке products.price
const priceScale = 2

// Product представляет товар каталога
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"` // остаток на складе, всегда >= 0
	Sold        int             `json:"sold"`  // сколько единиц продано, только растёт
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewProduct создаёт товар с проверкой инвариантов
func NewProduct(name, description string, price decimal.Decimal, stock int) (*Product, error) {
	p := &Product{
		Name:        strings.TrimSpace(name),
		Description: description,
		Price:       price,
		Stock:       stock,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate проверяет, что товар не нарушает инварианты каталога
func (p *Product) Validate() error {
	if p.Name == "" {
		return ErrEmptyProductName
	}
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	if !p.Price.Equal(p.Price.Round(priceScale)) {
		return ErrPriceScale
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}
