package service

import (
	"errors"
	"fmt"

	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/storage"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrTransactionConflict = errors.New("transaction conflict, retry the request")
	ErrStoreUnavailable    = errors.New("store is temporarily unavailable")
	// ErrDuplicateRequest — оформление с тем же ключом идемпотентности ещё выполняется
	ErrDuplicateRequest   = errors.New("checkout with this idempotency key is already in progress")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
)

// Reason — причина, по которой оформление заказа прервано
type Reason string

const (
	ReasonEmptyCart           Reason = "empty_cart"
	ReasonProductNotFound     Reason = "product_not_found"
	ReasonInsufficientStock   Reason = "insufficient_stock"
	ReasonTransactionConflict Reason = "transaction_conflict"
	ReasonStoreUnavailable    Reason = "store_unavailable"
	ReasonInternal            Reason = "internal"
)

func (r Reason) sentinel() error {
	switch r {
	case ReasonEmptyCart:
		return ErrEmptyCart
	case ReasonProductNotFound:
		return ErrProductNotFound
	case ReasonInsufficientStock:
		return ErrInsufficientStock
	case ReasonTransactionConflict:
		return ErrTransactionConflict
	case ReasonStoreUnavailable:
		return ErrStoreUnavailable
	}
	return nil
}

// ProductNotFoundError — товар из корзины отсутствует в каталоге
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// InsufficientStockError — на складе меньше, чем запрошено
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): available %d, requested %d",
		e.ProductID, e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// CheckoutError — единственный тип ошибки, который возвращает Checkout.
// Err хранит исходную ошибку шага, на котором оформление прервалось.
type CheckoutError struct {
	Reason      Reason
	State       models.CheckoutState
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
	Err         error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout aborted at %s: %s: %v", e.State, e.Reason, e.Err)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// Is сопоставляет причину с сентинелом, так что errors.Is(err, ErrTransactionConflict)
// работает и для ошибок драйвера
func (e *CheckoutError) Is(target error) bool {
	s := e.Reason.sentinel()
	return s != nil && s == target
}

// Retryable сообщает, можно ли повторить запрос без изменений
func (e *CheckoutError) Retryable() bool {
	return e.Reason == ReasonTransactionConflict || e.Reason == ReasonStoreUnavailable
}

func newCheckoutError(state models.CheckoutState, err error) *CheckoutError {
	ce := &CheckoutError{State: state, Err: err}

	var stockErr *InsufficientStockError
	var notFoundErr *ProductNotFoundError
	switch {
	case errors.Is(err, ErrEmptyCart):
		ce.Reason = ReasonEmptyCart
	case errors.As(err, &stockErr):
		ce.Reason = ReasonInsufficientStock
		ce.ProductID = stockErr.ProductID
		ce.ProductName = stockErr.ProductName
		ce.Available = stockErr.Available
		ce.Requested = stockErr.Requested
	case errors.As(err, &notFoundErr):
		ce.Reason = ReasonProductNotFound
		ce.ProductID = notFoundErr.ProductID
	case errors.Is(err, storage.ErrConflict):
		ce.Reason = ReasonTransactionConflict
	case errors.Is(err, storage.ErrUnavailable):
		ce.Reason = ReasonStoreUnavailable
	default:
		ce.Reason = ReasonInternal
	}
	return ce
}
