package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutState — состояние оформления заказа
type CheckoutState string

const (
	CheckoutStateStart       CheckoutState = "start"
	CheckoutStateLoad        CheckoutState = "load"
	CheckoutStateValidate    CheckoutState = "validate"
	CheckoutStateMaterialize CheckoutState = "materialize"
	CheckoutStateCommit      CheckoutState = "commit"
	CheckoutStateCommitted   CheckoutState = "committed"
	CheckoutStateAborted     CheckoutState = "aborted"
)

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCommitted || s == CheckoutStateAborted
}

func (s CheckoutState) String() string {
	return string(s)
}

// CheckoutResult — итог успешного оформления
type CheckoutResult struct {
	OrderID uuid.UUID       `json:"order_id"`
	Total   decimal.Decimal `json:"total"`
}
