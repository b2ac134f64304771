package order

import (
	"fmt"

	"ms-orders/internal/models"
	"ms-orders/internal/order/db"
)

// ErrNotFound aliases the store's not-found error so callers only need
// this package for the full taxonomy.
var ErrNotFound = db.ErrOrderNotFound

// ErrDuplicateOrderCode surfaces a persistent order-code collision after
// the internal retry.
var ErrDuplicateOrderCode = db.ErrDuplicateOrderCode

// ValidationError reports a rejected order draft. Always a client error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IllegalTransitionError reports a status write outside the transition
// graph.
type IllegalTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}
