package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrGuestOrCustomer marks the identity rule: exactly one of customerId
	// or (guestName, guestEmail) must be populated.
	ErrGuestOrCustomer = errors.New("exactly one of customer or guest identity must be provided")

	ErrNoItems = errors.New("at least one item is required")

	// ErrPaymentConflict is returned when a verified callback names a payment
	// id different from the one the order was already paid under.
	ErrPaymentConflict = errors.New("order already paid with a different payment id")
)

// NotFoundError identifies a missing catalog reference by kind ("product" or
// "variant") and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InsufficientStockError names the item whose stock check failed.
type InsufficientStockError struct {
	Kind     string
	ID       string
	Quantity int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s %s", e.Kind, e.ID)
}
