package engine

import "errors"

var (
	// ErrInvalidQuantity rejects an order submitted with zero quantity.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrOverfill is an invariant violation: a fill larger than the order's
	// remaining quantity. It never escapes correct use of the public API.
	ErrOverfill = errors.New("overfill")
	// ErrOrderNotFound is returned when cancelling an id that is not resting.
	ErrOrderNotFound = errors.New("order not found")
	// ErrDuplicateOrder is an invariant violation: the id is already indexed.
	ErrDuplicateOrder = errors.New("duplicate order id")
)
