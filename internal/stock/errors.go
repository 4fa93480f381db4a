package stock

import (
	"errors"
	"fmt"
)

var ErrItemNotFound = errors.New("menu item not found")

// InsufficientStockError is the expected business outcome of a failed
// reservation, not an infrastructure failure. It names the offending item so
// the caller can report exactly which cart line failed.
type InsufficientStockError struct {
	ItemID    int64
	ItemName  string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ItemName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Code() string { return "INSUFFICIENT_STOCK" }

// ItemUnavailableError covers items that exist but cannot be ordered
// (deactivated, or flagged unavailable by the owner).
type ItemUnavailableError struct {
	ItemID   int64
	ItemName string
	Reason   string
}

func (e *ItemUnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s is unavailable: %s", e.ItemName, e.Reason)
	}
	return fmt.Sprintf("%s is unavailable", e.ItemName)
}

func (e *ItemUnavailableError) Code() string { return "ITEM_UNAVAILABLE" }
