package reservation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusActive    = "ACTIVE"
	StatusPaid      = "PAID"
	StatusExpired   = "EXPIRED"
	StatusCancelled = "CANCELLED"
)

var ErrNotFound = errors.New("reservation not found")

// ClosedError is returned when an operation needs an ACTIVE reservation but
// the reservation has already reached a terminal state.
type ClosedError struct {
	Status string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("reservation is %s", e.Status)
}

func (e *ClosedError) Code() string {
	if e.Status == StatusExpired {
		return "RESERVATION_EXPIRED"
	}
	return "RESERVATION_CLOSED"
}

// Tenant carries the restaurant fields the manager needs; the HTTP layer
// loads the full row.
type Tenant struct {
	ID       int64
	Slug     string
	Currency string
	Timezone string
	TaxRate  decimal.Decimal
}

type CartLine struct {
	MenuItemID int64
	Quantity   int32
	Attributes map[string]any
	Notes      string
}

// LineSnapshot is the frozen form of a cart line: name and price captured at
// reservation time, never recomputed from the live menu.
type LineSnapshot struct {
	MenuItemID   int64           `json:"menu_item_id"`
	Name         string          `json:"name"`
	Quantity     int32           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
	Attributes   map[string]any  `json:"attributes,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

type Reservation struct {
	ID            uuid.UUID
	RestaurantID  int64
	Items         []LineSnapshot
	CustomerName  string
	TableNumber   string
	PaymentMethod string
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	Status        string
	ExpiresAt     time.Time
	PaidOrderID   *int64
}

// PaidOrder is the outcome of MarkPaid. AlreadyPaid marks the idempotent
// path: a webhook or client retry hit a reservation that already produced its
// order.
type PaidOrder struct {
	OrderID     int64
	OrderNumber string
	AlreadyPaid bool
}
