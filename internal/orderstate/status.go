// Package orderstate governs the lifecycle of a materialized order:
// pending -> preparing -> completed, with completed terminal and immutable.
package orderstate

import (
	"errors"
	"fmt"
)

const (
	StatusPending   = "pending"
	StatusPreparing = "preparing"
	StatusCompleted = "completed"

	PaymentPending = "pending"
	PaymentSuccess = "success"

	MethodCash = "cash"
	MethodUPI  = "upi"
)

var transitions = map[string][]string{
	StatusPending:   {StatusPreparing},
	StatusPreparing: {StatusCompleted},
	StatusCompleted: {},
}

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrAlreadyCompleted guards the terminal state: any mutation attempt
	// against a completed order fails loudly, never silently.
	ErrAlreadyCompleted = errors.New("order is already completed")

	// ErrPaymentRequired blocks kitchen work before payment is confirmed.
	// Status transitions never collect payment; they only consume it.
	ErrPaymentRequired = errors.New("payment must be confirmed before preparing")

	ErrNotCashOrder     = errors.New("order is not a cash order")
	ErrAlreadyCollected = errors.New("payment already collected")
	ErrNotCollectable   = errors.New("order is not awaiting cash collection")
)

type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Code() string { return "INVALID_STATUS_TRANSITION" }

func IsValidStatus(status string) bool {
	_, ok := transitions[status]
	return ok
}

func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks a requested status change against the current
// row state. Order of checks matters: the terminal guard wins over the
// transition table so a completed order always answers ORDER_ALREADY_COMPLETED.
func ValidateTransition(currentStatus, currentPayment, to string) error {
	if currentStatus == StatusCompleted {
		return ErrAlreadyCompleted
	}
	if !CanTransition(currentStatus, to) {
		return &TransitionError{From: currentStatus, To: to}
	}
	if to == StatusPreparing && currentPayment != PaymentSuccess {
		return ErrPaymentRequired
	}
	return nil
}

// ValidateCashCollection checks that an order is eligible for cash
// collection: a cash order, unpaid, still pending. Double collection is
// rejected, not double-counted.
func ValidateCashCollection(method, paymentStatus, status string) error {
	if status == StatusCompleted {
		return ErrAlreadyCompleted
	}
	if method != MethodCash {
		return ErrNotCashOrder
	}
	if paymentStatus == PaymentSuccess {
		return ErrAlreadyCollected
	}
	if status != StatusPending {
		return ErrNotCollectable
	}
	return nil
}
