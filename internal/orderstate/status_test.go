package orderstate

import (
	"errors"
	"testing"
)

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		name      string
		status    string
		payment   string
		to        string
		expectErr error
	}{
		{
			name:    "pending to preparing with payment",
			status:  StatusPending,
			payment: PaymentSuccess,
			to:      StatusPreparing,
		},
		{
			name:      "pending to preparing without payment",
			status:    StatusPending,
			payment:   PaymentPending,
			to:        StatusPreparing,
			expectErr: ErrPaymentRequired,
		},
		{
			name:    "preparing to completed",
			status:  StatusPreparing,
			payment: PaymentSuccess,
			to:      StatusCompleted,
		},
		{
			name:      "pending cannot skip to completed",
			status:    StatusPending,
			payment:   PaymentSuccess,
			to:        StatusCompleted,
			expectErr: &TransitionError{From: StatusPending, To: StatusCompleted},
		},
		{
			name:      "completed is terminal",
			status:    StatusCompleted,
			payment:   PaymentSuccess,
			to:        StatusPreparing,
			expectErr: ErrAlreadyCompleted,
		},
		{
			name:      "completed rejects even completed",
			status:    StatusCompleted,
			payment:   PaymentSuccess,
			to:        StatusCompleted,
			expectErr: ErrAlreadyCompleted,
		},
		{
			name:      "no backwards transition",
			status:    StatusPreparing,
			payment:   PaymentSuccess,
			to:        StatusPending,
			expectErr: &TransitionError{From: StatusPreparing, To: StatusPending},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTransition(tc.status, tc.payment, tc.to)
			if tc.expectErr == nil {
				if err != nil {
					t.Fatalf("expected transition to be allowed, got %v", err)
				}
				return
			}
			var wantTransition *TransitionError
			if errors.As(tc.expectErr, &wantTransition) {
				var got *TransitionError
				if !errors.As(err, &got) {
					t.Fatalf("expected TransitionError, got %v", err)
				}
				if got.From != wantTransition.From || got.To != wantTransition.To {
					t.Fatalf("expected transition error %v, got %v", wantTransition, got)
				}
				return
			}
			if !errors.Is(err, tc.expectErr) {
				t.Fatalf("expected %v, got %v", tc.expectErr, err)
			}
		})
	}
}

func TestValidateCashCollection(t *testing.T) {
	cases := []struct {
		name      string
		method    string
		payment   string
		status    string
		expectErr error
	}{
		{
			name:    "collectable cash order",
			method:  MethodCash,
			payment: PaymentPending,
			status:  StatusPending,
		},
		{
			name:      "upi orders never collect cash",
			method:    MethodUPI,
			payment:   PaymentPending,
			status:    StatusPending,
			expectErr: ErrNotCashOrder,
		},
		{
			name:      "double collection rejected",
			method:    MethodCash,
			payment:   PaymentSuccess,
			status:    StatusPreparing,
			expectErr: ErrAlreadyCollected,
		},
		{
			name:      "completed order rejected",
			method:    MethodCash,
			payment:   PaymentSuccess,
			status:    StatusCompleted,
			expectErr: ErrAlreadyCompleted,
		},
		{
			name:      "preparing but unpaid is invariant breakage",
			method:    MethodCash,
			payment:   PaymentPending,
			status:    StatusPreparing,
			expectErr: ErrNotCollectable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCashCollection(tc.method, tc.payment, tc.status)
			if tc.expectErr == nil {
				if err != nil {
					t.Fatalf("expected collection to be allowed, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.expectErr) {
				t.Fatalf("expected %v, got %v", tc.expectErr, err)
			}
		})
	}
}

func TestCanTransitionTable(t *testing.T) {
	if CanTransition(StatusCompleted, StatusPending) {
		t.Fatalf("completed must have no outgoing transitions")
	}
	if !CanTransition(StatusPending, StatusPreparing) {
		t.Fatalf("pending -> preparing must be allowed")
	}
	if CanTransition("unknown", StatusPreparing) {
		t.Fatalf("unknown status must not transition")
	}
}
