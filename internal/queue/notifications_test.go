package queue

import "testing"

func TestNotificationMessage(t *testing.T) {
	cases := []struct {
		action   string
		entityID string
		expected string
	}{
		{"ORDER_CREATED", "A7", "New order A7 received"},
		{"ORDER_STATUS_CHANGED", "42", "Order 42 status updated"},
		{"PAYMENT_VERIFIED", "B3", "Payment confirmed for B3"},
		{"RESERVATION_EXPIRED", "x", ""},
		{"", "x", ""},
	}
	for _, tc := range cases {
		got := notificationMessage(auditEvent{Action: tc.action, EntityID: tc.entityID})
		if got != tc.expected {
			t.Fatalf("action %s: expected %q, got %q", tc.action, tc.expected, got)
		}
	}
}
