package queue

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestRetryCount(t *testing.T) {
	cases := []struct {
		name     string
		headers  amqp.Table
		expected int
	}{
		{"nil headers", nil, 0},
		{"absent", amqp.Table{"other": "x"}, 0},
		{"int32", amqp.Table{"x-retry-count": int32(3)}, 3},
		{"int64", amqp.Table{"x-retry-count": int64(2)}, 2},
		{"int", amqp.Table{"x-retry-count": 1}, 1},
		{"wrong type", amqp.Table{"x-retry-count": "5"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := retryCount(tc.headers); got != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestWithRetryCountCopies(t *testing.T) {
	original := amqp.Table{"x-retry-count": int32(1), "trace": "abc"}

	out := withRetryCount(original, 2)
	if got := retryCount(out); got != 2 {
		t.Fatalf("expected incremented count 2, got %d", got)
	}
	if out["trace"] != "abc" {
		t.Fatalf("other headers must carry over")
	}
	if got := retryCount(original); got != 1 {
		t.Fatalf("original delivery headers must not be mutated, got %d", got)
	}
}
