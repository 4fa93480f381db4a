package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

type auditEvent struct {
	Action       string `json:"action"`
	RestaurantID int64  `json:"restaurantId"`
	EntityType   string `json:"entityType"`
	EntityID     string `json:"entityId"`
	NewValue     any    `json:"newValue"`
}

// ProcessAuditEvent turns broker events into customer-facing notification
// intents. Events that don't notify anyone are acked and dropped.
func ProcessAuditEvent(ctx context.Context, logger *zap.Logger, body []byte) error {
	var ev auditEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		// Malformed payloads are not retryable.
		logger.Warn("discarding malformed event", zap.Error(err))
		return nil
	}

	message := notificationMessage(ev)
	if message == "" {
		return nil
	}

	logger.Info("notification dispatched",
		zap.String("action", ev.Action),
		zap.Int64("restaurantId", ev.RestaurantID),
		zap.String("entityId", ev.EntityID),
		zap.String("message", message))
	return nil
}

func notificationMessage(ev auditEvent) string {
	switch ev.Action {
	case "ORDER_CREATED":
		return fmt.Sprintf("New order %s received", ev.EntityID)
	case "ORDER_STATUS_CHANGED":
		return fmt.Sprintf("Order %s status updated", ev.EntityID)
	case "PAYMENT_VERIFIED":
		return fmt.Sprintf("Payment confirmed for %s", ev.EntityID)
	default:
		return ""
	}
}
