// Package audit is the append-only fact sink. Facts are written to
// audit_logs and mirrored onto the event exchange; nothing in the core reads,
// updates, or deletes them.
package audit

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"dineflow-order-service/internal/db"
	"dineflow-order-service/internal/queue"
)

const (
	ActionReservationCreated = "RESERVATION_CREATED"
	ActionReservationExpired = "RESERVATION_EXPIRED"
	ActionReservationCancel  = "RESERVATION_CANCELLED"
	ActionPaymentVerified    = "PAYMENT_VERIFIED"
	ActionPaymentRejected    = "PAYMENT_REJECTED"
	ActionOrderCreated       = "ORDER_CREATED"
	ActionStatusChanged      = "ORDER_STATUS_CHANGED"
	ActionCashCollected      = "CASH_COLLECTED"
	ActionStaleOrderSwept    = "STALE_ORDER_SWEPT"
)

type Entry struct {
	Action       string
	Actor        string
	RestaurantID int64
	EntityType   string
	EntityID     string
	OldValue     any
	NewValue     any
}

type Recorder struct {
	DB     db.Querier
	Queue  *queue.Client
	Logger *zap.Logger
}

// Record appends one fact. The database write is the source of truth; the
// broker mirror is best effort and a failed publish never fails the caller.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	oldValue := marshalValue(e.OldValue)
	newValue := marshalValue(e.NewValue)

	if _, err := r.DB.Exec(ctx, `
		insert into audit_logs (action, actor, restaurant_id, entity_type, entity_id, old_value, new_value)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, e.Action, e.Actor, e.RestaurantID, e.EntityType, e.EntityID, oldValue, newValue); err != nil {
		r.Logger.Error("audit write failed",
			zap.String("action", e.Action),
			zap.String("entityType", e.EntityType),
			zap.String("entityId", e.EntityID),
			zap.Error(err))
	}

	if r.Queue != nil {
		payload := map[string]any{
			"action":       e.Action,
			"actor":        e.Actor,
			"restaurantId": e.RestaurantID,
			"entityType":   e.EntityType,
			"entityId":     e.EntityID,
			"oldValue":     e.OldValue,
			"newValue":     e.NewValue,
		}
		if err := r.Queue.PublishJSON(ctx, queue.EventsExchange, "audit."+e.Action, payload); err != nil {
			r.Logger.Warn("audit event publish failed", zap.String("action", e.Action), zap.Error(err))
		}
	}
}

func marshalValue(v any) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
