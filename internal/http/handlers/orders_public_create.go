package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dineflow-order-service/internal/audit"
	"dineflow-order-service/internal/ordernum"
	"dineflow-order-service/internal/reservation"
	"dineflow-order-service/internal/utils"
	"dineflow-order-service/pkg/response"
)

type publicOrderRequest struct {
	CustomerName string            `json:"customerName"`
	TableNumber  string            `json:"tableNumber"`
	Items        []publicOrderItem `json:"items"`
}

type publicOrderItem struct {
	MenuItemID int64          `json:"menuItemId"`
	Quantity   int32          `json:"quantity"`
	Attributes map[string]any `json:"attributes"`
	Notes      string         `json:"notes"`
}

func cartFromRequest(items []publicOrderItem) []reservation.CartLine {
	cart := make([]reservation.CartLine, 0, len(items))
	for _, item := range items {
		cart = append(cart, reservation.CartLine{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Attributes: item.Attributes,
			Notes:      strings.TrimSpace(item.Notes),
		})
	}
	return cart
}

// PublicOrderCreate places a pay-at-counter order. Stock is held from this
// moment; the hold converts to a sale when staff collects the cash, or is
// reclaimed by the stale sweep if the customer never shows up.
func (h *Handler) PublicOrderCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Config.OpportunisticCleanup {
		go h.Sweeper.MaybeSweepStaleCashOrders(context.WithoutCancel(ctx))
	}

	slug := readPathString(r, "slug")
	tenant, err := h.loadRestaurant(ctx, slug)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}

	var body publicOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if len(body.Items) == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order must have at least one item")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("cash order tx begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Holds and the order row share the transaction: rollback on any failure
	// below returns the stock, with no compensation step to forget.
	lines, err := h.Reservations.ReserveLines(ctx, tx, tenant, cartFromRequest(body.Items))
	if err != nil {
		if writeCartError(w, err) {
			return
		}
		h.Logger.Error("cash order reserve failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	totals := reservation.ComputeTotals(lines, tenant.TaxRate)

	localDate := utils.DateInTimezone(tenant.Timezone, h.Config.DefaultTimezone, time.Now())
	seq, err := ordernum.NextSequence(ctx, tx, tenant.ID, localDate)
	if err != nil {
		h.Logger.Error("cash order sequence failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}
	orderNumber := ordernum.Format(seq)

	var orderID int64
	err = tx.QueryRow(ctx, `
		insert into orders
			(restaurant_id, order_number, daily_sequence, status, payment_method, payment_status,
			 customer_name, table_number, subtotal, tax, total_amount)
		values ($1, $2, $3, 'pending', 'cash', 'pending', $4, $5, $6, $7, $8)
		returning id
	`,
		tenant.ID, orderNumber, seq,
		strings.TrimSpace(body.CustomerName), strings.TrimSpace(body.TableNumber),
		totals.Subtotal.StringFixed(2), totals.Tax.StringFixed(2), totals.Total.StringFixed(2),
	).Scan(&orderID)
	if err != nil {
		h.Logger.Error("cash order insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	for _, line := range lines {
		var attrs *string
		if len(line.Attributes) > 0 {
			data, marshalErr := json.Marshal(line.Attributes)
			if marshalErr != nil {
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
				return
			}
			s := string(data)
			attrs = &s
		}
		if _, err := tx.Exec(ctx, `
			insert into order_items
				(order_id, menu_item_id, menu_item_name, price_at_order, quantity, subtotal, attributes, notes)
			values ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
		`, orderID, line.MenuItemID, line.Name,
			line.UnitPrice.StringFixed(2), line.Quantity, line.LineSubtotal.StringFixed(2),
			attrs, line.Notes,
		); err != nil {
			h.Logger.Error("cash order item insert failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("cash order commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	h.Audit.Record(ctx, audit.Entry{
		Action:       audit.ActionOrderCreated,
		Actor:        "customer",
		RestaurantID: tenant.ID,
		EntityType:   "Order",
		EntityID:     strconv.FormatInt(orderID, 10),
		NewValue: map[string]any{
			"orderNumber":   orderNumber,
			"paymentMethod": "cash",
			"total":         totals.Total.StringFixed(2),
		},
	})

	response.Created(w, map[string]any{
		"orderId":       orderID,
		"orderNumber":   orderNumber,
		"status":        "pending",
		"paymentMethod": "cash",
		"paymentStatus": "pending",
		"subtotal":      totals.Subtotal.StringFixed(2),
		"tax":           totals.Tax.StringFixed(2),
		"totalAmount":   totals.Total.StringFixed(2),
		"currency":      tenant.Currency,
	})
}
