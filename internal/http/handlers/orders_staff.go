package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"dineflow-order-service/internal/middleware"
	"dineflow-order-service/internal/orderstate"
	"dineflow-order-service/internal/utils"
	"dineflow-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type staffStatusRequest struct {
	Status string `json:"status"`
}

// StaffOrderStatusUpdate moves an order forward through the kitchen flow.
func (h *Handler) StaffOrderStatusUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Staff authentication required")
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID is required")
		return
	}

	var body staffStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	to := strings.ToLower(strings.TrimSpace(body.Status))
	if !orderstate.IsValidStatus(to) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Valid status is required (pending, preparing, or completed)")
		return
	}

	if err := h.Orders.UpdateStatus(ctx, authCtx.RestaurantID, orderID, to, authCtx.StaffID); err != nil {
		if writeOrderStateError(w, err) {
			return
		}
		h.Logger.Error("status update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order status")
		return
	}

	response.Success(w, map[string]any{"orderId": orderID, "status": to})
}

// StaffCollectCash records a counter payment and releases the order to the
// kitchen in the same step.
func (h *Handler) StaffCollectCash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Staff authentication required")
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID is required")
		return
	}

	amount, err := h.Orders.CollectCash(ctx, authCtx.RestaurantID, orderID, authCtx.StaffID, clientIP(r))
	if err != nil {
		if writeOrderStateError(w, err) {
			return
		}
		h.Logger.Error("cash collection failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to collect cash")
		return
	}

	response.Success(w, map[string]any{
		"orderId":         orderID,
		"amountCollected": amount.StringFixed(2),
		"status":          orderstate.StatusPreparing,
		"paymentStatus":   orderstate.PaymentSuccess,
	})
}

type staffOrderSummary struct {
	OrderID       int64     `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"paymentMethod"`
	PaymentStatus string    `json:"paymentStatus"`
	CustomerName  string    `json:"customerName"`
	TableNumber   string    `json:"tableNumber"`
	TotalAmount   string    `json:"totalAmount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// StaffOrderList returns today's open orders for the kitchen board, oldest
// first. Completed orders drop off the list.
func (h *Handler) StaffOrderList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Staff authentication required")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select id, order_number, status, payment_method, payment_status,
		       customer_name, table_number, total_amount, created_at
		from orders
		where restaurant_id = $1 and status in ('pending', 'preparing')
		order by created_at
	`, authCtx.RestaurantID)
	if err != nil {
		h.Logger.Error("staff order list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load orders")
		return
	}
	defer rows.Close()

	orders := make([]staffOrderSummary, 0)
	for rows.Next() {
		var (
			order staffOrderSummary
			total pgtype.Numeric
		)
		if err := rows.Scan(&order.OrderID, &order.OrderNumber, &order.Status,
			&order.PaymentMethod, &order.PaymentStatus, &order.CustomerName,
			&order.TableNumber, &total, &order.CreatedAt); err != nil {
			h.Logger.Error("staff order scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load orders")
			return
		}
		order.TotalAmount = utils.NumericToDecimal(total).StringFixed(2)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("staff order read failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load orders")
		return
	}

	response.Success(w, map[string]any{"orders": orders})
}
