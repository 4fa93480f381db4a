package handlers

import (
	"context"
	"net/http"
	"time"

	"dineflow-order-service/internal/utils"
	"dineflow-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// PublicOrderStatus is the lightweight poll target for customers watching
// their order move through the kitchen.
func (h *Handler) PublicOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant, err := h.loadRestaurant(ctx, readPathString(r, "slug"))
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID is required")
		return
	}

	var (
		orderNumber   string
		status        string
		paymentStatus string
	)
	err = h.DB.QueryRow(ctx, `
		select order_number, status, payment_status
		from orders
		where id = $1 and restaurant_id = $2
	`, orderID, tenant.ID).Scan(&orderNumber, &status, &paymentStatus)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("order status load failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}

	response.Success(w, map[string]any{
		"orderId":       orderID,
		"orderNumber":   orderNumber,
		"status":        status,
		"paymentStatus": paymentStatus,
	})
}

// Amounts are serialized as numbers here; only documents meant for humans
// (the receipt) format them as fixed-point strings.
type orderItemDetail struct {
	Name     string  `json:"name"`
	Quantity int32   `json:"quantity"`
	Price    float64 `json:"price"`
	Subtotal float64 `json:"subtotal"`
	Notes    string  `json:"notes,omitempty"`
}

func (h *Handler) PublicOrderDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant, err := h.loadRestaurant(ctx, readPathString(r, "slug"))
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID is required")
		return
	}

	var (
		orderNumber   string
		status        string
		paymentMethod string
		paymentStatus string
		customerName  string
		tableNumber   string
		subtotal      pgtype.Numeric
		tax           pgtype.Numeric
		total         pgtype.Numeric
		createdAt     time.Time
	)
	err = h.DB.QueryRow(ctx, `
		select order_number, status, payment_method, payment_status,
		       customer_name, table_number, subtotal, tax, total_amount, created_at
		from orders
		where id = $1 and restaurant_id = $2
	`, orderID, tenant.ID).Scan(&orderNumber, &status, &paymentMethod, &paymentStatus,
		&customerName, &tableNumber, &subtotal, &tax, &total, &createdAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("order detail load failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}

	items, err := h.loadOrderItems(ctx, orderID)
	if err != nil {
		h.Logger.Error("order items load failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}

	response.Success(w, map[string]any{
		"orderId":       orderID,
		"orderNumber":   orderNumber,
		"status":        status,
		"paymentMethod": paymentMethod,
		"paymentStatus": paymentStatus,
		"customerName":  customerName,
		"tableNumber":   tableNumber,
		"subtotal":      utils.NumericToFloat64(subtotal),
		"tax":           utils.NumericToFloat64(tax),
		"totalAmount":   utils.NumericToFloat64(total),
		"currency":      tenant.Currency,
		"createdAt":     createdAt,
		"items":         items,
	})
}

func (h *Handler) loadOrderItems(ctx context.Context, orderID int64) ([]orderItemDetail, error) {
	rows, err := h.DB.Query(ctx, `
		select menu_item_name, quantity, price_at_order, subtotal, notes
		from order_items
		where order_id = $1
		order by id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]orderItemDetail, 0)
	for rows.Next() {
		var (
			item     orderItemDetail
			price    pgtype.Numeric
			subtotal pgtype.Numeric
		)
		if err := rows.Scan(&item.Name, &item.Quantity, &price, &subtotal, &item.Notes); err != nil {
			return nil, err
		}
		item.Price = utils.NumericToFloat64(price)
		item.Subtotal = utils.NumericToFloat64(subtotal)
		items = append(items, item)
	}
	return items, rows.Err()
}
