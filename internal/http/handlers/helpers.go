package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"dineflow-order-service/internal/orderstate"
	"dineflow-order-service/internal/payment"
	"dineflow-order-service/internal/reservation"
	"dineflow-order-service/internal/stock"
	"dineflow-order-service/internal/utils"
	"dineflow-order-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}

var errMissingParam = errors.New("missing param")

func clientIP(r *http.Request) string {
	forwarded := r.Header.Get("x-forwarded-for")
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("x-real-ip")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

var errRestaurantNotFound = errors.New("restaurant not found")

// loadRestaurant resolves a public slug into the tenant fields the service
// layer works with. Inactive restaurants resolve as not found.
func (h *Handler) loadRestaurant(ctx context.Context, slug string) (reservation.Tenant, error) {
	var tenant reservation.Tenant
	var taxRate pgtype.Numeric
	err := h.DB.QueryRow(ctx, `
		select id, slug, currency, timezone, tax_rate
		from restaurants
		where slug = $1 and is_active = true
	`, slug).Scan(&tenant.ID, &tenant.Slug, &tenant.Currency, &tenant.Timezone, &taxRate)
	if err != nil {
		if err == pgx.ErrNoRows {
			return tenant, errRestaurantNotFound
		}
		return tenant, err
	}
	tenant.TaxRate = utils.NumericToDecimal(taxRate)
	return tenant, nil
}

// writeCartError maps reservation and stock failures onto the public error
// envelope.
func writeCartError(w http.ResponseWriter, err error) bool {
	var insufficient *stock.InsufficientStockError
	if errors.As(err, &insufficient) {
		response.ErrorDetails(w, http.StatusConflict, insufficient.Code(), insufficient.Error(), map[string]any{
			"menuItemId": insufficient.ItemID,
			"itemName":   insufficient.ItemName,
			"requested":  insufficient.Requested,
			"available":  insufficient.Available,
		})
		return true
	}
	var unavailable *stock.ItemUnavailableError
	if errors.As(err, &unavailable) {
		response.ErrorDetails(w, http.StatusConflict, unavailable.Code(), unavailable.Error(), map[string]any{
			"menuItemId": unavailable.ItemID,
			"itemName":   unavailable.ItemName,
		})
		return true
	}
	if errors.Is(err, stock.ErrItemNotFound) {
		response.Error(w, http.StatusNotFound, "ITEM_NOT_FOUND", "One or more items do not exist")
		return true
	}
	if errors.Is(err, reservation.ErrEmptyCart) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order must have at least one item")
		return true
	}
	return false
}

// writeReservationError maps reservation lifecycle and payment verification
// failures onto the public error envelope.
func writeReservationError(w http.ResponseWriter, err error) bool {
	if errors.Is(err, reservation.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Reservation not found")
		return true
	}
	var closed *reservation.ClosedError
	if errors.As(err, &closed) {
		response.Error(w, http.StatusGone, closed.Code(), closed.Error())
		return true
	}
	if errors.Is(err, payment.ErrVerificationFailed) {
		response.Error(w, http.StatusBadRequest, "PAYMENT_VERIFICATION_FAILED", "Payment signature verification failed")
		return true
	}
	if errors.Is(err, payment.ErrNotConfigured) {
		response.Error(w, http.StatusServiceUnavailable, "PAYMENT_NOT_CONFIGURED", "Online payments are not configured")
		return true
	}
	return false
}

// writeOrderStateError maps status machine failures onto the staff error
// envelope.
func writeOrderStateError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, orderstate.ErrOrderNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
	case errors.Is(err, orderstate.ErrAlreadyCompleted):
		response.Error(w, http.StatusConflict, "ORDER_COMPLETED", "Order is already completed")
	case errors.Is(err, orderstate.ErrPaymentRequired):
		response.Error(w, http.StatusConflict, "PAYMENT_REQUIRED", "Payment must be collected before preparing")
	case errors.Is(err, orderstate.ErrNotCashOrder):
		response.Error(w, http.StatusBadRequest, "NOT_CASH_ORDER", "Cash collection only applies to cash orders")
	case errors.Is(err, orderstate.ErrAlreadyCollected):
		response.Error(w, http.StatusConflict, "ALREADY_COLLECTED", "Cash was already collected for this order")
	case errors.Is(err, orderstate.ErrNotCollectable):
		response.Error(w, http.StatusConflict, "NOT_COLLECTABLE", "Order is not in a collectable state")
	default:
		var transition *orderstate.TransitionError
		if errors.As(err, &transition) {
			response.Error(w, http.StatusConflict, transition.Code(), transition.Error())
			return true
		}
		return false
	}
	return true
}
