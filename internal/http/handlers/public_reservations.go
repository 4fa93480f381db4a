package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"dineflow-order-service/internal/reservation"
	"dineflow-order-service/pkg/response"

	"github.com/google/uuid"
)

type publicReservationRequest struct {
	CustomerName string            `json:"customerName"`
	TableNumber  string            `json:"tableNumber"`
	Items        []publicOrderItem `json:"items"`
}

// PublicReservationCreate holds stock for an online payment. Nothing is sold
// yet; the reservation either converts through payment verification or gives
// its stock back on expiry or cancellation.
func (h *Handler) PublicReservationCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slug := readPathString(r, "slug")
	tenant, err := h.loadRestaurant(ctx, slug)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}

	var body publicReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if len(body.Items) == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Reservation must have at least one item")
		return
	}

	res, err := h.Reservations.Create(ctx, tenant, reservation.CreateInput{
		CustomerName:  strings.TrimSpace(body.CustomerName),
		TableNumber:   strings.TrimSpace(body.TableNumber),
		PaymentMethod: "upi",
		Cart:          cartFromRequest(body.Items),
	})
	if err != nil {
		if writeCartError(w, err) {
			return
		}
		h.Logger.Error("reservation create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create reservation")
		return
	}

	response.Created(w, map[string]any{
		"reservationId": res.ID.String(),
		"status":        res.Status,
		"subtotal":      res.Subtotal.StringFixed(2),
		"tax":           res.Tax.StringFixed(2),
		"totalAmount":   res.Total.StringFixed(2),
		"currency":      tenant.Currency,
		"expiresAt":     res.ExpiresAt,
	})
}

// PublicReservationCancel is the customer-abandon path. Cancelling a
// reservation that already closed is a no-op success.
func (h *Handler) PublicReservationCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(readPathString(r, "reservationId"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid reservation id")
		return
	}

	if err := h.Reservations.Cancel(ctx, id); err != nil {
		if writeReservationError(w, err) {
			return
		}
		h.Logger.Error("reservation cancel failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel reservation")
		return
	}

	response.Success(w, map[string]any{"reservationId": id.String(), "status": reservation.StatusCancelled})
}

// PublicReservationStatus reports the live state of a reservation so clients
// can poll while the customer completes payment.
func (h *Handler) PublicReservationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(readPathString(r, "reservationId"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid reservation id")
		return
	}

	res, err := h.Reservations.Load(ctx, id)
	if err != nil {
		if writeReservationError(w, err) {
			return
		}
		h.Logger.Error("reservation load failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load reservation")
		return
	}

	payload := map[string]any{
		"reservationId": res.ID.String(),
		"status":        res.Status,
		"totalAmount":   res.Total.StringFixed(2),
		"expiresAt":     res.ExpiresAt,
	}
	if res.PaidOrderID != nil {
		payload["orderId"] = *res.PaidOrderID
	}
	response.Success(w, payload)
}
