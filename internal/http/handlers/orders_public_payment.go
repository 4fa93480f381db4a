package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"dineflow-order-service/internal/payment"
	"dineflow-order-service/internal/redisx"
	"dineflow-order-service/internal/reservation"
	"dineflow-order-service/pkg/response"

	"github.com/google/uuid"
)

type paymentInitiateRequest struct {
	ReservationID string `json:"reservationId"`
}

// PublicPaymentInitiate mints a gateway order for an ACTIVE reservation and
// parks a short-lived session in Redis so the later verify call can resolve
// the token without trusting the client.
func (h *Handler) PublicPaymentInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body paymentInitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(body.ReservationID))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid reservation id")
		return
	}

	res, err := h.Reservations.Load(ctx, id)
	if err != nil {
		if writeReservationError(w, err) {
			return
		}
		h.Logger.Error("payment initiate load failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to initiate payment")
		return
	}
	if res.Status != reservation.StatusActive {
		response.Error(w, http.StatusGone, (&reservation.ClosedError{Status: res.Status}).Code(), "Reservation is no longer payable")
		return
	}
	if time.Now().After(res.ExpiresAt) {
		response.Error(w, http.StatusGone, "RESERVATION_EXPIRED", "Reservation has expired")
		return
	}
	if !h.Gateway.IsConfigured() {
		response.Error(w, http.StatusServiceUnavailable, "PAYMENT_NOT_CONFIGURED", "Online payments are not configured")
		return
	}

	token := uuid.NewString()
	gatewayOrder := "order_" + strings.ReplaceAll(token, "-", "")

	if h.Redis != nil {
		session := redisx.PaymentSession{
			ReservationID: res.ID.String(),
			RestaurantID:  res.RestaurantID,
			GatewayOrder:  gatewayOrder,
			Amount:        res.Total.StringFixed(2),
		}
		if err := redisx.SetPaymentSession(ctx, h.Redis, token, session, h.Config.PaymentSessionTTL); err != nil {
			h.Logger.Error("payment session store failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to initiate payment")
			return
		}
	}

	response.Success(w, map[string]any{
		"paymentToken":  token,
		"gatewayOrder":  gatewayOrder,
		"keyId":         h.Gateway.KeyID,
		"amount":        res.Total.StringFixed(2),
		"reservationId": res.ID.String(),
	})
}

type paymentVerifyRequest struct {
	PaymentToken     string `json:"paymentToken"`
	ReservationID    string `json:"reservationId"`
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

// PublicPaymentVerify checks the gateway assertion and converts the
// reservation into an order. Safe to retry: a reservation that already
// produced an order answers with that order again.
func (h *Handler) PublicPaymentVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body paymentVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	reservationID := strings.TrimSpace(body.ReservationID)
	if body.PaymentToken != "" && h.Redis != nil {
		session, err := redisx.GetPaymentSession(ctx, h.Redis, body.PaymentToken)
		if err != nil {
			h.Logger.Error("payment session lookup failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify payment")
			return
		}
		if session == nil {
			response.Error(w, http.StatusGone, "PAYMENT_SESSION_EXPIRED", "Payment session expired; start again")
			return
		}
		reservationID = session.ReservationID
		if body.GatewayOrderID == "" {
			body.GatewayOrderID = session.GatewayOrder
		}
	}

	id, err := uuid.Parse(reservationID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid reservation id")
		return
	}

	paid, err := h.Reservations.MarkPaid(ctx, id, payment.Assertion{
		OrderRef:   strings.TrimSpace(body.GatewayOrderID),
		PaymentRef: strings.TrimSpace(body.GatewayPaymentID),
		Signature:  strings.TrimSpace(body.Signature),
	})
	if err != nil {
		if writeReservationError(w, err) {
			return
		}
		h.Logger.Error("payment verify failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to verify payment")
		return
	}

	if body.PaymentToken != "" && h.Redis != nil {
		redisx.DeletePaymentSession(ctx, h.Redis, body.PaymentToken)
	}

	response.Success(w, map[string]any{
		"orderId":     paid.OrderID,
		"orderNumber": paid.OrderNumber,
		"alreadyPaid": paid.AlreadyPaid,
		"status":      "preparing",
	})
}

type paymentWebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		ReservationID    string `json:"reservationId"`
		GatewayPaymentID string `json:"gatewayPaymentId"`
	} `json:"payload"`
}

// PublicPaymentWebhook is the gateway-to-server confirmation path. The body
// HMAC replaces the client signature; conversion goes through the same
// idempotent flip, so webhook and client verify can race safely.
func (h *Handler) PublicPaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read webhook body")
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")
	if !h.Gateway.VerifyWebhook(raw, signature) {
		h.Logger.Warn("webhook signature rejected")
		response.Error(w, http.StatusBadRequest, "WEBHOOK_VERIFICATION_FAILED", "Webhook signature verification failed")
		return
	}

	var event paymentWebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid webhook payload")
		return
	}
	if event.Event != "payment.captured" {
		// Acknowledge events this service does not act on.
		response.Success(w, map[string]any{"handled": false})
		return
	}

	id, err := uuid.Parse(event.Payload.ReservationID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid reservation id")
		return
	}

	paid, err := h.Reservations.MarkPaidFromWebhook(ctx, id, event.Payload.GatewayPaymentID)
	if err != nil {
		if writeReservationError(w, err) {
			return
		}
		h.Logger.Error("webhook conversion failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process webhook")
		return
	}

	response.Success(w, map[string]any{
		"handled":     true,
		"orderId":     paid.OrderID,
		"orderNumber": paid.OrderNumber,
		"alreadyPaid": paid.AlreadyPaid,
	})
}
