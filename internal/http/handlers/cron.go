package handlers

import (
	"net/http"
	"time"

	"dineflow-order-service/pkg/response"
)

// CronSweepReservations expires reservations past their TTL. External
// schedulers hit this when the in-process ticker is not wanted.
func (h *Handler) CronSweepReservations(w http.ResponseWriter, r *http.Request) {
	count, err := h.Sweeper.SweepExpiredReservations(r.Context())
	if err != nil {
		h.Logger.Error("cron reservation sweep failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Sweep failed")
		return
	}
	response.Success(w, map[string]any{"expired": count})
}

// CronSweepStaleOrders deletes yesterday's unpaid cash orders and returns
// their stock. Unlike the opportunistic path this runs unconditionally.
func (h *Handler) CronSweepStaleOrders(w http.ResponseWriter, r *http.Request) {
	count, err := h.Sweeper.SweepStaleCashOrders(r.Context(), time.Now().UTC())
	if err != nil {
		h.Logger.Error("cron stale order sweep failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Sweep failed")
		return
	}
	response.Success(w, map[string]any{"deleted": count})
}
