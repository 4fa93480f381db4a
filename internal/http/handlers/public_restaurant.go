package handlers

import (
	"net/http"

	"dineflow-order-service/internal/utils"
	"dineflow-order-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

func (h *Handler) PublicRestaurantInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slug := readPathString(r, "slug")
	tenant, err := h.loadRestaurant(ctx, slug)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}

	var name string
	if err := h.DB.QueryRow(ctx, `select name from restaurants where id = $1`, tenant.ID).Scan(&name); err != nil {
		h.Logger.Error("restaurant info load failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load restaurant")
		return
	}

	response.Success(w, map[string]any{
		"slug":     tenant.Slug,
		"name":     name,
		"currency": tenant.Currency,
		"timezone": tenant.Timezone,
		"taxRate":  tenant.TaxRate.String(),
	})
}

type publicMenuItem struct {
	ID                int64  `json:"id"`
	Category          string `json:"category"`
	Name              string `json:"name"`
	Price             string `json:"price"`
	IsAvailable       bool   `json:"isAvailable"`
	UnavailableReason string `json:"unavailableReason,omitempty"`
	RemainingStock    *int32 `json:"remainingStock,omitempty"`
	TimesOrdered      int32  `json:"timesOrdered"`
}

// PublicMenu lists active menu items with effective availability: an item
// whose remaining stock is fully reserved shows as unavailable even when the
// owner flag still says available.
func (h *Handler) PublicMenu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slug := readPathString(r, "slug")
	tenant, err := h.loadRestaurant(ctx, slug)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select id, category, name, price, total_stock, reserved_stock,
		       is_available, unavailable_reason, times_ordered
		from menu_items
		where restaurant_id = $1 and is_active = true
		order by category, name
	`, tenant.ID)
	if err != nil {
		h.Logger.Error("menu load failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load menu")
		return
	}
	defer rows.Close()

	items := make([]publicMenuItem, 0)
	for rows.Next() {
		var (
			item       publicMenuItem
			price      pgtype.Numeric
			totalStock *int32
			reserved   int32
		)
		if err := rows.Scan(&item.ID, &item.Category, &item.Name, &price,
			&totalStock, &reserved, &item.IsAvailable, &item.UnavailableReason, &item.TimesOrdered); err != nil {
			h.Logger.Error("menu scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load menu")
			return
		}
		item.Price = utils.NumericToDecimal(price).StringFixed(2)

		if totalStock != nil {
			remaining := *totalStock - reserved
			if remaining < 0 {
				remaining = 0
			}
			item.RemainingStock = &remaining
			if remaining == 0 && item.IsAvailable {
				item.IsAvailable = false
				if item.UnavailableReason == "" {
					item.UnavailableReason = "Out of stock"
				}
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("menu read failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load menu")
		return
	}

	response.Success(w, map[string]any{
		"restaurant": tenant.Slug,
		"items":      items,
	})
}
