package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"dineflow-order-service/internal/middleware"
	"dineflow-order-service/internal/utils"
	"dineflow-order-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phpdave11/gofpdf"
)

type receiptData struct {
	RestaurantName string
	RestaurantSlug string
	Currency       string
	OrderNumber    string
	TableNumber    string
	CustomerName   string
	PlacedAt       string
	Items          []orderItemDetail
	Subtotal       string
	Tax            string
	Total          string
	PaymentMethod  string
	PaymentStatus  string
}

// StaffOrderReceiptPDF renders a printable receipt for a paid order.
func (h *Handler) StaffOrderReceiptPDF(w http.ResponseWriter, r *http.Request) {
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

	data, err := h.fetchReceiptData(ctx, authCtx.RestaurantID, orderID)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("receipt load failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}

	buf, err := renderReceiptPDF(data)
	if err != nil {
		h.Logger.Error("receipt render failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate receipt")
		return
	}

	filename := fmt.Sprintf("receipt_%s_%s.pdf", sanitizeFilename(data.RestaurantSlug), sanitizeFilename(data.OrderNumber))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) fetchReceiptData(ctx context.Context, restaurantID, orderID int64) (receiptData, error) {
	var (
		data      receiptData
		subtotal  pgtype.Numeric
		tax       pgtype.Numeric
		total     pgtype.Numeric
		createdAt time.Time
	)
	err := h.DB.QueryRow(ctx, `
		select rst.name, rst.slug, rst.currency,
		       o.order_number, o.table_number, o.customer_name,
		       o.subtotal, o.tax, o.total_amount, o.payment_method, o.payment_status, o.created_at
		from orders o
		join restaurants rst on rst.id = o.restaurant_id
		where o.id = $1 and o.restaurant_id = $2
	`, orderID, restaurantID).Scan(
		&data.RestaurantName, &data.RestaurantSlug, &data.Currency,
		&data.OrderNumber, &data.TableNumber, &data.CustomerName,
		&subtotal, &tax, &total, &data.PaymentMethod, &data.PaymentStatus, &createdAt,
	)
	if err != nil {
		return data, err
	}

	data.Subtotal = utils.NumericToDecimal(subtotal).StringFixed(2)
	data.Tax = utils.NumericToDecimal(tax).StringFixed(2)
	data.Total = utils.NumericToDecimal(total).StringFixed(2)
	data.PlacedAt = createdAt.Format("2006-01-02 15:04")

	data.Items, err = h.loadOrderItems(ctx, orderID)
	return data, err
}

func sanitizeFilename(value string) string {
	re := regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
	clean := re.ReplaceAllString(value, "_")
	return strings.Trim(clean, "_")
}

func renderReceiptPDF(data receiptData) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, data.RestaurantName, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Order %s", data.OrderNumber), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if data.TableNumber != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Table %s", data.TableNumber), "", 1, "C", false, 0, "")
	}
	if data.CustomerName != "" {
		pdf.CellFormat(0, 5, data.CustomerName, "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 5, fmt.Sprintf("Placed: %s", data.PlacedAt), "", 1, "C", false, 0, "")

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Items", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, item := range data.Items {
		pdf.CellFormat(0, 5, fmt.Sprintf("%dx %s", item.Quantity, item.Name), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Subtotal: %s %.2f", data.Currency, item.Subtotal), "", 1, "L", false, 0, "")
		if item.Notes != "" {
			pdf.MultiCell(0, 4, fmt.Sprintf("Notes: %s", item.Notes), "", "L", false)
		}
		pdf.Ln(1)
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Totals", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Subtotal: %s %s", data.Currency, data.Subtotal), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Tax: %s %s", data.Currency, data.Tax), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %s %s", data.Currency, data.Total), "", 1, "L", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Payment: %s", data.PaymentMethod), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Status: %s", data.PaymentStatus), "", 1, "L", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
