// Package reservation implements the time-boxed stock hold that precedes an
// online payment, and its conversion into a real order once the gateway
// verifies the payment. A reservation owns its stock holds for exactly the
// time it stays ACTIVE.
package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dineflow-order-service/internal/audit"
	"dineflow-order-service/internal/db"
	"dineflow-order-service/internal/ordernum"
	"dineflow-order-service/internal/payment"
	"dineflow-order-service/internal/stock"
	"dineflow-order-service/internal/utils"
)

var ErrEmptyCart = errors.New("cart is empty")

type Manager struct {
	DB              *pgxpool.Pool
	Gateway         *payment.Gateway
	Audit           *audit.Recorder
	Logger          *zap.Logger
	TTL             time.Duration
	DefaultTimezone string
}

type CreateInput struct {
	CustomerName  string
	TableNumber   string
	PaymentMethod string
	Cart          []CartLine
}

// ReserveLines validates every cart line and places its stock hold on q,
// normally the transaction that also persists the reservation or order row,
// so a crash mid-cart leaves no ownerless hold behind. If any line fails,
// holds already taken for this cart are released before the error is
// returned. Also used by the cash order path, which holds stock until
// collection or cleanup.
func (m *Manager) ReserveLines(ctx context.Context, q db.Querier, tenant Tenant, cart []CartLine) ([]LineSnapshot, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]int64, 0, len(cart))
	for _, line := range cart {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("invalid quantity %d for item %d", line.Quantity, line.MenuItemID)
		}
		ids = append(ids, line.MenuItemID)
	}

	type menuRow struct {
		Name              string
		Price             decimal.Decimal
		IsAvailable       bool
		IsActive          bool
		UnavailableReason string
	}
	menu := make(map[int64]menuRow, len(ids))

	rows, err := q.Query(ctx, `
		select id, name, price, is_available, is_active, unavailable_reason
		from menu_items
		where restaurant_id = $1 and id = any($2)
	`, tenant.ID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var row menuRow
		var price pgtype.Numeric
		if err := rows.Scan(&id, &row.Name, &price, &row.IsAvailable, &row.IsActive, &row.UnavailableReason); err != nil {
			return nil, err
		}
		row.Price = utils.NumericToDecimal(price)
		menu[id] = row
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, line := range cart {
		item, ok := menu[line.MenuItemID]
		if !ok {
			return nil, stock.ErrItemNotFound
		}
		if !item.IsActive || !item.IsAvailable {
			return nil, &stock.ItemUnavailableError{ItemID: line.MenuItemID, ItemName: item.Name, Reason: item.UnavailableReason}
		}
	}

	reserved := make([]CartLine, 0, len(cart))
	snapshots := make([]LineSnapshot, 0, len(cart))
	for _, line := range cart {
		if err := stock.Reserve(ctx, q, line.MenuItemID, line.Quantity); err != nil {
			for _, held := range reserved {
				if relErr := stock.Release(ctx, q, held.MenuItemID, held.Quantity); relErr != nil {
					m.Logger.Error("rollback release failed",
						zap.Int64("menuItemId", held.MenuItemID),
						zap.Int32("quantity", held.Quantity),
						zap.Error(relErr))
				}
			}
			return nil, err
		}
		reserved = append(reserved, line)

		item := menu[line.MenuItemID]
		snapshots = append(snapshots, LineSnapshot{
			MenuItemID:   line.MenuItemID,
			Name:         item.Name,
			Quantity:     line.Quantity,
			UnitPrice:    item.Price,
			LineSubtotal: item.Price.Mul(decimal.NewFromInt32(line.Quantity)),
			Attributes:   line.Attributes,
			Notes:        line.Notes,
		})
	}
	return snapshots, nil
}

// Create reserves the cart and persists an ACTIVE reservation with totals
// snapshotted from current menu prices and the tenant tax rate. The holds and
// the reservation row share one transaction, so they appear together or not
// at all.
func (m *Manager) Create(ctx context.Context, tenant Tenant, input CreateInput) (*Reservation, error) {
	tx, err := m.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lines, err := m.ReserveLines(ctx, tx, tenant, input.Cart)
	if err != nil {
		return nil, err
	}

	totals := ComputeTotals(lines, tenant.TaxRate)
	itemsJSON, err := json.Marshal(lines)
	if err != nil {
		return nil, err
	}

	res := &Reservation{
		ID:            uuid.New(),
		RestaurantID:  tenant.ID,
		Items:         lines,
		CustomerName:  input.CustomerName,
		TableNumber:   input.TableNumber,
		PaymentMethod: input.PaymentMethod,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		Status:        StatusActive,
		ExpiresAt:     time.Now().Add(m.TTL),
	}

	if _, err := tx.Exec(ctx, `
		insert into order_reservations
			(id, restaurant_id, items, customer_name, table_number, payment_method,
			 subtotal, tax, total_amount, status, expires_at)
		values ($1, $2, $3::jsonb, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		res.ID, res.RestaurantID, string(itemsJSON), res.CustomerName, res.TableNumber, res.PaymentMethod,
		res.Subtotal.StringFixed(2), res.Tax.StringFixed(2), res.Total.StringFixed(2),
		res.Status, res.ExpiresAt,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	m.Audit.Record(ctx, audit.Entry{
		Action:       audit.ActionReservationCreated,
		Actor:        "customer",
		RestaurantID: tenant.ID,
		EntityType:   "Reservation",
		EntityID:     res.ID.String(),
		NewValue: map[string]any{
			"total":     res.Total.StringFixed(2),
			"itemCount": len(lines),
			"expiresAt": res.ExpiresAt,
		},
	})
	return res, nil
}

// Load returns a reservation by id.
func (m *Manager) Load(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	var (
		res       Reservation
		itemsRaw  []byte
		subtotal  pgtype.Numeric
		tax       pgtype.Numeric
		total     pgtype.Numeric
		paidOrder *int64
	)
	err := m.DB.QueryRow(ctx, `
		select id, restaurant_id, items, customer_name, table_number, payment_method,
		       subtotal, tax, total_amount, status, expires_at, paid_order_id
		from order_reservations
		where id = $1
	`, id).Scan(
		&res.ID, &res.RestaurantID, &itemsRaw, &res.CustomerName, &res.TableNumber, &res.PaymentMethod,
		&subtotal, &tax, &total, &res.Status, &res.ExpiresAt, &paidOrder,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(itemsRaw, &res.Items); err != nil {
		return nil, err
	}
	res.Subtotal = utils.NumericToDecimal(subtotal)
	res.Tax = utils.NumericToDecimal(tax)
	res.Total = utils.NumericToDecimal(total)
	res.PaidOrderID = paidOrder
	return &res, nil
}

// MarkPaid verifies the payment assertion and converts the reservation into a
// real order. Idempotent: a reservation that already produced an order
// returns it again instead of materializing a duplicate. The conditional
// ACTIVE->PAID flip also settles any race with Expire: exactly one side wins.
//
// Gateway verification runs before the transaction opens; the stock is
// already durably reserved, so no lock needs to span the network call.
func (m *Manager) MarkPaid(ctx context.Context, id uuid.UUID, assertion payment.Assertion) (*PaidOrder, error) {
	existing, err := m.alreadyPaid(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if err := m.Gateway.Verify(assertion); err != nil {
		if errors.Is(err, payment.ErrVerificationFailed) {
			m.Audit.Record(ctx, audit.Entry{
				Action:     audit.ActionPaymentRejected,
				Actor:      "gateway",
				EntityType: "Reservation",
				EntityID:   id.String(),
				NewValue:   map[string]any{"paymentRef": assertion.PaymentRef},
			})
		}
		return nil, err
	}

	return m.convertPaid(ctx, id, assertion.PaymentRef)
}

// MarkPaidFromWebhook converts a reservation whose payment arrived as a
// webhook event. The caller has already checked the webhook HMAC, so the
// client signature step is skipped.
func (m *Manager) MarkPaidFromWebhook(ctx context.Context, id uuid.UUID, paymentRef string) (*PaidOrder, error) {
	existing, err := m.alreadyPaid(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return m.convertPaid(ctx, id, paymentRef)
}

func (m *Manager) convertPaid(ctx context.Context, id uuid.UUID, paymentRef string) (*PaidOrder, error) {
	tx, err := m.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		restaurantID int64
		itemsRaw     []byte
		customerName string
		tableNumber  string
		method       string
		subtotal     pgtype.Numeric
		tax          pgtype.Numeric
		total        pgtype.Numeric
	)
	err = tx.QueryRow(ctx, `
		update order_reservations
		set status = 'PAID'
		where id = $1 and status = 'ACTIVE'
		returning restaurant_id, items, customer_name, table_number, payment_method,
		          subtotal, tax, total_amount
	`, id).Scan(&restaurantID, &itemsRaw, &customerName, &tableNumber, &method, &subtotal, &tax, &total)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Lost the race: someone else paid or expired it first.
			_ = tx.Rollback(ctx)
			existing, lookupErr := m.alreadyPaid(ctx, id)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return existing, nil
			}
			return nil, &ClosedError{Status: StatusExpired}
		}
		return nil, err
	}

	var lines []LineSnapshot
	if err := json.Unmarshal(itemsRaw, &lines); err != nil {
		return nil, err
	}

	for _, line := range lines {
		if err := stock.ConfirmSale(ctx, tx, line.MenuItemID, line.Quantity); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			update menu_items set times_ordered = times_ordered + $2 where id = $1
		`, line.MenuItemID, line.Quantity); err != nil {
			return nil, err
		}
	}

	var timezone string
	if err := tx.QueryRow(ctx, `select timezone from restaurants where id = $1`, restaurantID).Scan(&timezone); err != nil {
		return nil, err
	}
	localDate := utils.DateInTimezone(timezone, m.DefaultTimezone, time.Now())

	seq, err := ordernum.NextSequence(ctx, tx, restaurantID, localDate)
	if err != nil {
		return nil, err
	}
	orderNumber := ordernum.Format(seq)

	var orderID int64
	if err := tx.QueryRow(ctx, `
		insert into orders
			(restaurant_id, order_number, daily_sequence, status, payment_method, payment_status,
			 payment_id, customer_name, table_number, subtotal, tax, total_amount)
		values ($1, $2, $3, 'preparing', $4, 'success', $5, $6, $7, $8, $9, $10)
		returning id
	`,
		restaurantID, orderNumber, seq, method, paymentRef, customerName, tableNumber,
		utils.NumericToDecimal(subtotal).StringFixed(2),
		utils.NumericToDecimal(tax).StringFixed(2),
		utils.NumericToDecimal(total).StringFixed(2),
	).Scan(&orderID); err != nil {
		return nil, err
	}

	for _, line := range lines {
		attrs, err := marshalAttributes(line.Attributes)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			insert into order_items
				(order_id, menu_item_id, menu_item_name, price_at_order, quantity, subtotal, attributes, notes)
			values ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
		`, orderID, line.MenuItemID, line.Name,
			line.UnitPrice.StringFixed(2), line.Quantity, line.LineSubtotal.StringFixed(2),
			attrs, line.Notes,
		); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `
		update order_reservations set paid_order_id = $2 where id = $1
	`, id, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	m.Audit.Record(ctx, audit.Entry{
		Action:       audit.ActionPaymentVerified,
		Actor:        "gateway",
		RestaurantID: restaurantID,
		EntityType:   "Reservation",
		EntityID:     id.String(),
		NewValue:     map[string]any{"paymentRef": paymentRef, "orderId": orderID},
	})
	m.Audit.Record(ctx, audit.Entry{
		Action:       audit.ActionOrderCreated,
		Actor:        "customer",
		RestaurantID: restaurantID,
		EntityType:   "Order",
		EntityID:     orderNumber,
		NewValue: map[string]any{
			"orderId":       orderID,
			"paymentMethod": method,
			"total":         utils.NumericToDecimal(total).StringFixed(2),
		},
	})

	return &PaidOrder{OrderID: orderID, OrderNumber: orderNumber}, nil
}

func (m *Manager) alreadyPaid(ctx context.Context, id uuid.UUID) (*PaidOrder, error) {
	var status string
	var paidOrderID *int64
	err := m.DB.QueryRow(ctx, `
		select status, paid_order_id from order_reservations where id = $1
	`, id).Scan(&status, &paidOrderID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	switch status {
	case StatusActive:
		return nil, nil
	case StatusPaid:
		result := &PaidOrder{AlreadyPaid: true}
		if paidOrderID != nil {
			result.OrderID = *paidOrderID
			_ = m.DB.QueryRow(ctx, `select order_number from orders where id = $1`, *paidOrderID).Scan(&result.OrderNumber)
		}
		return result, nil
	default:
		return nil, &ClosedError{Status: status}
	}
}

// Expire releases the holds of a reservation whose TTL lapsed. Safe to call
// redundantly: anything not ACTIVE is a no-op.
func (m *Manager) Expire(ctx context.Context, id uuid.UUID) error {
	return m.closeFromActive(ctx, id, StatusExpired, audit.ActionReservationExpired)
}

// Cancel is the customer-abandon path; same stock effect as Expire.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) error {
	return m.closeFromActive(ctx, id, StatusCancelled, audit.ActionReservationCancel)
}

func (m *Manager) closeFromActive(ctx context.Context, id uuid.UUID, toStatus string, action string) error {
	tx, err := m.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var restaurantID int64
	var itemsRaw []byte
	err = tx.QueryRow(ctx, `
		update order_reservations
		set status = $2
		where id = $1 and status = 'ACTIVE'
		returning restaurant_id, items
	`, id, toStatus).Scan(&restaurantID, &itemsRaw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return err
	}

	var lines []LineSnapshot
	if err := json.Unmarshal(itemsRaw, &lines); err != nil {
		return err
	}
	for _, line := range lines {
		if err := stock.Release(ctx, tx, line.MenuItemID, line.Quantity); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	m.Audit.Record(ctx, audit.Entry{
		Action:       action,
		Actor:        "system",
		RestaurantID: restaurantID,
		EntityType:   "Reservation",
		EntityID:     id.String(),
		OldValue:     map[string]any{"status": StatusActive},
		NewValue:     map[string]any{"status": toStatus},
	})
	return nil
}

// SweepExpired expires every ACTIVE reservation past its deadline. Held stock
// directly blocks other customers, so this runs every minute.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	rows, err := m.DB.Query(ctx, `
		select id from order_reservations
		where status = 'ACTIVE' and expires_at < now()
	`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if err := m.Expire(ctx, id); err != nil {
			m.Logger.Error("reservation expiry failed", zap.String("reservationId", id.String()), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

func marshalAttributes(attrs map[string]any) (*string, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}
