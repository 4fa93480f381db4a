package orderstate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dineflow-order-service/internal/audit"
	"dineflow-order-service/internal/stock"
	"dineflow-order-service/internal/utils"
)

type Machine struct {
	DB     *pgxpool.Pool
	Audit  *audit.Recorder
	Logger *zap.Logger
}

// UpdateStatus moves an order along pending -> preparing -> completed. The
// guard and the write are one conditional UPDATE, so two staff racing on the
// same order cannot both win; the loser gets the precise business rejection.
func (m *Machine) UpdateStatus(ctx context.Context, restaurantID, orderID int64, to string, staffID int64) error {
	status, paymentStatus, _, err := m.loadState(ctx, restaurantID, orderID)
	if err != nil {
		return err
	}
	if err := ValidateTransition(status, paymentStatus, to); err != nil {
		return err
	}

	var affected int64
	switch to {
	case StatusPreparing:
		ct, execErr := m.DB.Exec(ctx, `
			update orders
			set status = 'preparing', updated_at = now()
			where id = $1 and restaurant_id = $2 and status = 'pending' and payment_status = 'success'
		`, orderID, restaurantID)
		if execErr != nil {
			return execErr
		}
		affected = ct.RowsAffected()
	case StatusCompleted:
		ct, execErr := m.DB.Exec(ctx, `
			update orders
			set status = 'completed', completed_at = now(), completed_by = $3, updated_at = now()
			where id = $1 and restaurant_id = $2 and status = 'preparing'
		`, orderID, restaurantID, staffID)
		if execErr != nil {
			return execErr
		}
		affected = ct.RowsAffected()
	default:
		return &TransitionError{From: status, To: to}
	}

	if affected == 0 {
		// The row moved under us; re-read and report the real obstacle.
		current, payment, _, loadErr := m.loadState(ctx, restaurantID, orderID)
		if loadErr != nil {
			return loadErr
		}
		if err := ValidateTransition(current, payment, to); err != nil {
			return err
		}
		return fmt.Errorf("concurrent status change on order %d", orderID)
	}

	m.Audit.Record(ctx, audit.Entry{
		Action:       audit.ActionStatusChanged,
		Actor:        fmt.Sprintf("staff:%d", staffID),
		RestaurantID: restaurantID,
		EntityType:   "Order",
		EntityID:     strconv.FormatInt(orderID, 10),
		OldValue:     map[string]any{"status": status},
		NewValue:     map[string]any{"status": to},
	})
	return nil
}

// CollectCash flips payment_status to success and the order into preparing in
// one conditional UPDATE, converts the stock hold into a permanent deduction,
// stamps who collected where, and appends the cash audit fact. Returns the
// collected amount.
func (m *Machine) CollectCash(ctx context.Context, restaurantID, orderID int64, staffID int64, clientIP string) (decimal.Decimal, error) {
	status, paymentStatus, method, err := m.loadState(ctx, restaurantID, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := ValidateCashCollection(method, paymentStatus, status); err != nil {
		return decimal.Zero, err
	}

	tx, err := m.DB.Begin(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total pgtype.Numeric
	err = tx.QueryRow(ctx, `
		update orders
		set payment_status = 'success',
		    status = 'preparing',
		    cash_collected_by = $3,
		    cash_collected_at = now(),
		    cash_collected_ip = $4,
		    updated_at = now()
		where id = $1 and restaurant_id = $2
		  and payment_method = 'cash' and payment_status = 'pending' and status = 'pending'
		returning total_amount
	`, orderID, restaurantID, staffID, clientIP).Scan(&total)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Lost a race with another collector or the cleanup sweep.
			current, payment, method, loadErr := m.loadState(ctx, restaurantID, orderID)
			if loadErr != nil {
				return decimal.Zero, loadErr
			}
			if vErr := ValidateCashCollection(method, payment, current); vErr != nil {
				return decimal.Zero, vErr
			}
			return decimal.Zero, ErrAlreadyCollected
		}
		return decimal.Zero, err
	}

	lines, err := m.loadItemLines(ctx, tx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, line := range lines {
		if err := stock.ConfirmSale(ctx, tx, line.menuItemID, line.quantity); err != nil {
			return decimal.Zero, err
		}
		if _, err := tx.Exec(ctx, `
			update menu_items set times_ordered = times_ordered + $2 where id = $1
		`, line.menuItemID, line.quantity); err != nil {
			return decimal.Zero, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}

	amount := utils.NumericToDecimal(total)
	m.Audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCashCollected,
		Actor:        fmt.Sprintf("staff:%d", staffID),
		RestaurantID: restaurantID,
		EntityType:   "Order",
		EntityID:     strconv.FormatInt(orderID, 10),
		NewValue: map[string]any{
			"amount":   amount.StringFixed(2),
			"staffId":  staffID,
			"clientIp": clientIP,
		},
	})
	return amount, nil
}

type itemLine struct {
	menuItemID int64
	quantity   int32
}

func (m *Machine) loadItemLines(ctx context.Context, tx pgx.Tx, orderID int64) ([]itemLine, error) {
	rows, err := tx.Query(ctx, `
		select menu_item_id, quantity from order_items
		where order_id = $1 and menu_item_id is not null
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []itemLine
	for rows.Next() {
		var line itemLine
		if err := rows.Scan(&line.menuItemID, &line.quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (m *Machine) loadState(ctx context.Context, restaurantID, orderID int64) (status, paymentStatus, method string, err error) {
	err = m.DB.QueryRow(ctx, `
		select status, payment_status, payment_method
		from orders
		where id = $1 and restaurant_id = $2
	`, orderID, restaurantID).Scan(&status, &paymentStatus, &method)
	if err == pgx.ErrNoRows {
		err = ErrOrderNotFound
	}
	return
}
