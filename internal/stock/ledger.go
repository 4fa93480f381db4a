// Package stock owns the per-item inventory counters. Every mutation is a
// single conditional UPDATE so concurrent reservations for the same item
// cannot double-book; order logic never assigns these columns directly.
package stock

import (
	"context"

	"github.com/jackc/pgx/v5"

	"dineflow-order-service/internal/db"
)

// Reserve places a hold of qty units on a menu item. Items with null
// total_stock are untracked and succeed without touching counters. Returns an
// *InsufficientStockError when the conditional update matches no row.
func Reserve(ctx context.Context, q db.Querier, itemID int64, qty int32) error {
	var name string
	var totalStock *int32
	err := q.QueryRow(ctx, `
		select name, total_stock from menu_items where id = $1
	`, itemID).Scan(&name, &totalStock)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrItemNotFound
		}
		return err
	}
	if totalStock == nil {
		return nil
	}

	ct, err := q.Exec(ctx, `
		update menu_items
		set reserved_stock = reserved_stock + $2, updated_at = now()
		where id = $1 and total_stock is not null and total_stock - reserved_stock >= $2
	`, itemID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	available := int32(0)
	_ = q.QueryRow(ctx, `
		select greatest(total_stock - reserved_stock, 0) from menu_items where id = $1
	`, itemID).Scan(&available)
	return &InsufficientStockError{ItemID: itemID, ItemName: name, Requested: qty, Available: available}
}

// ConfirmSale permanently deducts sold units: total_stock drops by qty,
// reserved_stock by min(qty, reserved_stock). A depleted item is clamped at
// zero and flagged out of stock. Called exactly once per unit actually sold.
func ConfirmSale(ctx context.Context, q db.Querier, itemID int64, qty int32) error {
	_, err := q.Exec(ctx, `
		update menu_items
		set total_stock        = greatest(total_stock - $2, 0),
		    reserved_stock     = case when reserved_stock >= $2 then reserved_stock - $2 else 0 end,
		    is_available       = case when total_stock - $2 <= 0 then false else is_available end,
		    unavailable_reason = case when total_stock - $2 <= 0 then 'Out of stock' else unavailable_reason end,
		    unavailable_since  = case when total_stock - $2 <= 0 then now() else unavailable_since end,
		    updated_at         = now()
		where id = $1 and total_stock is not null
	`, itemID, qty)
	return err
}

// Release returns held-but-unsold units to the available pool. Floors at
// zero; total_stock is untouched.
func Release(ctx context.Context, q db.Querier, itemID int64, qty int32) error {
	_, err := q.Exec(ctx, `
		update menu_items
		set reserved_stock = case when reserved_stock >= $2 then reserved_stock - $2 else 0 end,
		    updated_at     = now()
		where id = $1 and total_stock is not null
	`, itemID, qty)
	return err
}

// Restock credits units back to total_stock, the compensating step when a
// paid order is voided. Untracked items start tracking from qty.
func Restock(ctx context.Context, q db.Querier, itemID int64, qty int32, markAvailable bool) error {
	_, err := q.Exec(ctx, `
		update menu_items
		set total_stock        = coalesce(total_stock, 0) + $2,
		    is_available       = case when $3 then true else is_available end,
		    unavailable_reason = case when $3 then '' else unavailable_reason end,
		    unavailable_since  = case when $3 then null else unavailable_since end,
		    updated_at         = now()
		where id = $1
	`, itemID, qty, markAvailable)
	return err
}
