// Package cleanup reclaims stock from work that never finished: reservations
// past their TTL and cash orders left unpaid past the tenant's business day.
// Both sweeps are idempotent and safe to trigger from a timer, a cron
// endpoint, or opportunistically on request ingress.
package cleanup

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"dineflow-order-service/internal/audit"
	"dineflow-order-service/internal/reservation"
	"dineflow-order-service/internal/stock"
	"dineflow-order-service/internal/utils"
)

// DB is the slice of the pool the sweeper uses. *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Sweeper struct {
	DB              DB
	Reservations    *reservation.Manager
	Audit           *audit.Recorder
	Logger          *zap.Logger
	DefaultTimezone string

	staleGuard dailyGuard
}

// dailyGuard rate-limits the opportunistic stale sweep to once per process
// per UTC day. It resets at process start; the sweep itself is idempotent, so
// extra runs across restarts or replicas only cost a query.
type dailyGuard struct {
	mu   sync.Mutex
	last string
}

func (g *dailyGuard) tryAcquire(utcDate string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last == utcDate {
		return false
	}
	g.last = utcDate
	return true
}

// SweepExpiredReservations expires every ACTIVE reservation past its
// deadline, releasing held stock.
func (s *Sweeper) SweepExpiredReservations(ctx context.Context) (int, error) {
	expired, err := s.Reservations.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.Logger.Info("expired reservations swept", zap.Int("count", expired))
	}
	return expired, nil
}

// SweepStaleCashOrders deletes pending unpaid cash orders created before the
// tenant-local start of today, releasing the stock each order item still
// holds. Payment never succeeded for these, so nothing was sold; the holds
// just go back to the pool.
func (s *Sweeper) SweepStaleCashOrders(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.DB.Query(ctx, `select id, timezone from restaurants`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type tenant struct {
		id int64
		tz string
	}
	var tenants []tenant
	for rows.Next() {
		var t tenant
		if err := rows.Scan(&t.id, &t.tz); err != nil {
			return 0, err
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	deleted := 0
	for _, t := range tenants {
		cutoff := utils.StartOfDayUTC(t.tz, s.DefaultTimezone, now)

		orderRows, err := s.DB.Query(ctx, `
			select id from orders
			where restaurant_id = $1
			  and payment_method = 'cash' and payment_status = 'pending' and status = 'pending'
			  and created_at < $2
		`, t.id, cutoff)
		if err != nil {
			return deleted, err
		}
		var orderIDs []int64
		for orderRows.Next() {
			var id int64
			if err := orderRows.Scan(&id); err != nil {
				orderRows.Close()
				return deleted, err
			}
			orderIDs = append(orderIDs, id)
		}
		orderRows.Close()
		if err := orderRows.Err(); err != nil {
			return deleted, err
		}

		for _, orderID := range orderIDs {
			ok, err := s.deleteStaleOrder(ctx, t.id, orderID, cutoff)
			if err != nil {
				s.Logger.Error("stale order delete failed", zap.Int64("orderId", orderID), zap.Error(err))
				continue
			}
			if ok {
				deleted++
			}
		}
	}

	if deleted > 0 {
		s.Logger.Info("stale pending cash orders swept", zap.Int("count", deleted))
	}
	return deleted, nil
}

// deleteStaleOrder releases the order's holds and deletes it in one
// transaction. The row lock re-checks eligibility so a collection racing in
// between select and delete makes the order ineligible instead of losing
// money.
func (s *Sweeper) deleteStaleOrder(ctx context.Context, restaurantID, orderID int64, cutoff time.Time) (bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked int64
	err = tx.QueryRow(ctx, `
		select id from orders
		where id = $1
		  and payment_method = 'cash' and payment_status = 'pending' and status = 'pending'
		  and created_at < $2
		for update
	`, orderID, cutoff).Scan(&locked)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Collected or already swept in the meantime.
			return false, nil
		}
		return false, err
	}

	itemRows, err := tx.Query(ctx, `
		select menu_item_id, quantity from order_items
		where order_id = $1 and menu_item_id is not null
	`, orderID)
	if err != nil {
		return false, err
	}
	type hold struct {
		itemID int64
		qty    int32
	}
	var holds []hold
	for itemRows.Next() {
		var h hold
		if err := itemRows.Scan(&h.itemID, &h.qty); err != nil {
			itemRows.Close()
			return false, err
		}
		holds = append(holds, h)
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		return false, err
	}

	// The stock release is an explicit step of deletion, not a side effect
	// hidden behind the delete.
	for _, h := range holds {
		if err := stock.Release(ctx, tx, h.itemID, h.qty); err != nil {
			return false, err
		}
	}

	if _, err := tx.Exec(ctx, `delete from order_items where order_id = $1`, orderID); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `delete from orders where id = $1`, orderID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	s.Audit.Record(ctx, audit.Entry{
		Action:       audit.ActionStaleOrderSwept,
		Actor:        "system",
		RestaurantID: restaurantID,
		EntityType:   "Order",
		EntityID:     strconv.FormatInt(orderID, 10),
		OldValue:     map[string]any{"status": "pending", "paymentStatus": "pending"},
	})
	return true, nil
}

// MaybeSweepStaleCashOrders runs the stale sweep at most once per process per
// UTC day. Meant for opportunistic triggering on request ingress when no
// external scheduler is configured.
func (s *Sweeper) MaybeSweepStaleCashOrders(ctx context.Context) {
	now := time.Now().UTC()
	if !s.staleGuard.tryAcquire(now.Format("2006-01-02")) {
		return
	}
	if _, err := s.SweepStaleCashOrders(ctx, now); err != nil {
		s.Logger.Error("opportunistic stale sweep failed", zap.Error(err))
	}
}

// Run drives both sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepExpiredReservations(ctx); err != nil {
				s.Logger.Error("reservation sweep failed", zap.Error(err))
			}
			s.MaybeSweepStaleCashOrders(ctx)
		}
	}
}
