package reservation

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"dineflow-order-service/internal/stock"
)

type fakeMenuItem struct {
	name      string
	price     pgtype.Numeric
	total     *int32
	reserved  int32
	available bool
	active    bool
	reason    string
}

// fakeStore backs ReserveLines with an in-memory menu_items table, covering
// both the menu lookup and the ledger statements issued per line.
type fakeStore struct {
	items map[int64]*fakeMenuItem
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		switch v := d.(type) {
		case *int64:
			*v = row[i].(int64)
		case *string:
			*v = row[i].(string)
		case *bool:
			*v = row[i].(bool)
		case *pgtype.Numeric:
			*v = row[i].(pgtype.Numeric)
		default:
			return errors.New("unexpected scan target")
		}
	}
	return nil
}

func (f *fakeStore) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	ids := args[1].([]int64)
	rows := &fakeRows{}
	for _, id := range ids {
		item, ok := f.items[id]
		if !ok {
			continue
		}
		rows.rows = append(rows.rows, []any{id, item.name, item.price, item.available, item.active, item.reason})
	}
	return rows, nil
}

func (f *fakeStore) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	item, ok := f.items[args[0].(int64)]
	switch {
	case strings.Contains(sql, "select name, total_stock"):
		return fakeRow{scan: func(dest ...any) error {
			if !ok {
				return pgx.ErrNoRows
			}
			*dest[0].(*string) = item.name
			*dest[1].(**int32) = item.total
			return nil
		}}
	case strings.Contains(sql, "greatest(total_stock - reserved_stock"):
		return fakeRow{scan: func(dest ...any) error {
			available := *item.total - item.reserved
			if available < 0 {
				available = 0
			}
			*dest[0].(*int32) = available
			return nil
		}}
	}
	return fakeRow{scan: func(...any) error { return errors.New("unexpected statement") }}
}

func (f *fakeStore) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	item, ok := f.items[args[0].(int64)]
	qty := args[1].(int32)
	if !ok || item.total == nil {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	if strings.Contains(sql, "reserved_stock = reserved_stock +") {
		if *item.total-item.reserved < qty {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		item.reserved += qty
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	if item.reserved >= qty {
		item.reserved -= qty
	} else {
		item.reserved = 0
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func price(units int64) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(units * 100), Exp: -2, Valid: true}
}

func tracked(total int32) *int32 { return &total }

func testManager() *Manager {
	return &Manager{Logger: zap.NewNop()}
}

func TestReserveLinesSnapshotsPrices(t *testing.T) {
	store := &fakeStore{items: map[int64]*fakeMenuItem{
		1: {name: "Margherita", price: price(350), total: tracked(10), available: true, active: true},
		2: {name: "Filter Coffee", price: price(40), available: true, active: true},
	}}

	lines, err := testManager().ReserveLines(context.Background(), store, Tenant{ID: 1}, []CartLine{
		{MenuItemID: 1, Quantity: 2},
		{MenuItemID: 2, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(lines))
	}
	if got := lines[0].LineSubtotal.StringFixed(2); got != "700.00" {
		t.Fatalf("expected line subtotal 700.00, got %s", got)
	}
	if store.items[1].reserved != 2 {
		t.Fatalf("expected hold of 2 on tracked item, got %d", store.items[1].reserved)
	}
	if store.items[2].reserved != 0 {
		t.Fatalf("untracked item must not carry a hold, got %d", store.items[2].reserved)
	}
}

func TestReserveLinesReleasesHeldLinesOnFailure(t *testing.T) {
	store := &fakeStore{items: map[int64]*fakeMenuItem{
		1: {name: "Margherita", price: price(350), total: tracked(10), available: true, active: true},
		2: {name: "Masala Dosa", price: price(120), total: tracked(1), available: true, active: true},
	}}

	_, err := testManager().ReserveLines(context.Background(), store, Tenant{ID: 1}, []CartLine{
		{MenuItemID: 1, Quantity: 2},
		{MenuItemID: 2, Quantity: 3},
	})

	var insufficient *stock.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.ItemName != "Masala Dosa" || insufficient.Available != 1 {
		t.Fatalf("error names the wrong line: %+v", insufficient)
	}
	if store.items[1].reserved != 0 {
		t.Fatalf("hold on the first line must be released after the cart fails, got %d", store.items[1].reserved)
	}
	if store.items[2].reserved != 0 {
		t.Fatalf("failed line must not hold stock, got %d", store.items[2].reserved)
	}
}

func TestReserveLinesRejectsUnavailableItem(t *testing.T) {
	store := &fakeStore{items: map[int64]*fakeMenuItem{
		1: {name: "Thali", price: price(200), total: tracked(5), available: false, active: true, reason: "Out of stock"},
	}}

	_, err := testManager().ReserveLines(context.Background(), store, Tenant{ID: 1}, []CartLine{
		{MenuItemID: 1, Quantity: 1},
	})

	var unavailable *stock.ItemUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ItemUnavailableError, got %v", err)
	}
	if store.items[1].reserved != 0 {
		t.Fatalf("unavailable item must not hold stock, got %d", store.items[1].reserved)
	}
}

func TestReserveLinesEmptyCart(t *testing.T) {
	_, err := testManager().ReserveLines(context.Background(), &fakeStore{}, Tenant{ID: 1}, nil)
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}
