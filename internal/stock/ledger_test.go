package stock

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeItem struct {
	name     string
	total    *int32
	reserved int32
}

// fakeLedger answers the ledger's statements from an in-memory item table.
type fakeLedger struct {
	items map[int64]*fakeItem
	execs int
}

func (f *fakeLedger) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs++
	itemID := args[0].(int64)
	qty := args[1].(int32)
	item, ok := f.items[itemID]
	if !ok || item.total == nil {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	switch {
	case strings.Contains(sql, "reserved_stock = reserved_stock +"):
		if *item.total-item.reserved < qty {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		item.reserved += qty
	case strings.Contains(sql, "greatest(total_stock - $2"):
		*item.total -= qty
		if *item.total < 0 {
			*item.total = 0
		}
		if item.reserved >= qty {
			item.reserved -= qty
		} else {
			item.reserved = 0
		}
	default:
		if item.reserved >= qty {
			item.reserved -= qty
		} else {
			item.reserved = 0
		}
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeLedger) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (f *fakeLedger) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	itemID := args[0].(int64)
	item, ok := f.items[itemID]
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

func tracked(total int32) *int32 { return &total }

func TestReserveInsufficient(t *testing.T) {
	ledger := &fakeLedger{items: map[int64]*fakeItem{
		7: {name: "Masala Dosa", total: tracked(3), reserved: 2},
	}}

	err := Reserve(context.Background(), ledger, 7, 2)
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.ItemID != 7 || insufficient.ItemName != "Masala Dosa" {
		t.Fatalf("error names the wrong item: %+v", insufficient)
	}
	if insufficient.Requested != 2 || insufficient.Available != 1 {
		t.Fatalf("expected requested=2 available=1, got %+v", insufficient)
	}
	if ledger.items[7].reserved != 2 {
		t.Fatalf("a failed reserve must not touch the counter, got %d", ledger.items[7].reserved)
	}
}

func TestReserveUnknownItem(t *testing.T) {
	ledger := &fakeLedger{items: map[int64]*fakeItem{}}
	if err := Reserve(context.Background(), ledger, 99, 1); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestReserveUntrackedItem(t *testing.T) {
	ledger := &fakeLedger{items: map[int64]*fakeItem{
		3: {name: "Filter Coffee"},
	}}
	if err := Reserve(context.Background(), ledger, 3, 10); err != nil {
		t.Fatalf("untracked item must reserve trivially, got %v", err)
	}
	if ledger.execs != 0 {
		t.Fatalf("untracked item must not issue an update, got %d", ledger.execs)
	}
}

func TestReserveThenRelease(t *testing.T) {
	ledger := &fakeLedger{items: map[int64]*fakeItem{
		5: {name: "Thali", total: tracked(4)},
	}}
	if err := Reserve(context.Background(), ledger, 5, 3); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if ledger.items[5].reserved != 3 {
		t.Fatalf("expected reserved=3, got %d", ledger.items[5].reserved)
	}
	if err := Release(context.Background(), ledger, 5, 3); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if ledger.items[5].reserved != 0 {
		t.Fatalf("expected reserved=0 after release, got %d", ledger.items[5].reserved)
	}
}
