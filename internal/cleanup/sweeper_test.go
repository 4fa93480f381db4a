package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

func TestDailyGuard(t *testing.T) {
	var g dailyGuard

	if !g.tryAcquire("2026-09-01") {
		t.Fatalf("first acquisition of the day must succeed")
	}
	if g.tryAcquire("2026-09-01") {
		t.Fatalf("second acquisition on the same day must fail")
	}
	if !g.tryAcquire("2026-09-02") {
		t.Fatalf("a new day must allow the sweep again")
	}
}

func TestDailyGuardConcurrent(t *testing.T) {
	var g dailyGuard
	var wg sync.WaitGroup
	acquired := make(chan bool, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired <- g.tryAcquire("2026-09-01")
		}()
	}
	wg.Wait()
	close(acquired)

	wins := 0
	for ok := range acquired {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

type fakeRow struct {
	err error
}

func (r fakeRow) Scan(...any) error { return r.err }

// fakeTx fails the eligibility lock with a scripted error; nothing past that
// statement should run.
type fakeTx struct {
	lockErr error
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Commit(context.Context) error          { return nil }
func (t *fakeTx) Rollback(context.Context) error        { return nil }
func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("unexpected copy")
}
func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("unexpected prepare")
}
func (t *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected exec")
}
func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}
func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return fakeRow{err: t.lockErr} }
func (t *fakeTx) Conn() *pgx.Conn                                  { return nil }

type fakeDB struct {
	tx *fakeTx
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) { return f.tx, nil }
func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func TestDeleteStaleOrderSkipsCollectedOrder(t *testing.T) {
	s := &Sweeper{DB: &fakeDB{tx: &fakeTx{lockErr: pgx.ErrNoRows}}, Logger: zap.NewNop()}

	deleted, err := s.deleteStaleOrder(context.Background(), 1, 42, time.Now())
	if err != nil {
		t.Fatalf("a vanished lock row is a clean skip, got %v", err)
	}
	if deleted {
		t.Fatalf("skipped order must not count as deleted")
	}
}

func TestDeleteStaleOrderPropagatesLockFailure(t *testing.T) {
	lockErr := errors.New("connection reset")
	s := &Sweeper{DB: &fakeDB{tx: &fakeTx{lockErr: lockErr}}, Logger: zap.NewNop()}

	_, err := s.deleteStaleOrder(context.Background(), 1, 42, time.Now())
	if !errors.Is(err, lockErr) {
		t.Fatalf("infrastructure failure must surface, got %v", err)
	}
}
