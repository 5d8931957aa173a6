package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type call struct {
	sql  string
	args []any
}

// fakeTx records statements. Embedding pgx.Tx satisfies the interface;
// any method not overridden panics if called.
type fakeTx struct {
	pgx.Tx

	calls      []call
	failOn     string
	failErr    error
	ids        map[string]int64
	nextID     int64
	committed  bool
	rolledBack bool
}

func newFakeTx() *fakeTx {
	return &fakeTx{ids: make(map[string]int64)}
}

func (f *fakeTx) fail(sql string) error {
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return f.failErr
	}
	return nil
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, call{sql: sql, args: args})
	if err := f.fail(sql); err != nil {
		return pgconn.CommandTag{}, err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.calls = append(f.calls, call{sql: sql, args: args})
	if err := f.fail(sql); err != nil {
		return fakeRow{err: err}
	}

	// stock upserts return a stable id per ticker
	ticker, _ := args[0].(string)
	id, ok := f.ids[ticker]
	if !ok {
		f.nextID++
		id = f.nextID
		f.ids[ticker] = id
	}
	return fakeRow{id: id}
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

type fakeRow struct {
	id  int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.id
	return nil
}

// fakeDB hands out a single fakeTx and records pool-level Exec calls
type fakeDB struct {
	tx       *fakeTx
	beginErr error
	calls    []call
	execErr  error
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return d.tx, nil
}

func (d *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.calls = append(d.calls, call{sql: sql, args: args})
	if d.execErr != nil {
		return pgconn.CommandTag{}, d.execErr
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (d *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("query not supported by fakeDB")
}

func (d *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return d.tx.QueryRow(ctx, sql, args...)
}
