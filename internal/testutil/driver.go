package testutil

import (
	"context"
	"errors"

	"github.com/pipe1800/anima-chat-sub000/driver"
	"github.com/pipe1800/anima-chat-sub000/storage"
)

// MemoryDriver is a driver.Driver backed by a MemoryStore. Transactions are
// no-ops; the store applies writes immediately, which is sufficient for
// orchestration tests that do not exercise rollback.
type MemoryDriver struct {
	store *MemoryStore
}

// NewMemoryDriver wraps a MemoryStore in the driver interface.
func NewMemoryDriver(store *MemoryStore) *MemoryDriver {
	return &MemoryDriver{store: store}
}

func (d *MemoryDriver) GetExecutor() driver.Executor                 { return noopTx{} }
func (d *MemoryDriver) UnwrapExecutor(tx struct{}) driver.ExecutorTx { return noopTx{} }
func (d *MemoryDriver) UnwrapTx(execTx driver.ExecutorTx) struct{}   { return struct{}{} }
func (d *MemoryDriver) PoolIsSet() bool                              { return true }
func (d *MemoryDriver) GetStore() storage.Store                      { return d.store }

func (d *MemoryDriver) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	return noopTx{}, nil
}

var errNoSQL = errors.New("testutil: in-memory driver does not execute SQL")

type noopTx struct{}

func (noopTx) Begin(ctx context.Context) (driver.ExecutorTx, error) { return noopTx{}, nil }
func (noopTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return 0, errNoSQL
}
func (noopTx) Query(ctx context.Context, sql string, args ...any) (driver.Rows, error) {
	return nil, errNoSQL
}
func (noopTx) QueryRow(ctx context.Context, sql string, args ...any) driver.Row {
	return errRow{}
}
func (noopTx) Commit(ctx context.Context) error   { return nil }
func (noopTx) Rollback(ctx context.Context) error { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errNoSQL }
