// Package driver provides database driver abstractions for the engine.
//
// It defines the interfaces a database backend must implement so the same
// store logic runs on pgx/v5 and database/sql through a generic driver
// pattern.
package driver

import (
	"context"

	"github.com/pipe1800/anima-chat-sub000/storage"
)

// Driver provides database operations for the engine.
// TTx is the native transaction type (pgx.Tx for pgx/v5, *sql.Tx for database/sql).
//
// Implementations are created with the driver-specific New() functions:
//   - github.com/pipe1800/anima-chat-sub000/driver/pgxv5.New(pool)
//   - github.com/pipe1800/anima-chat-sub000/driver/databasesql.New(db)
type Driver[TTx any] interface {
	// GetExecutor returns an executor for non-transactional operations.
	// The returned Executor uses the underlying connection pool.
	GetExecutor() Executor

	// UnwrapExecutor converts a native transaction to an ExecutorTx.
	// This allows the engine to work with user-provided transactions.
	UnwrapExecutor(tx TTx) ExecutorTx

	// UnwrapTx extracts the native transaction from an ExecutorTx.
	UnwrapTx(execTx ExecutorTx) TTx

	// Begin starts a new transaction and returns an ExecutorTx.
	Begin(ctx context.Context) (ExecutorTx, error)

	// PoolIsSet returns true if the driver has a database pool configured.
	PoolIsSet() bool

	// GetStore returns a Store implementation using this driver.
	GetStore() storage.Store
}

// Beginner is an interface for types that can begin transactions.
// Used internally to handle driver abstraction in non-generic contexts.
type Beginner interface {
	Begin(ctx context.Context) (ExecutorTx, error)
}
