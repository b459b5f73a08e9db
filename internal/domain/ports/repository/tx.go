package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle passed through repository methods.
// The concrete type is infra-defined (pgx.Tx for Postgres); repositories
// must gracefully accept NoTX and run against the pool.
type Tx interface{}

var NoTX Tx

// TransactionManager executes a function within a database transaction,
// handing the transaction handle to the callback. Keeping the handle opaque
// keeps use-case code free of driver types while still letting a use case
// span several repository calls atomically.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
