package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function within a database transaction, passing the
// underlying handle via tx.
//
// Repositories MUST accept a nil tx (non-transactional path) and MAY lock rows
// (SELECT ... FOR UPDATE) when they detect a real transaction.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
