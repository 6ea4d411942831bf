package repositories

import "context"

// TxFn is a function executed within a transaction. The context carries the
// transaction so repositories participate automatically.
type TxFn func(ctx context.Context) error

// TransactionManager runs functions inside a database transaction.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
