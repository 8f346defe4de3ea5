package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bakery/internal/core/apperror"
)

// BatchInserter bulk-loads rows with the COPY protocol.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice copies rows into table. Each row matches columns.
// It must run inside a transaction.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, apperror.NewInternal(fmt.Errorf("copy into %s requires a transaction", table))
	}
	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// BatchExecutor sends several statements in one round trip.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// BatchQuery is one statement of a batch.
type BatchQuery struct {
	SQL  string
	Args []any
	// Expect, when positive, is the number of rows the statement must affect.
	Expect int64
}

// ExecuteBatch runs queries in order and stops at the first failure.
// A statement affecting a different row count than its Expect yields
// errMismatch for that query's index.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery, errMismatch func(i int) error) error {
	if len(queries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := e.txManager.GetQuerier(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for i, q := range queries {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("batch query %d: %w", i, err)
		}
		if q.Expect > 0 && tag.RowsAffected() != q.Expect && errMismatch != nil {
			return errMismatch(i)
		}
	}
	return nil
}
