package repository

import "github.com/jmoiron/sqlx"

// DefaultBatchSize bounds the rows sent in one multi-row statement.
const DefaultBatchSize = 500

func execOr(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}

func normaliseBatchSize(size int) int {
	if size <= 0 {
		return DefaultBatchSize
	}
	return size
}

func chunk[T any](items []T, size int) [][]T {
	size = normaliseBatchSize(size)
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
