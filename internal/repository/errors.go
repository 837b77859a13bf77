package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// transaction_id のユニーク制約違反
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")
)
