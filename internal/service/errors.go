package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an update targets a contact that no longer exists.
	ErrNotFound = errors.New("object does not exist")

	// ErrTransaction matches every TransactionError.
	ErrTransaction = errors.New("transaction failed")

	// ErrUnavailable is returned by reads when the store cannot be reached.
	ErrUnavailable = errors.New("store unavailable")

	// ErrInitialization is returned by Open when the store cannot be opened or migrated.
	ErrInitialization = errors.New("store initialization failed")

	// ErrClosed is returned for operations submitted after Close.
	ErrClosed = errors.New("store closed")

	// ErrNoMutation is returned by UpdateContact when no mutator is given.
	ErrNoMutation = errors.New("no mutation given")
)

// TransactionError reports a failed statement or commit. Nothing of the transaction was applied.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransaction, e.Op, e.Err)
}

// Unwrap returns the error of the failed statement or commit.
func (e *TransactionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransaction.
func (e *TransactionError) Is(target error) bool {
	return target == ErrTransaction
}
