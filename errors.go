package simpledb

import (
	"errors"
	"fmt"

	"simpledb/hnsw"
	"simpledb/paxos"
	"simpledb/store"
	"simpledb/txn"
)

// ErrNotFound is returned when a key is absent, across string mode, vector
// mode, and the CASPaxos register.
var ErrNotFound = errors.New("simpledb: not found")

// ErrWrongMode is returned when an operation is called against a DB
// configured for the other mode (string vs. vector).
var ErrWrongMode = store.ErrWrongMode

// ErrInactive is returned by any operation against a transaction that has
// already committed or rolled back.
var ErrInactive = txn.ErrInactive

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("simpledb: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrCASFailed indicates a CASPaxos round failed to reach quorum on
// PREPARE or COMMIT, including a failed compare-and-swap precondition.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrCASFailed struct {
	Key   string
	cause error
}

func (e *ErrCASFailed) Error() string {
	return fmt.Sprintf("simpledb: CAS failed for key %q", e.Key)
}

func (e *ErrCASFailed) Unwrap() error { return e.cause }

// translateError normalizes internal package errors (store, hnsw, txn,
// paxos) into the small public error surface this package exposes, so
// callers only ever need to errors.Is/As against the types declared here.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, store.ErrNotFound) || errors.Is(err, hnsw.ErrKeyNotFound) || errors.Is(err, paxos.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	var casErr *paxos.ErrCASFailed
	if errors.As(err, &casErr) {
		return &ErrCASFailed{Key: casErr.Key, cause: err}
	}

	return err
}
