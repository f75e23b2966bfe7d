// Package simpledb provides an embeddable, single-node database engine that
// serves two complementary access patterns over a shared, durable,
// key-addressed store: key→string values under ACID transactions, and
// key→fixed-dimension float vectors with approximate nearest-neighbor
// search over an HNSW graph. A separate key→string CASPaxos register
// coexists alongside the transactional store.
package simpledb

import (
	"context"
	"fmt"
	"time"

	"simpledb/hnsw"
	"simpledb/lock"
	"simpledb/paxos"
	"simpledb/store"
	"simpledb/txn"
	"simpledb/wal"
)

// DB is the facade wiring the append log, HNSW index, lock manager,
// transaction manager, and CASPaxos register into a single engine
// instance. An instance runs in exactly one of StringMode or VectorMode
// (spec §3); the CASPaxos register is always available, independent of
// mode, since it occupies its own namespace.
type DB struct {
	mode  wal.Mode
	store *store.Store
	locks *lock.Manager
	txns  *txn.Manager
	reg   *paxos.Register

	logger  *Logger
	metrics MetricsCollector
}

// Open opens (or creates) the database at path in the given mode. dimension
// is only consulted in VectorMode, where it configures the HNSW index.
func Open(path string, mode wal.Mode, dimension int, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)

	hnswOpts := hnsw.NewOptions(dimension, append([]hnsw.Option{hnsw.WithLogger(o.logger)}, o.hnswOptFns...)...)

	s, err := store.Open(path, mode, hnswOpts, store.WithLogger(o.logger), store.WithMetrics(o.metricsCollector))
	if err != nil {
		return nil, fmt.Errorf("simpledb: open: %w", translateError(err))
	}

	locks := lock.New(o.logger)
	txns := txn.New(s, locks, o.logger)
	reg := paxos.NewRegister(o.nodeID, o.logger, o.paxosOptFns...)

	return &DB{
		mode:    mode,
		store:   s,
		locks:   locks,
		txns:    txns,
		reg:     reg,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}, nil
}

// Mode returns the configured mode (StringMode or VectorMode).
func (db *DB) Mode() wal.Mode { return db.mode }

// Begin starts a new ACTIVE transaction (spec §4.5 begin()).
func (db *DB) Begin() *txn.Txn { return db.txns.Begin() }

// Commit applies t's buffered write set, fsyncs, and releases its locks.
func (db *DB) Commit(t *txn.Txn) error {
	err := db.txns.Commit(t)
	db.logger.LogCommit(t.ID(), true, err)
	if err != nil {
		return translateError(err)
	}
	return nil
}

// Rollback discards t's buffered write set without touching the store.
func (db *DB) Rollback(t *txn.Txn) error {
	err := db.txns.Rollback(t)
	db.logger.LogCommit(t.ID(), false, err)
	if err != nil {
		return translateError(err)
	}
	return nil
}

// Get reads key's string value within transaction t (read-your-writes).
// String mode only.
func (db *DB) Get(t *txn.Txn, key []byte) (string, error) {
	v, err := db.txns.Read(t, key)
	return v, translateError(err)
}

// Put writes key=value within transaction t. String mode only.
func (db *DB) Put(t *txn.Txn, key []byte, value string) error {
	return translateError(db.txns.Write(t, key, value))
}

// Remove buffers a DELETE of key within transaction t.
func (db *DB) Remove(t *txn.Txn, key []byte) error {
	return translateError(db.txns.Remove(t, key))
}

// GetVector reads key's vector within transaction t. Vector mode only.
func (db *DB) GetVector(t *txn.Txn, key []byte) ([]float32, error) {
	v, err := db.txns.ReadVector(t, key)
	return v, translateError(err)
}

// PutVector writes key's vector within transaction t. Vector mode only.
func (db *DB) PutVector(t *txn.Txn, key []byte, vector []float32) error {
	if err := db.checkDimension(vector); err != nil {
		return err
	}
	return translateError(db.txns.WriteVector(t, key, vector))
}

// Search runs an HNSW k-NN search against the committed graph (read-only,
// no locks, per spec §2's data-flow summary). Vector mode only.
func (db *DB) Search(query []float32, k int) ([]hnsw.Result, error) {
	if err := db.checkDimension(query); err != nil {
		return nil, err
	}
	results, err := db.store.Search(query, k)
	return results, translateError(err)
}

// checkDimension reports a populated ErrDimensionMismatch before a vector
// ever reaches the store, so callers get the expected/actual dimensions
// rather than the bare hnsw sentinel.
func (db *DB) checkDimension(vector []float32) error {
	expected := db.store.Dimension()
	if len(vector) != expected {
		return &ErrDimensionMismatch{Expected: expected, Actual: len(vector)}
	}
	return nil
}

// AutoGet wraps a single GET in an implicit transaction.
func (db *DB) AutoGet(key []byte) (string, error) {
	v, err := db.txns.AutoGet(key)
	return v, translateError(err)
}

// AutoSet wraps a single SET in an implicit BEGIN/COMMIT.
func (db *DB) AutoSet(key []byte, value string) error {
	return translateError(db.txns.AutoSet(key, value))
}

// AutoRemove wraps a single DELETE in an implicit BEGIN/COMMIT.
func (db *DB) AutoRemove(key []byte) error {
	return translateError(db.txns.AutoRemove(key))
}

// AutoGetVector wraps a single vector GET in an implicit transaction.
func (db *DB) AutoGetVector(key []byte) ([]float32, error) {
	v, err := db.txns.AutoGetVector(key)
	return v, translateError(err)
}

// AutoSetVector wraps a single vector SET in an implicit BEGIN/COMMIT.
func (db *DB) AutoSetVector(key []byte, vector []float32) error {
	if err := db.checkDimension(vector); err != nil {
		return err
	}
	return translateError(db.txns.AutoSetVector(key, vector))
}

// CAS runs a CASPaxos round on the engine's single-register namespace
// (spec §4.6), independent of the transactional store's mode. expectedOld
// nil means no precondition: the round sets key whatever its current value.
func (db *DB) CAS(ctx context.Context, key string, expectedOld *string, newValue string) error {
	start := time.Now()
	err := db.reg.CAS(ctx, key, expectedOld, newValue)
	db.metrics.RecordCAS(time.Since(start), err == nil, err)
	db.logger.LogCAS(key, err == nil, err)
	return translateError(err)
}

// RegisterSet unconditionally sets key in the CASPaxos register.
func (db *DB) RegisterSet(ctx context.Context, key, value string) error {
	return db.CAS(ctx, key, nil, value)
}

// RegisterDelete tombstones key in the CASPaxos register, conditioned on
// its current value equaling expectedOld.
func (db *DB) RegisterDelete(ctx context.Context, key, expectedOld string) error {
	start := time.Now()
	err := db.reg.Delete(ctx, key, expectedOld)
	db.metrics.RecordCAS(time.Since(start), err == nil, err)
	db.logger.LogCAS(key, err == nil, err)
	return translateError(err)
}

// RegisterGet performs the CASPaxos register's local, possibly-stale read
// (spec §4.6 get()).
func (db *DB) RegisterGet(key string) (string, error) {
	v, err := db.reg.Get(key)
	return v, translateError(err)
}

// Close flushes and closes the underlying log.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	return db.store.Close()
}
