// Package store implements the KV store facade of spec §4.4: it couples the
// append log with whichever in-memory index matches the engine's configured
// mode (an offset map in string mode, an HNSW graph in vector mode), and
// rebuilds that in-memory state from the log on startup.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"simpledb/hnsw"
	"simpledb/wal"
)

// ErrNotFound is returned by Get, GetVector, and Remove when the key is
// absent.
var ErrNotFound = errors.New("store: key not found")

// ErrWrongMode is returned when an operation is called against a store
// configured for the other mode (string vs. vector).
var ErrWrongMode = errors.New("store: operation not supported in this mode")

// Logger is the minimal structured-logging surface the store needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the store's logger (default a no-op).
func WithLogger(l Logger) Option { return func(s *Store) { s.logger = l } }

// WithMetrics overrides the store's metrics collector (default a no-op).
func WithMetrics(m MetricsCollector) Option { return func(s *Store) { s.metrics = m } }

// Store is the KV store facade described in spec §4.4. A single outer mutex
// guards the key→offset table (string mode) or the key-exists test (vector
// mode), distinct from the log's own mutex and the HNSW index's own mutex.
type Store struct {
	mu sync.Mutex

	log  *wal.Log
	mode wal.Mode

	strIndex map[string]int64 // string mode: key -> log offset
	vecIndex *hnsw.Index      // vector mode

	logger  Logger
	metrics MetricsCollector
}

// Open opens the log at path (creating it if necessary), in the given mode,
// and recovers in-memory state from it (spec §4.4 Recovery protocol).
// hnswOpts is only consulted in vector mode.
func Open(path string, mode wal.Mode, hnswOpts hnsw.Options, optFns ...Option) (*Store, error) {
	s := &Store{
		mode:    mode,
		logger:  noopLogger{},
		metrics: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(s)
	}

	var walLogger wal.Logger
	if s.logger != nil {
		walLogger = walLoggerAdapter{s.logger}
	}
	log, err := wal.Open(path, func(o *wal.Options) {
		o.Mode = mode
		if walLogger != nil {
			o.Logger = walLogger
		}
	})
	if err != nil {
		return nil, err
	}
	s.log = log

	switch mode {
	case wal.StringMode:
		s.strIndex = make(map[string]int64)
	case wal.VectorMode:
		if hnswOpts.Logger == nil {
			hnswOpts.Logger = hnswLoggerAdapter{s.logger}
		}
		idx, err := hnsw.New(hnswOpts)
		if err != nil {
			_ = log.Close()
			return nil, err
		}
		s.vecIndex = idx
	}

	start := time.Now()
	applied, err := s.recover()
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	s.metrics.RecordRecovery(applied, time.Since(start), nil)
	return s, nil
}

// walLoggerAdapter and hnswLoggerAdapter let store.Logger satisfy the
// narrower Logger interfaces wal and hnsw each declare for themselves,
// without those packages importing store (or each other).
type walLoggerAdapter struct{ Logger }
type hnswLoggerAdapter struct{ Logger }

// recover implements spec §4.4's recovery protocol: scan the log, buffer
// every non-COMMIT record by txn id, and on COMMIT apply the buffered
// records for that transaction in the order they were written. Buffers
// still outstanding when the scan ends belong to transactions whose COMMIT
// never landed, and are discarded.
func (s *Store) recover() (int, error) {
	records, err := s.log.Scan()
	if err != nil {
		return 0, fmt.Errorf("store: recover: %w", err)
	}

	uncommitted := make(map[uint64][]*wal.Record)
	applied := 0

	for _, rec := range records {
		switch rec.Type {
		case wal.Insert, wal.Delete:
			uncommitted[rec.TxnID] = append(uncommitted[rec.TxnID], rec)
		case wal.Commit:
			for _, buffered := range uncommitted[rec.TxnID] {
				if err := s.applyRecord(buffered); err != nil {
					s.logger.Warn("store: recovery skipped a record", "txn", rec.TxnID, "error", err)
					continue
				}
				applied++
			}
			delete(uncommitted, rec.TxnID)
		case wal.Checkpoint:
			// informational only; nothing to apply (spec §4.4 step 6).
		}
	}

	if n := len(uncommitted); n > 0 {
		s.logger.Info("store: discarding uncommitted transactions found during recovery", "count", n)
	}
	s.logger.Info("store: recovery complete", "records_applied", applied)
	return applied, nil
}

func (s *Store) applyRecord(rec *wal.Record) error {
	switch rec.Type {
	case wal.Insert:
		if s.mode == wal.StringMode {
			s.strIndex[string(rec.Key)] = rec.Offset
			return nil
		}
		return s.applyVectorInsert(rec.Key, rec.Vector, rec.Offset)
	case wal.Delete:
		if s.mode == wal.StringMode {
			delete(s.strIndex, string(rec.Key))
			return nil
		}
		if err := s.vecIndex.Remove(rec.Key); err != nil && !errors.Is(err, hnsw.ErrKeyNotFound) {
			return err
		}
		return nil
	}
	return nil
}

// applyVectorInsert tombstones any existing live node for key before
// inserting the new one, so a re-INSERT of an existing key behaves like an
// overwrite (matching string-mode SET) instead of hnsw.ErrDuplicateKey.
func (s *Store) applyVectorInsert(key []byte, vector []float32, offset int64) error {
	if err := s.vecIndex.Remove(key); err != nil && !errors.Is(err, hnsw.ErrKeyNotFound) {
		return err
	}
	_, err := s.vecIndex.Insert(key, vector, offset)
	return err
}

// Put appends an INSERT record for key/value and updates the in-memory
// offset map. String mode only.
func (s *Store) Put(txnID uint64, key []byte, value string) (int64, error) {
	if s.mode != wal.StringMode {
		return 0, ErrWrongMode
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	off, err := s.log.Append(&wal.Record{
		Type:        wal.Insert,
		TxnID:       txnID,
		TimestampNs: uint64(time.Now().UnixNano()),
		IsVector:    false,
		Key:         key,
		Value:       []byte(value),
	})
	if err != nil {
		s.metrics.RecordPut(time.Since(start), err)
		return 0, fmt.Errorf("store: put: %w", err)
	}
	s.strIndex[string(key)] = off
	s.metrics.RecordPut(time.Since(start), nil)
	return off, nil
}

// PutVector appends an INSERT record for key/vector, and inserts the vector
// into the HNSW graph at the recorded offset. Vector mode only. A key that
// is already live is overwritten (the old node is tombstoned).
func (s *Store) PutVector(txnID uint64, key []byte, vector []float32) (int64, error) {
	if s.mode != wal.VectorMode {
		return 0, ErrWrongMode
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	off, err := s.log.Append(&wal.Record{
		Type:        wal.Insert,
		TxnID:       txnID,
		TimestampNs: uint64(time.Now().UnixNano()),
		IsVector:    true,
		Key:         key,
		Vector:      vector,
	})
	if err != nil {
		s.metrics.RecordPut(time.Since(start), err)
		return 0, fmt.Errorf("store: put vector: %w", err)
	}
	if err := s.applyVectorInsert(key, vector, off); err != nil {
		s.metrics.RecordPut(time.Since(start), err)
		return 0, fmt.Errorf("store: put vector: %w", err)
	}
	s.metrics.RecordPut(time.Since(start), nil)
	return off, nil
}

// Get returns the string value for key, read through the log at the
// recorded offset. String mode only.
func (s *Store) Get(key []byte) (string, error) {
	if s.mode != wal.StringMode {
		return "", ErrWrongMode
	}
	start := time.Now()
	s.mu.Lock()
	off, ok := s.strIndex[string(key)]
	s.mu.Unlock()
	if !ok {
		s.metrics.RecordGet(time.Since(start), ErrNotFound)
		return "", ErrNotFound
	}

	rec, err := s.log.Read(off)
	if err != nil {
		s.metrics.RecordGet(time.Since(start), err)
		return "", fmt.Errorf("store: get: %w", err)
	}
	s.metrics.RecordGet(time.Since(start), nil)
	return string(rec.Value), nil
}

// GetVector returns the vector stored for key. Vector mode only.
func (s *Store) GetVector(key []byte) ([]float32, error) {
	if s.mode != wal.VectorMode {
		return nil, ErrWrongMode
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	v, _, err := s.vecIndex.Get(key)
	if err != nil {
		wrapped := ErrNotFound
		if !errors.Is(err, hnsw.ErrKeyNotFound) {
			wrapped = err
		}
		s.metrics.RecordGet(time.Since(start), wrapped)
		return nil, wrapped
	}
	s.metrics.RecordGet(time.Since(start), nil)
	return v, nil
}

// Search delegates to the HNSW index. Vector mode only.
func (s *Store) Search(query []float32, k int) ([]hnsw.Result, error) {
	if s.mode != wal.VectorMode {
		return nil, ErrWrongMode
	}
	start := time.Now()
	results, err := s.vecIndex.Search(query, k)
	s.metrics.RecordSearch(k, time.Since(start), err)
	return results, err
}

// Remove checks that key is live in the in-memory index, appends a DELETE
// record for it, and then removes it from the in-memory index (clears the
// offset map entry in string mode, tombstones the HNSW node in vector
// mode). A key that was never live
// is reported as ErrNotFound without ever touching the log — matching the
// original engine's check-then-log ordering, so a failed Remove never
// leaves a phantom DELETE record behind.
func (s *Store) Remove(txnID uint64, key []byte) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == wal.StringMode {
		if _, ok := s.strIndex[string(key)]; !ok {
			s.metrics.RecordRemove(time.Since(start), ErrNotFound)
			return ErrNotFound
		}
	} else {
		if _, _, err := s.vecIndex.Get(key); err != nil {
			wrapped := ErrNotFound
			if !errors.Is(err, hnsw.ErrKeyNotFound) {
				wrapped = err
			}
			s.metrics.RecordRemove(time.Since(start), wrapped)
			return wrapped
		}
	}

	_, err := s.log.Append(&wal.Record{
		Type:        wal.Delete,
		TxnID:       txnID,
		TimestampNs: uint64(time.Now().UnixNano()),
		IsVector:    s.mode == wal.VectorMode,
		Key:         key,
	})
	if err != nil {
		s.metrics.RecordRemove(time.Since(start), err)
		return fmt.Errorf("store: remove: %w", err)
	}

	if s.mode == wal.StringMode {
		delete(s.strIndex, string(key))
	} else if err := s.vecIndex.Remove(key); err != nil {
		// Already confirmed live above under the same s.mu hold; only an
		// internal invariant violation reaches here.
		s.metrics.RecordRemove(time.Since(start), err)
		return fmt.Errorf("store: remove: %w", err)
	}
	s.metrics.RecordRemove(time.Since(start), nil)
	return nil
}

// Commit appends a COMMIT record for txnID and fsyncs the log, making every
// record written for that transaction (and everything before it) durable.
func (s *Store) Commit(txnID uint64) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.log.Append(&wal.Record{
		Type:        wal.Commit,
		TxnID:       txnID,
		TimestampNs: uint64(time.Now().UnixNano()),
	}); err != nil {
		s.metrics.RecordCommit(time.Since(start), err)
		return fmt.Errorf("store: commit: %w", err)
	}
	if err := s.log.Sync(); err != nil {
		s.metrics.RecordCommit(time.Since(start), err)
		return fmt.Errorf("store: commit: %w", err)
	}
	s.metrics.RecordCommit(time.Since(start), nil)
	return nil
}

// Mode returns the store's configured mode.
func (s *Store) Mode() wal.Mode { return s.mode }

// Dimension returns the configured vector dimension. Vector mode only;
// returns 0 in string mode.
func (s *Store) Dimension() int {
	if s.vecIndex == nil {
		return 0
	}
	return s.vecIndex.Dimension()
}

// Close flushes and closes the underlying log.
func (s *Store) Close() error {
	return s.log.Close()
}
