// Package txn implements the transaction manager of spec §4.5: BEGIN,
// buffered writes, COMMIT/ROLLBACK, and the auto-commit wrapper used for
// single-statement operations, layered on the lock manager and KV store.
package txn

import (
	"errors"
	"fmt"
	"sync/atomic"

	"simpledb/lock"
	"simpledb/store"
)

// ErrNotFound mirrors store.ErrNotFound for callers that only import txn.
var ErrNotFound = store.ErrNotFound

// State is a transaction's lifecycle stage.
type State int

const (
	// Active is the state from Begin until Commit or Rollback.
	Active State = iota
	// Committed means the write set was applied and COMMIT was fsynced.
	Committed
	// Aborted means the write set was discarded without touching the store.
	Aborted
)

func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// ErrInactive is returned by any operation against a transaction that has
// already committed or rolled back.
var ErrInactive = errors.New("txn: transaction is not active")

type writeKind int

const (
	writeSet writeKind = iota
	writeDelete
)

type write struct {
	kind  writeKind
	key   []byte
	value string // valid when kind == writeSet
	vec   []float32
}

// Txn is one transaction's write set and lifecycle state. The read set is
// implicit in the S-locks recorded in held.
type Txn struct {
	id    uint64
	state State

	// writes is an ordered list of (key, write); order is insertion order
	// per spec §4.5, with later writes to an already-buffered key updating
	// it in place rather than appending a duplicate entry.
	order   []string
	writes  map[string]*write
	held    map[string]lock.Mode
}

// ID returns the transaction's id.
func (t *Txn) ID() uint64 { return t.id }

// State returns the transaction's current lifecycle state.
func (t *Txn) State() State { return t.state }

// Logger is the minimal structured-logging surface the transaction manager
// needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Manager begins, reads/writes against, and commits or rolls back
// transactions, coordinating the lock manager and the store.
type Manager struct {
	nextID atomic.Uint64

	store *store.Store
	locks *lock.Manager

	logger Logger
}

// New builds a Manager over s, taking locks through locks.
func New(s *store.Store, locks *lock.Manager, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{store: s, locks: locks, logger: logger}
}

// Begin allocates a monotonically increasing txn id and returns a new
// ACTIVE transaction (spec §4.5 begin()).
func (m *Manager) Begin() *Txn {
	id := m.nextID.Add(1)
	t := &Txn{
		id:     id,
		state:  Active,
		writes: make(map[string]*write),
		held:   make(map[string]lock.Mode),
	}
	m.logger.Debug("txn: begin", "txn", id)
	return t
}

func (t *Txn) requireActive() error {
	if t.state != Active {
		return ErrInactive
	}
	return nil
}

// Read returns the string value for key: the buffered write-set value if
// key has been written or deleted in this transaction (read-your-writes),
// otherwise the store's committed value. It acquires S on key first, held
// until commit or rollback.
func (m *Manager) Read(t *Txn, key []byte) (string, error) {
	if err := t.requireActive(); err != nil {
		return "", err
	}
	m.acquire(t, key, lock.Shared)

	sk := string(key)
	if w, ok := t.writes[sk]; ok {
		if w.kind == writeDelete {
			return "", store.ErrNotFound
		}
		return w.value, nil
	}
	return m.store.Get(key)
}

// ReadVector is Read's vector-mode counterpart.
func (m *Manager) ReadVector(t *Txn, key []byte) ([]float32, error) {
	if err := t.requireActive(); err != nil {
		return nil, err
	}
	m.acquire(t, key, lock.Shared)

	sk := string(key)
	if w, ok := t.writes[sk]; ok {
		if w.kind == writeDelete {
			return nil, store.ErrNotFound
		}
		return w.vec, nil
	}
	return m.store.GetVector(key)
}

// Write buffers a SET of key to value, acquiring X on key first. The write
// set entry is updated in place if key was already written or deleted
// earlier in this transaction (spec §4.5 write()).
func (m *Manager) Write(t *Txn, key []byte, value string) error {
	if err := t.requireActive(); err != nil {
		return err
	}
	m.acquire(t, key, lock.Exclusive)
	m.bufferWrite(t, key, &write{kind: writeSet, key: key, value: value})
	return nil
}

// WriteVector is Write's vector-mode counterpart.
func (m *Manager) WriteVector(t *Txn, key []byte, vector []float32) error {
	if err := t.requireActive(); err != nil {
		return err
	}
	m.acquire(t, key, lock.Exclusive)
	m.bufferWrite(t, key, &write{kind: writeSet, key: key, vec: vector})
	return nil
}

// Remove buffers a DELETE marker for key, acquiring X on key first (spec
// §4.5 remove()).
func (m *Manager) Remove(t *Txn, key []byte) error {
	if err := t.requireActive(); err != nil {
		return err
	}
	m.acquire(t, key, lock.Exclusive)
	m.bufferWrite(t, key, &write{kind: writeDelete, key: key})
	return nil
}

func (m *Manager) acquire(t *Txn, key []byte, mode lock.Mode) {
	sk := string(key)
	if held, ok := t.held[sk]; ok && (held == lock.Exclusive || held == mode) {
		return
	}
	m.locks.Acquire(t.id, key, mode)
	t.held[sk] = mode
}

func (m *Manager) bufferWrite(t *Txn, key []byte, w *write) {
	sk := string(key)
	if _, exists := t.writes[sk]; !exists {
		t.order = append(t.order, sk)
	}
	t.writes[sk] = w
}

// Commit applies the write set to the store in buffered order (each
// SET/DELETE appends one log record), appends COMMIT, fsyncs, transitions
// the transaction to COMMITTED, and releases every lock it holds (spec
// §4.5 commit()).
func (m *Manager) Commit(t *Txn) error {
	if err := t.requireActive(); err != nil {
		return err
	}

	for _, sk := range t.order {
		w := t.writes[sk]
		var err error
		switch w.kind {
		case writeSet:
			if w.vec != nil {
				_, err = m.store.PutVector(t.id, w.key, w.vec)
			} else {
				_, err = m.store.Put(t.id, w.key, w.value)
			}
		case writeDelete:
			err = m.store.Remove(t.id, w.key)
		}
		if err != nil {
			m.abortFailedCommit(t)
			return fmt.Errorf("txn: commit: %w", err)
		}
	}

	if err := m.store.Commit(t.id); err != nil {
		m.abortFailedCommit(t)
		return fmt.Errorf("txn: commit: %w", err)
	}

	t.state = Committed
	m.locks.ReleaseAll(t.id)
	m.logger.Debug("txn: committed", "txn", t.id, "writes", len(t.order))
	return nil
}

// abortFailedCommit transitions a transaction that failed partway through
// Commit to ABORTED and releases its locks. A precondition failure (e.g.
// DELETE on a key the store never had) is reported to the client per
// spec.md's error handling design, but the transaction itself must not be
// left ACTIVE holding locks forever; it is dead the moment Commit fails.
func (m *Manager) abortFailedCommit(t *Txn) {
	t.state = Aborted
	t.writes = nil
	t.order = nil
	m.locks.ReleaseAll(t.id)
}

// Rollback discards the write set without touching the store or log,
// releases every lock the transaction holds, and transitions it to
// ABORTED (spec §4.5 rollback()).
func (m *Manager) Rollback(t *Txn) error {
	if err := t.requireActive(); err != nil {
		return err
	}
	t.state = Aborted
	t.writes = nil
	t.order = nil
	m.locks.ReleaseAll(t.id)
	m.logger.Debug("txn: rolled back", "txn", t.id)
	return nil
}

// AutoSet wraps a single SET in an implicit BEGIN/COMMIT (spec §4.5
// Auto-commit).
func (m *Manager) AutoSet(key []byte, value string) error {
	t := m.Begin()
	if err := m.Write(t, key, value); err != nil {
		_ = m.Rollback(t)
		return err
	}
	return m.Commit(t)
}

// AutoSetVector is AutoSet's vector-mode counterpart.
func (m *Manager) AutoSetVector(key []byte, vector []float32) error {
	t := m.Begin()
	if err := m.WriteVector(t, key, vector); err != nil {
		_ = m.Rollback(t)
		return err
	}
	return m.Commit(t)
}

// AutoGet wraps a single GET in an implicit transaction.
func (m *Manager) AutoGet(key []byte) (string, error) {
	t := m.Begin()
	v, err := m.Read(t, key)
	if err != nil {
		_ = m.Rollback(t)
		return "", err
	}
	if cErr := m.Commit(t); cErr != nil {
		return "", cErr
	}
	return v, nil
}

// AutoGetVector is AutoGet's vector-mode counterpart.
func (m *Manager) AutoGetVector(key []byte) ([]float32, error) {
	t := m.Begin()
	v, err := m.ReadVector(t, key)
	if err != nil {
		_ = m.Rollback(t)
		return nil, err
	}
	if cErr := m.Commit(t); cErr != nil {
		return nil, cErr
	}
	return v, nil
}

// AutoRemove wraps a single DELETE in an implicit BEGIN/COMMIT.
func (m *Manager) AutoRemove(key []byte) error {
	t := m.Begin()
	if err := m.Remove(t, key); err != nil {
		_ = m.Rollback(t)
		return err
	}
	return m.Commit(t)
}
