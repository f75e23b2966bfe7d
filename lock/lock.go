// Package lock implements the per-key shared/exclusive lock manager used by
// the transaction manager for strict two-phase locking (spec §4.3).
package lock

import (
	"sync"
)

// Mode is a lock mode. There are no intention or update modes.
type Mode int

const (
	// Shared is compatible with other Shared locks on the same key.
	Shared Mode = iota
	// Exclusive is incompatible with any other lock on the same key.
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "X"
	}
	return "S"
}

// Logger is the minimal structured-logging surface the lock manager needs.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

type waiter struct {
	txnID   uint64
	mode    Mode
	granted bool
}

type keyState struct {
	sharedHolders   map[uint64]struct{}
	exclusiveHolder uint64 // 0 means none; txn ids are allocated starting at 1
	waiters         []*waiter
	cond            *sync.Cond
}

func newKeyState(l sync.Locker) *keyState {
	return &keyState{
		sharedHolders: make(map[uint64]struct{}),
		cond:          sync.NewCond(l),
	}
}

// Manager is a per-key lock table. A single coarse mutex guards the whole
// table; a condition variable is allocated per key so a release on one key
// does not wake waiters queued on another (spec §4.3, §5 Shared-resource
// policy).
type Manager struct {
	mu     sync.Mutex
	keys   map[string]*keyState
	held   map[uint64]map[string]Mode
	logger Logger
}

// New builds an empty Manager. A nil logger is treated as a no-op.
func New(logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		keys:   make(map[string]*keyState),
		held:   make(map[uint64]map[string]Mode),
		logger: logger,
	}
}

func (m *Manager) keyStateLocked(key string) *keyState {
	ks, ok := m.keys[key]
	if !ok {
		ks = newKeyState(&m.mu)
		m.keys[key] = ks
	}
	return ks
}

// Acquire blocks until txnID holds mode on key. A reentrant call by a
// transaction that already holds a compatible-or-stronger lock returns
// immediately without queuing. Upgrading S to X is not supported: a
// transaction that holds S and requests X is queued like any other waiter,
// and — since it is itself a shared holder — will never be granted; callers
// must release S first (spec §4.3).
func (m *Manager) Acquire(txnID uint64, key []byte, mode Mode) {
	sk := string(key)
	m.mu.Lock()
	ks := m.keyStateLocked(sk)

	if ks.exclusiveHolder == txnID {
		m.mu.Unlock()
		return
	}
	if mode == Shared {
		if _, ok := ks.sharedHolders[txnID]; ok {
			m.mu.Unlock()
			return
		}
	}

	w := &waiter{txnID: txnID, mode: mode}
	ks.waiters = append(ks.waiters, w)
	m.grantWaitingLocked(sk, ks)
	ks.cond.Broadcast()

	for !w.granted {
		ks.cond.Wait()
	}
	m.logger.Debug("lock: acquired", "txn", txnID, "key", sk, "mode", mode.String())
	m.mu.Unlock()
}

// Release releases txnID's lock (shared or exclusive) on key, if held, and
// grants queued waiters that become eligible.
func (m *Manager) Release(txnID uint64, key []byte) {
	sk := string(key)
	m.mu.Lock()
	defer m.mu.Unlock()

	ks, ok := m.keys[sk]
	if !ok {
		return
	}
	m.releaseLocked(txnID, sk, ks)
}

// ReleaseAll releases every lock held by txnID, in no particular order. The
// transaction manager calls this once at commit or rollback, after the log
// record is durable (spec §4.5).
func (m *Manager) ReleaseAll(txnID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.held[txnID] {
		if ks, ok := m.keys[key]; ok {
			m.releaseLocked(txnID, key, ks)
		}
	}
	delete(m.held, txnID)
}

func (m *Manager) releaseLocked(txnID uint64, key string, ks *keyState) {
	released := false
	if ks.exclusiveHolder == txnID {
		ks.exclusiveHolder = 0
		released = true
	}
	if _, ok := ks.sharedHolders[txnID]; ok {
		delete(ks.sharedHolders, txnID)
		released = true
	}
	if !released {
		return
	}
	if holding, ok := m.held[txnID]; ok {
		delete(holding, key)
	}
	m.logger.Debug("lock: released", "txn", txnID, "key", key)
	m.grantWaitingLocked(key, ks)
	ks.cond.Broadcast()
}

// grantWaitingLocked scans waiters in FIFO order per the granting policy:
// grant S's while there is no exclusive holder, stopping (not skipping) at
// the first waiting X; grant at most one X, only when no holders remain at
// all (spec §4.3 Granting policy). The caller holds m.mu.
func (m *Manager) grantWaitingLocked(key string, ks *keyState) {
	for len(ks.waiters) > 0 {
		w := ks.waiters[0]
		switch w.mode {
		case Exclusive:
			if ks.exclusiveHolder != 0 || len(ks.sharedHolders) > 0 {
				return
			}
			ks.waiters = ks.waiters[1:]
			ks.exclusiveHolder = w.txnID
			w.granted = true
			m.recordHeldLocked(w.txnID, key, Exclusive)
			return
		case Shared:
			if ks.exclusiveHolder != 0 {
				return
			}
			ks.waiters = ks.waiters[1:]
			ks.sharedHolders[w.txnID] = struct{}{}
			w.granted = true
			m.recordHeldLocked(w.txnID, key, Shared)
		}
	}
}

func (m *Manager) recordHeldLocked(txnID uint64, key string, mode Mode) {
	holding, ok := m.held[txnID]
	if !ok {
		holding = make(map[string]Mode)
		m.held[txnID] = holding
	}
	holding[key] = mode
}
