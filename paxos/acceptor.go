package paxos

import "sync"

// CommittedValue is a committed (ballot, value) pair for one key.
type CommittedValue struct {
	Ballot Ballot
	Value  string
}

// PrepareResponse is an acceptor's answer to PREPARE. Promised is false
// when the acceptor rejects the round, either because the ballot is stale
// or because the CAS precondition failed (spec §4.6 handle_prepare).
type PrepareResponse struct {
	Promised      bool
	Current       *CommittedValue
	HighestBallot Ballot
}

// CommitResponse is an acceptor's answer to COMMIT.
type CommitResponse struct {
	Success       bool
	HighestBallot Ballot
}

// Acceptor is the per-replica interface a Proposer drives a CAS round
// against. The only concrete implementation here is in-process
// (LocalAcceptor); a networked acceptor is out of scope, but the algorithm
// itself is written against this interface so one could be added without
// touching the proposer.
type Acceptor interface {
	HandlePrepare(b Ballot, key string, expectedOld *string, newValue string) (PrepareResponse, error)
	HandleCommit(b Ballot, key string, value string) (CommitResponse, error)
	// Get is a local, non-linearizable read of the acceptor's own
	// committed state (spec §4.6 get()): it may be stale relative to the
	// most recently committed round on another acceptor.
	Get(key string) (string, bool)
}

// LocalAcceptor is an in-process Acceptor: one highest_ballot per key and a
// committed[key] -> (ballot, value) table, guarded by a single mutex.
type LocalAcceptor struct {
	nodeID uint32
	logger Logger

	mu        sync.Mutex
	highest   map[string]Ballot
	committed map[string]CommittedValue
}

// NewLocalAcceptor builds an empty LocalAcceptor for nodeID.
func NewLocalAcceptor(nodeID uint32, logger Logger) *LocalAcceptor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LocalAcceptor{
		nodeID:    nodeID,
		logger:    logger,
		highest:   make(map[string]Ballot),
		committed: make(map[string]CommittedValue),
	}
}

func (a *LocalAcceptor) highestLocked(key string) Ballot {
	b, ok := a.highest[key]
	if !ok {
		return Zero(a.nodeID)
	}
	return b
}

// HandlePrepare implements spec §4.6's handle_prepare.
func (a *LocalAcceptor) HandlePrepare(b Ballot, key string, expectedOld *string, newValue string) (PrepareResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	highest := a.highestLocked(key)
	if b.Less(highest) {
		return PrepareResponse{Promised: false, HighestBallot: highest}, nil
	}
	a.highest[key] = b
	highest = b

	current, hasCurrent := a.committed[key]
	if expectedOld != nil {
		if !hasCurrent || current.Value != *expectedOld {
			return PrepareResponse{Promised: false, HighestBallot: highest}, nil
		}
	}

	resp := PrepareResponse{Promised: true, HighestBallot: highest}
	if hasCurrent {
		cv := current
		resp.Current = &cv
	}
	a.logger.Debug("paxos: promised", "node", a.nodeID, "key", key, "ballot", b)
	return resp, nil
}

// HandleCommit implements spec §4.6's handle_commit.
func (a *LocalAcceptor) HandleCommit(b Ballot, key string, value string) (CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	highest := a.highestLocked(key)
	if b.Less(highest) {
		return CommitResponse{Success: false, HighestBallot: highest}, nil
	}
	a.committed[key] = CommittedValue{Ballot: b, Value: value}
	a.logger.Debug("paxos: committed", "node", a.nodeID, "key", key, "ballot", b)
	return CommitResponse{Success: true, HighestBallot: highest}, nil
}

// Get returns the locally committed value for key, or ("", false) if none
// has ever been committed on this acceptor.
func (a *LocalAcceptor) Get(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cv, ok := a.committed[key]
	if !ok {
		return "", false
	}
	return cv.Value, true
}
