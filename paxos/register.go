package paxos

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been committed on
// the local acceptor.
var ErrNotFound = errors.New("paxos: key not found")

// Register is a convenience single-node CASPaxos deployment: a Proposer
// wired to its own LocalAcceptor, matching the repository's current
// replica count of 1 (spec §4.6, scenario S6). A multi-node deployment
// would instead construct a Proposer directly over a slice of remote
// Acceptor stubs.
type Register struct {
	acceptor *LocalAcceptor
	proposer *Proposer
}

// NewRegister builds a single-node Register for nodeID. opts configure the
// underlying Proposer (e.g. WithRateLimit).
func NewRegister(nodeID uint32, logger Logger, opts ...ProposerOption) *Register {
	acc := NewLocalAcceptor(nodeID, logger)
	return &Register{
		acceptor: acc,
		proposer: NewProposer(nodeID, []Acceptor{acc}, logger, opts...),
	}
}

// CAS attempts to set key to newValue, conditioned on its current value
// equaling expectedOld (nil means no precondition).
func (r *Register) CAS(ctx context.Context, key string, expectedOld *string, newValue string) error {
	return r.proposer.CAS(ctx, key, expectedOld, newValue)
}

// Set unconditionally sets key to value via a CAS round with no precondition.
func (r *Register) Set(ctx context.Context, key, value string) error {
	return r.proposer.Set(ctx, key, value)
}

// Delete tombstones key (an empty-string value) provided its current value
// equals expectedOld.
func (r *Register) Delete(ctx context.Context, key string, expectedOld string) error {
	return r.proposer.Delete(ctx, key, expectedOld)
}

// Get performs the local, possibly-stale read documented in spec §4.6.
func (r *Register) Get(key string) (string, error) {
	v, ok := r.acceptor.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}
