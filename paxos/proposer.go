package paxos

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrCASFailed is returned by CAS (and Set/Delete) when a round fails to
// reach quorum, either on PREPARE or on COMMIT.
type ErrCASFailed struct {
	Key string
}

func (e *ErrCASFailed) Error() string { return "paxos: CAS failed for key " + e.Key }

// Proposer drives CAS rounds against a fixed set of acceptors (spec §4.6
// Proposer state). The acceptor set is whatever the caller passes to
// NewProposer; in the single-node Register it is only the proposer's own
// local acceptor, making quorum trivially 1, but the round itself is
// written for general N.
type Proposer struct {
	nodeID    uint32
	acceptors []Acceptor
	quorum    int
	logger    Logger
	limiter   *rate.Limiter // nil means unlimited

	mu           sync.Mutex
	currentEpoch uint64
}

// ProposerOption configures optional Proposer behavior.
type ProposerOption func(*Proposer)

// WithRateLimit caps the rate of CAS rounds a Proposer will start to r
// rounds/sec, with burst allowed to accumulate up to burst rounds. Unset
// (the default), a Proposer issues rounds as fast as its caller asks,
// matching the teacher's own Controller, which leaves IO unlimited when
// no limit is configured.
func WithRateLimit(r rate.Limit, burst int) ProposerOption {
	return func(p *Proposer) {
		p.limiter = rate.NewLimiter(r, burst)
	}
}

// NewProposer builds a Proposer for nodeID driving rounds against
// acceptors (which must include the local one if local reads are needed).
// Quorum is floor(N/2)+1.
func NewProposer(nodeID uint32, acceptors []Acceptor, logger Logger, opts ...ProposerOption) *Proposer {
	if logger == nil {
		logger = noopLogger{}
	}
	p := &Proposer{
		nodeID:       nodeID,
		acceptors:    acceptors,
		quorum:       len(acceptors)/2 + 1,
		logger:       logger,
		currentEpoch: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NextBallot returns (current_epoch, node_id) and increments current_epoch
// (spec §4.6 next_ballot()).
func (p *Proposer) NextBallot() Ballot {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := Ballot{Epoch: p.currentEpoch, NodeID: p.nodeID}
	p.currentEpoch++
	return b
}

// UpdateBallot raises current_epoch to b.Epoch+1 if b.Epoch >= current_epoch
// (spec §4.6 update_ballot()).
func (p *Proposer) UpdateBallot(b Ballot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b.Epoch >= p.currentEpoch {
		p.currentEpoch = b.Epoch + 1
	}
}

// CAS runs a full PREPARE/COMMIT round for key (spec §4.6 CAS round).
// expectedOld nil means "no precondition" (a plain set); an acceptor whose
// committed value differs from a non-nil expectedOld does not promise, and
// the round fails when fewer than a quorum of acceptors promise.
func (p *Proposer) CAS(ctx context.Context, key string, expectedOld *string, newValue string) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			// Wait fails early when the next token would only arrive after
			// ctx's deadline; block until that deadline and report it.
			if _, ok := ctx.Deadline(); ok && p.limiter.Burst() > 0 {
				<-ctx.Done()
				return ctx.Err()
			}
			return err
		}
	}

	b := p.NextBallot()

	promises, highestSeen, err := p.broadcastPrepare(ctx, b, key, expectedOld, newValue)
	if err != nil {
		return err
	}
	if promises < p.quorum || b.Less(highestSeen) {
		p.UpdateBallot(highestSeen)
		p.logger.Debug("paxos: prepare quorum not reached", "key", key, "ballot", b, "promises", promises)
		return &ErrCASFailed{Key: key}
	}

	acks, err := p.broadcastCommit(ctx, b, key, newValue)
	if err != nil {
		return err
	}
	if acks < p.quorum {
		p.logger.Debug("paxos: commit quorum not reached", "key", key, "ballot", b, "acks", acks)
		return &ErrCASFailed{Key: key}
	}

	p.logger.Debug("paxos: CAS succeeded", "key", key, "ballot", b)
	return nil
}

func (p *Proposer) broadcastPrepare(ctx context.Context, b Ballot, key string, expectedOld *string, newValue string) (int, Ballot, error) {
	var promises atomic.Int64
	var mu sync.Mutex
	highestSeen := b

	g, _ := errgroup.WithContext(ctx)
	for _, acc := range p.acceptors {
		acc := acc
		g.Go(func() error {
			resp, err := acc.HandlePrepare(b, key, expectedOld, newValue)
			if err != nil {
				return nil // an unreachable acceptor simply does not promise
			}
			if resp.Promised {
				promises.Add(1)
			}
			mu.Lock()
			if highestSeen.Less(resp.HighestBallot) {
				highestSeen = resp.HighestBallot
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, b, err
	}
	return int(promises.Load()), highestSeen, nil
}

func (p *Proposer) broadcastCommit(ctx context.Context, b Ballot, key string, value string) (int, error) {
	var acks atomic.Int64

	g, _ := errgroup.WithContext(ctx)
	for _, acc := range p.acceptors {
		acc := acc
		g.Go(func() error {
			resp, err := acc.HandleCommit(b, key, value)
			if err != nil {
				return nil
			}
			if resp.Success {
				acks.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(acks.Load()), nil
}

// Set is CAS with no precondition (spec §4.6 set()).
func (p *Proposer) Set(ctx context.Context, key, value string) error {
	return p.CAS(ctx, key, nil, value)
}

// Delete is CAS with the empty string as the tombstone value (spec §4.6
// delete()); expectedOld is required since an unconditional delete is not
// part of the spec.
func (p *Proposer) Delete(ctx context.Context, key string, expectedOld string) error {
	return p.CAS(ctx, key, &expectedOld, "")
}
