package paxos

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func strPtr(s string) *string { return &s }

// TestSingleKeySequence is spec scenario S6 (node_id = 1, replicas = []).
func TestSingleKeySequence(t *testing.T) {
	ctx := context.Background()
	r := NewRegister(1, nil)

	require.NoError(t, r.CAS(ctx, "counter", nil, "1"))

	v, err := r.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, r.CAS(ctx, "counter", strPtr("1"), "2"))

	v, err = r.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	err = r.CAS(ctx, "counter", strPtr("1"), "3")
	require.Error(t, err)
	var casErr *ErrCASFailed
	require.ErrorAs(t, err, &casErr)

	// the failed round must not have clobbered the committed value.
	v, err = r.Get("counter")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

// TestCASMonotonicity is spec property 6.
func TestCASMonotonicity(t *testing.T) {
	ctx := context.Background()
	r := NewRegister(7, nil)

	require.NoError(t, r.CAS(ctx, "k", nil, "v1"))
	require.NoError(t, r.CAS(ctx, "k", strPtr("v1"), "v2"))

	// same expected_old again must now fail since the committed value moved on.
	require.Error(t, r.CAS(ctx, "k", strPtr("v1"), "v3"))

	v, err := r.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestCASAgainstAbsentKeyRequiresNilExpectedOld(t *testing.T) {
	ctx := context.Background()
	r := NewRegister(1, nil)

	err := r.CAS(ctx, "missing", strPtr("anything"), "v")
	require.Error(t, err)

	require.NoError(t, r.CAS(ctx, "missing", nil, "v"))
}

func TestSetIsUnconditional(t *testing.T) {
	ctx := context.Background()
	r := NewRegister(1, nil)

	require.NoError(t, r.Set(ctx, "k", "v1"))
	require.NoError(t, r.Set(ctx, "k", "v2"))

	v, err := r.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestDeleteTombstonesAsEmptyString(t *testing.T) {
	ctx := context.Background()
	r := NewRegister(1, nil)

	require.NoError(t, r.Set(ctx, "k", "v1"))
	require.NoError(t, r.Delete(ctx, "k", "v1"))

	v, err := r.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestGetUnknownKeyIsNotFound(t *testing.T) {
	r := NewRegister(1, nil)
	_, err := r.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestBallotMonotonicity is the proposer half of spec property 7:
// next_ballot is strictly increasing. The acceptor half (a prepare or commit
// below the highest seen ballot is rejected) is
// TestAcceptorRejectsStalePrepareAndCommit.
func TestBallotMonotonicity(t *testing.T) {
	p := NewProposer(3, nil, nil)

	b1 := p.NextBallot()
	b2 := p.NextBallot()
	b3 := p.NextBallot()
	assert.True(t, b1.Less(b2))
	assert.True(t, b2.Less(b3))
	assert.Equal(t, b1.NodeID, b2.NodeID)
	assert.Equal(t, uint64(1), b1.Epoch)
	assert.Equal(t, uint64(2), b2.Epoch)
	assert.Equal(t, uint64(3), b3.Epoch)
}

func TestAcceptorRejectsStalePrepareAndCommit(t *testing.T) {
	acc := NewLocalAcceptor(1, nil)

	high := Ballot{Epoch: 5, NodeID: 1}
	resp, err := acc.HandlePrepare(high, "k", nil, "v")
	require.NoError(t, err)
	assert.True(t, resp.Promised)

	stale := Ballot{Epoch: 2, NodeID: 1}
	resp, err = acc.HandlePrepare(stale, "k", nil, "v2")
	require.NoError(t, err)
	assert.False(t, resp.Promised)
	assert.Equal(t, high, resp.HighestBallot)

	commitResp, err := acc.HandleCommit(stale, "k", "v2")
	require.NoError(t, err)
	assert.False(t, commitResp.Success)
}

func TestAcceptorPrepareRejectsWhenExpectedOldMismatches(t *testing.T) {
	acc := NewLocalAcceptor(1, nil)

	b := Ballot{Epoch: 1, NodeID: 1}
	resp, err := acc.HandlePrepare(b, "k", strPtr("anything"), "v")
	require.NoError(t, err)
	assert.False(t, resp.Promised, "no committed value yet, so any expected_old must fail")

	b2 := Ballot{Epoch: 2, NodeID: 1}
	commitResp, err := acc.HandleCommit(b2, "k", "v1")
	require.NoError(t, err)
	assert.True(t, commitResp.Success)

	b3 := Ballot{Epoch: 3, NodeID: 1}
	resp, err = acc.HandlePrepare(b3, "k", strPtr("wrong"), "v2")
	require.NoError(t, err)
	assert.False(t, resp.Promised)
}

// TestConcurrentProposersRaceOnSameKey has two distinct proposers (distinct
// node ids) sharing one acceptor race a CAS against the same key and
// expected_old. Exactly one must win; the loser must observe that its
// precondition (or ballot) is no longer current.
func TestConcurrentProposersRaceOnSameKey(t *testing.T) {
	ctx := context.Background()
	acc := NewLocalAcceptor(1, nil)
	p1 := NewProposer(1, []Acceptor{acc}, nil)
	p2 := NewProposer(2, []Acceptor{acc}, nil)

	require.NoError(t, p1.CAS(ctx, "k", nil, "v0"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = p1.CAS(ctx, "k", strPtr("v0"), "from-p1")
	}()
	go func() {
		defer wg.Done()
		errs[1] = p2.CAS(ctx, "k", strPtr("v0"), "from-p2")
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one racing proposer must win the CAS round")

	v, ok := acc.Get("k")
	require.True(t, ok)
	assert.Contains(t, []string{"from-p1", "from-p2"}, v)
	if errs[0] == nil {
		assert.Equal(t, "from-p1", v)
	} else {
		assert.Equal(t, "from-p2", v)
	}
}

// TestRateLimitBlocksUntilContextCanceled is spec-adjacent ambient behavior:
// a Proposer configured with WithRateLimit refuses to start a new round
// faster than its configured rate, returning the context error if the
// caller's context expires first.
func TestRateLimitBlocksUntilContextCanceled(t *testing.T) {
	acc := NewLocalAcceptor(1, nil)
	p := NewProposer(1, []Acceptor{acc}, nil, WithRateLimit(rate.Every(time.Hour), 1))

	ctx := context.Background()
	require.NoError(t, p.CAS(ctx, "k", nil, "v1"), "first round consumes the sole burst token")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.CAS(timeoutCtx, "k", strPtr("v1"), "v2")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcceptorPrepareReturnsCurrentCommittedValue(t *testing.T) {
	acc := NewLocalAcceptor(1, nil)

	b1 := Ballot{Epoch: 1, NodeID: 1}
	_, err := acc.HandleCommit(b1, "k", "v1")
	require.NoError(t, err)

	b2 := Ballot{Epoch: 2, NodeID: 1}
	resp, err := acc.HandlePrepare(b2, "k", nil, "v2")
	require.NoError(t, err)
	require.NotNil(t, resp.Current)
	assert.Equal(t, "v1", resp.Current.Value)
	assert.Equal(t, b1, resp.Current.Ballot)
}
