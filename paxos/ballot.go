// Package paxos implements the CASPaxos single-register state machine of
// spec §4.6: a separate key→string namespace with compare-and-swap
// semantics, generalized to N acceptors even though the current deployment
// runs a single node (quorum trivially 1).
package paxos

// Ballot orders proposals: (epoch, node_id), lexicographic on epoch then
// node_id (spec §4.6).
type Ballot struct {
	Epoch  uint64
	NodeID uint32
}

// Less reports whether b sorts strictly before other.
func (b Ballot) Less(other Ballot) bool {
	if b.Epoch != other.Epoch {
		return b.Epoch < other.Epoch
	}
	return b.NodeID < other.NodeID
}

// Zero is the initial ballot an acceptor's highest_ballot starts at, for a
// given node id (epoch 0).
func Zero(nodeID uint32) Ballot {
	return Ballot{Epoch: 0, NodeID: nodeID}
}
