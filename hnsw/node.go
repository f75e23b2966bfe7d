package hnsw

// node is an arena-resident HNSW graph node (spec §3, §9 Design Notes).
// References between nodes are by arena id, never by pointer, so the graph
// can hold cycles without Go's GC needing anything special.
type node struct {
	id        uint32
	key       []byte
	vector    []float32
	logOffset int64
	level     int
	// neighbors[l] holds this node's neighbor ids at layer l, 0 <= l <= level.
	// Deduplication is an invariant maintained by the heuristic/simple
	// selection functions, not by this slice's type.
	neighbors [][]uint32
}
