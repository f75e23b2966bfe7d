// Package hnsw implements the in-memory multi-layer proximity graph used by
// the engine's vector store (spec §4.2): approximate k-NN search over
// fixed-dimension float32 vectors, built incrementally by Insert and queried
// by Search, with tombstone delete rather than node removal.
package hnsw

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"simpledb/distance"
)

// ErrDimensionMismatch is returned by Insert and Search when a vector's
// length does not match the index's configured dimension.
var ErrDimensionMismatch = errors.New("hnsw: vector dimension mismatch")

// ErrKeyNotFound is returned by Get and Remove when the key is absent or
// already tombstoned.
var ErrKeyNotFound = errors.New("hnsw: key not found")

// ErrDuplicateKey is returned by Insert when the key is already present and
// live; turning an overwrite into a delete-then-insert pair is the
// transaction layer's job, not the index's.
var ErrDuplicateKey = errors.New("hnsw: key already exists")

// Logger is the minimal structured-logging surface the index needs. It is
// satisfied by the engine's *simpledb.Logger without hnsw importing the
// root package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a new Index.
type Options struct {
	Dimension      int
	M              int
	EFConstruction int
	EFSearch       int
	Distance       distance.Func
	Logger         Logger
	// Rand seeds the level-sampling generator. Left nil, the index seeds
	// its own source; set for reproducible tests.
	Rand *rand.Rand
}

// Option mutates Options; see NewOptions.
type Option func(*Options)

// WithM overrides the target neighbor count M (default 16).
func WithM(m int) Option { return func(o *Options) { o.M = m } }

// WithEFConstruction overrides the candidate-list width used on insert.
func WithEFConstruction(ef int) Option { return func(o *Options) { o.EFConstruction = ef } }

// WithEFSearch overrides the candidate-list width used on query.
func WithEFSearch(ef int) Option { return func(o *Options) { o.EFSearch = ef } }

// WithDistance overrides the distance function (default distance.Euclidean).
func WithDistance(f distance.Func) Option { return func(o *Options) { o.Distance = f } }

// WithLogger overrides the logger (default a no-op).
func WithLogger(l Logger) Option { return func(o *Options) { o.Logger = l } }

// WithRand overrides the level-sampling random source.
func WithRand(r *rand.Rand) Option { return func(o *Options) { o.Rand = r } }

// NewOptions builds an Options for the given dimension with spec defaults
// (M=16, max_M=2M, ef_construction=200, ef_search=50, m_L=1/ln2,
// Euclidean distance), applying optFns over those defaults.
func NewOptions(dimension int, optFns ...Option) Options {
	o := Options{
		Dimension:      dimension,
		M:              16,
		EFConstruction: 200,
		EFSearch:       50,
		Distance:       distance.Euclidean,
		Logger:         noopLogger{},
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// Index is an HNSW approximate nearest-neighbor graph over fixed-dimension
// float32 vectors. A single mutex guards the whole structure: inserts and
// removes are exclusive, searches are consistent snapshots under the same
// lock (spec §4.2 Concurrency) — there is no lock-free path.
type Index struct {
	mu sync.Mutex

	dim            int
	m              int // target neighbors per node above layer 0
	maxM           int // cap at layer 0 (2*m)
	efConstruction int
	efSearch       int
	mL             float64 // 1/ln2, the level-sampling normaliser
	dist           distance.Func
	logger         Logger
	rng            *rand.Rand

	nodes      []*node
	keyToID    map[string]uint32
	tombstones *roaring.Bitmap

	hasEntry bool
	entryID  uint32
	maxLevel int
}

// New builds an empty Index.
func New(opts Options) (*Index, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("hnsw: dimension must be positive, got %d", opts.Dimension)
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	dist := opts.Distance
	if dist == nil {
		dist = distance.Euclidean
	}
	m := opts.M
	if m <= 0 {
		m = 16
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	efConstruction := opts.EFConstruction
	if efConstruction <= 0 {
		efConstruction = 200
	}
	efSearch := opts.EFSearch
	if efSearch <= 0 {
		efSearch = 50
	}

	idx := &Index{
		dim:            opts.Dimension,
		m:              m,
		maxM:           2 * m,
		efConstruction: efConstruction,
		efSearch:       efSearch,
		mL:             1 / math.Ln2,
		dist:           dist,
		logger:         logger,
		rng:            rng,
		keyToID:        make(map[string]uint32),
		tombstones:     roaring.New(),
	}
	logger.Info("hnsw: index created", "dimension", idx.dim, "m", idx.m, "max_m", idx.maxM)
	return idx, nil
}

// Dimension returns the configured vector dimension.
func (idx *Index) Dimension() int { return idx.dim }

// sampleLevel draws L = floor(-ln(U) * m_L), U ~ Uniform(0,1) (spec §4.2
// Level assignment).
func (idx *Index) sampleLevel() int {
	u := idx.rng.Float64()
	for u == 0 {
		u = idx.rng.Float64()
	}
	return int(math.Floor(-math.Log(u) * idx.mL))
}

// Insert adds key/vector to the graph at the given log offset and returns
// the assigned node id. It implements spec §4.2's five-step insert
// algorithm; inserts are exclusive under the index mutex.
func (idx *Index) Insert(key []byte, vector []float32, logOffset int64) (uint32, error) {
	if len(vector) != idx.dim {
		return 0, ErrDimensionMismatch
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	sk := string(key)
	if id, ok := idx.keyToID[sk]; ok && !idx.tombstones.Contains(id) {
		return 0, ErrDuplicateKey
	}

	vecCopy := make([]float32, len(vector))
	copy(vecCopy, vector)

	level := idx.sampleLevel()
	id := uint32(len(idx.nodes))
	n := &node{
		id:        id,
		key:       append([]byte(nil), key...),
		vector:    vecCopy,
		logOffset: logOffset,
		level:     level,
		neighbors: make([][]uint32, level+1),
	}

	// Step 1: empty index, X becomes the entry point.
	if !idx.hasEntry {
		idx.nodes = append(idx.nodes, n)
		idx.keyToID[sk] = id
		idx.hasEntry = true
		idx.entryID = id
		idx.maxLevel = level
		return id, nil
	}

	// Step 2: greedy ef=1 descent from the entry point down to level+1.
	currID, currDist := idx.greedyDescend(vecCopy, level)

	// X joins the arena before any edge to it is added, so re-pruning a
	// neighbor can look up X's vector by id.
	idx.nodes = append(idx.nodes, n)

	// Steps 3-4: full search + nearest-first selection + re-prune, from
	// min(L_X, ep_L) down to 0.
	for l := min(level, idx.maxLevel); l >= 0; l-- {
		visited := bitset.New(uint(len(idx.nodes) + 1))
		candidates := idx.searchLayer(vecCopy, &item{node: currID, distance: currDist}, idx.efConstruction, l, visited)
		if len(candidates) > 0 {
			currID, currDist = candidates[0].node, candidates[0].distance
		}

		cap := idx.m
		if l == 0 {
			cap = idx.maxM
		}
		chosen := idx.nearestFirst(candidates, cap)

		n.neighbors[l] = chosen
		for _, nb := range chosen {
			idx.addEdge(nb, id, l)
			idx.pruneIfOverflowing(nb, l)
		}
	}

	idx.keyToID[sk] = id

	// Step 5: a strictly-higher level makes X the new entry point.
	if level > idx.maxLevel {
		idx.maxLevel = level
		idx.entryID = id
	}

	idx.logger.Debug("hnsw: inserted", "id", id, "level", level)
	return id, nil
}

// greedyDescend performs ef=1 greedy descent from the current entry point
// down to stopAbove+1, returning the closest node found and its distance.
// Used both by Insert (stopAbove = the new node's level) and Search
// (stopAbove = 0).
func (idx *Index) greedyDescend(q []float32, stopAbove int) (uint32, float32) {
	currID := idx.entryID
	currDist := idx.dist(q, idx.nodes[currID].vector)

	for l := idx.maxLevel; l > stopAbove; l-- {
		improved := true
		for improved {
			improved = false
			n := idx.nodes[currID]
			if l >= len(n.neighbors) {
				continue
			}
			for _, nb := range n.neighbors[l] {
				d := idx.dist(q, idx.nodes[nb].vector)
				if d < currDist {
					currDist = d
					currID = nb
					improved = true
				}
			}
		}
	}
	return currID, currDist
}

// searchLayer is the standard two-heap HNSW search described in spec §4.2:
// a min-heap of unexplored candidates and a bounded max-heap of current
// best results. Tombstoned nodes still relay traversal; they are filtered
// out only when the caller consumes the returned, ascending-sorted slice.
func (idx *Index) searchLayer(q []float32, entry *item, ef int, layer int, visited *bitset.BitSet) []*item {
	candidates := newQueue(true)
	results := newQueue(false)
	heap.Push(candidates, &item{node: entry.node, distance: entry.distance})
	heap.Push(results, &item{node: entry.node, distance: entry.distance})
	visited.Set(uint(entry.node))

	for candidates.Len() > 0 {
		cand := heap.Pop(candidates).(*item)
		if results.Len() >= ef && cand.distance > results.top().distance {
			break
		}

		n := idx.nodes[cand.node]
		if layer >= len(n.neighbors) {
			continue
		}
		for _, nbID := range n.neighbors[layer] {
			if visited.Test(uint(nbID)) {
				continue
			}
			visited.Set(uint(nbID))

			d := idx.dist(q, idx.nodes[nbID].vector)
			if results.Len() < ef {
				heap.Push(results, &item{node: nbID, distance: d})
				heap.Push(candidates, &item{node: nbID, distance: d})
			} else if d < results.top().distance {
				heap.Pop(results)
				heap.Push(results, &item{node: nbID, distance: d})
				heap.Push(candidates, &item{node: nbID, distance: d})
			}
		}
	}
	return sortedAscending(results)
}

// nearestFirst implements spec §4.2's nearest-first heuristic: items arrive
// already sorted ascending by distance from searchLayer, so selection is
// just filtering tombstoned entries and truncating to cap.
func (idx *Index) nearestFirst(items []*item, cap int) []uint32 {
	out := make([]uint32, 0, cap)
	for _, it := range items {
		if idx.tombstones.Contains(it.node) {
			continue
		}
		out = append(out, it.node)
		if len(out) >= cap {
			break
		}
	}
	return out
}

// addEdge adds the b -> a half of a bidirectional edge (spec invariant I4);
// the caller is responsible for the a -> b half, already present in a's own
// chosen-neighbor list.
func (idx *Index) addEdge(a, b uint32, l int) {
	na := idx.nodes[a]
	for l >= len(na.neighbors) {
		na.neighbors = append(na.neighbors, nil)
	}
	na.neighbors[l] = append(na.neighbors[l], b)
}

// pruneIfOverflowing re-runs the nearest-first heuristic against id's own
// vector when its degree at layer l exceeds its cap (spec §4.2 step 4).
func (idx *Index) pruneIfOverflowing(id uint32, l int) {
	n := idx.nodes[id]
	cap := idx.m
	if l == 0 {
		cap = idx.maxM
	}
	if len(n.neighbors[l]) <= cap {
		return
	}

	q := newQueue(false)
	for _, nb := range n.neighbors[l] {
		heap.Push(q, &item{node: nb, distance: idx.dist(n.vector, idx.nodes[nb].vector)})
	}
	sorted := sortedAscending(q)
	n.neighbors[l] = idx.nearestFirst(sorted, cap)
}

// Result is one match returned by Search.
type Result struct {
	Key       []byte
	Distance  float32
	LogOffset int64
}

// Search returns the up-to-k nearest non-tombstoned neighbors of query
// (spec §4.2 public k-NN). It descends with ef=1 down to layer 1, then
// runs search_layer at layer 0 with ef = max(ef_search, k).
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, ErrDimensionMismatch
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.hasEntry {
		return nil, nil
	}

	currID, currDist := idx.greedyDescend(query, 0)

	ef := idx.efSearch
	if k > ef {
		ef = k
	}
	visited := bitset.New(uint(len(idx.nodes) + 1))
	candidates := idx.searchLayer(query, &item{node: currID, distance: currDist}, ef, 0, visited)

	out := make([]Result, 0, k)
	for _, c := range candidates {
		if idx.tombstones.Contains(c.node) {
			continue
		}
		n := idx.nodes[c.node]
		out = append(out, Result{
			Key:       append([]byte(nil), n.key...),
			Distance:  c.distance,
			LogOffset: n.logOffset,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// Get returns the vector and log offset stored for key, iff key is present
// and not tombstoned (spec §4.2 Get by key).
func (idx *Index) Get(key []byte) ([]float32, int64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	id, ok := idx.keyToID[string(key)]
	if !ok || idx.tombstones.Contains(id) {
		return nil, 0, ErrKeyNotFound
	}
	n := idx.nodes[id]
	out := make([]float32, len(n.vector))
	copy(out, n.vector)
	return out, n.logOffset, nil
}

// Remove tombstones key. The graph and log offset are retained; the node
// still contributes as a relay point during traversal (spec §4.2 Remove).
func (idx *Index) Remove(key []byte) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	id, ok := idx.keyToID[string(key)]
	if !ok || idx.tombstones.Contains(id) {
		return ErrKeyNotFound
	}
	idx.tombstones.Add(id)
	idx.logger.Debug("hnsw: tombstoned", "id", id)
	return nil
}

// Len returns the number of live (non-tombstoned) keys in the index.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	live := 0
	for _, id := range idx.keyToID {
		if !idx.tombstones.Contains(id) {
			live++
		}
	}
	return live
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
