package hnsw

// LevelStats summarizes one graph layer.
type LevelStats struct {
	Level               int
	Nodes               int
	Connections         int
	AvgConnectionsPerNode float64
}

// Stats summarizes the graph's shape.
type Stats struct {
	Dimension      int
	M              int
	MaxM           int
	EFConstruction int
	EFSearch       int
	EntryPoint     uint32
	MaxLevel       int
	NodeCount      int
	Tombstoned     int
	Levels         []LevelStats
}

// Stats computes a snapshot of the index's current shape. It takes the
// index mutex, so it observes a consistent graph but competes with
// concurrent inserts and searches like any other operation.
func (idx *Index) Stats() Stats {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s := Stats{
		Dimension:      idx.dim,
		M:              idx.m,
		MaxM:           idx.maxM,
		EFConstruction: idx.efConstruction,
		EFSearch:       idx.efSearch,
		EntryPoint:     idx.entryID,
		MaxLevel:       idx.maxLevel,
		NodeCount:      len(idx.nodes),
		Tombstoned:     int(idx.tombstones.GetCardinality()),
		Levels:         make([]LevelStats, idx.maxLevel+1),
	}
	for l := range s.Levels {
		s.Levels[l].Level = l
	}

	for _, n := range idx.nodes {
		for l := 0; l <= n.level && l < len(n.neighbors); l++ {
			s.Levels[l].Nodes++
			s.Levels[l].Connections += len(n.neighbors[l])
		}
	}
	for l := range s.Levels {
		if s.Levels[l].Nodes > 0 {
			s.Levels[l].AvgConnectionsPerNode = float64(s.Levels[l].Connections) / float64(s.Levels[l].Nodes)
		}
	}
	return s
}
