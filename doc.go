// Package simpledb provides an embeddable, single-node database engine.
//
// simpledb combines an append-only write-ahead log, an HNSW vector index,
// a two-phase lock manager, an ACID transaction manager, and a CASPaxos
// single-register state machine into one embeddable Go module.
//
// # Quick Start
//
// String mode (key -> string value, ACID transactions):
//
//	db, _ := simpledb.Open("./data/kv.log", wal.StringMode, 0)
//	defer db.Close()
//
//	tx := db.Begin()
//	_ = db.Put(tx, []byte("account1"), "100")
//	_ = db.Commit(tx)
//
//	v, _ := db.AutoGet([]byte("account1")) // "100"
//
// Vector mode (key -> fixed-dimension float vector, HNSW search):
//
//	db, _ := simpledb.Open("./data/vec.log", wal.VectorMode, 128)
//	defer db.Close()
//
//	_ = db.AutoSetVector([]byte("doc1"), embedding)
//	results, _ := db.Search(queryVector, 10)
//
// CASPaxos single-register namespace, independent of mode:
//
//	ctx := context.Background()
//	_ = db.RegisterSet(ctx, "counter", "1")
//	v, _ := db.RegisterGet("counter") // "1"
//
// # Durability Model
//
// Log records are written at COMMIT time only (never at BEGIN or at write
// buffering). A transaction's writes become durable the moment Commit
// returns: its log records are appended and the log is fsynced before the
// transaction transitions to COMMITTED.
//
// # Concurrency Model
//
// Strict two-phase locking: shared locks for reads, exclusive locks for
// writes, held until commit or rollback, granted in FIFO order so a
// queued writer is never starved by a stream of later readers. No
// deadlock detection is performed; callers are expected to acquire keys
// in a consistent order (spec precondition, not a latent bug).
//
// # Key Features
//
//   - Crash-safe append-only log with linear-time scan recovery
//   - HNSW approximate nearest-neighbor search (Euclidean or cosine)
//   - Strict 2PL with reentrant, FIFO, writer-priority locking
//   - CASPaxos compare-and-swap register, generalized to N acceptors
//   - Structured logging via log/slog, pluggable MetricsCollector
package simpledb
