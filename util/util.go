// Package util provides small deterministic-seed helpers for test suites
// (currently the hnsw tests): generating reproducible random vectors for
// recall/benchmark-style tests without pulling the RNG setup into every
// package that needs it.
package util

import (
	"fmt"
	"math/rand"
)

// RNG struct encapsulates the random number generator and seed.
type RNG struct {
	rand *rand.Rand
	seed int64
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), // nolint gosec
		seed: seed,
	}
}

// Seed returns the seed this RNG was constructed with.
func (r *RNG) Seed() int64 { return r.seed }

// GenerateRandomVectors generates num vectors of the given dimension.
func (r *RNG) GenerateRandomVectors(num int, dimensions int) [][]float32 {
	vectors := make([][]float32, num)
	for i := range vectors {
		vectors[i] = make([]float32, dimensions)
		for j := range vectors[i] {
			vectors[i][j] = r.rand.Float32()
		}
	}

	return vectors
}

// GenerateRandomKeys generates num distinct keys of the form "key-<i>",
// paired one-to-one with the output of GenerateRandomVectors for the same
// num so a test can build a key->vector map without inventing its own
// naming scheme.
func (r *RNG) GenerateRandomKeys(num int) [][]byte {
	keys := make([][]byte, num)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%d", i))
	}
	return keys
}
