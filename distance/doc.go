// Package distance provides the vector distance functions used by the HNSW
// index (spec §4.2): Euclidean and Cosine.
//
// Both functions return +Inf on a dimension mismatch rather than an error,
// so a caller comparing a query against a heterogeneous candidate set can
// treat a mismatched candidate as "never nearest" without special-casing it.
package distance
