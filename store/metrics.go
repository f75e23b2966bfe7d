package store

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics for the KV store. Implement
// this to integrate with a monitoring system.
type MetricsCollector interface {
	// RecordPut is called after each put (INSERT) operation.
	RecordPut(duration time.Duration, err error)
	// RecordGet is called after each get (string or vector) operation.
	RecordGet(duration time.Duration, err error)
	// RecordSearch is called after each HNSW search.
	RecordSearch(k int, duration time.Duration, err error)
	// RecordRemove is called after each remove (DELETE) operation.
	RecordRemove(duration time.Duration, err error)
	// RecordCommit is called after each commit (COMMIT + fsync).
	RecordCommit(duration time.Duration, err error)
	// RecordRecovery is called once after recovery completes.
	RecordRecovery(recordsApplied int, duration time.Duration, err error)
}

// NoopMetricsCollector discards every metric.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPut(time.Duration, error)         {}
func (NoopMetricsCollector) RecordGet(time.Duration, error)         {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)      {}
func (NoopMetricsCollector) RecordCommit(time.Duration, error)      {}
func (NoopMetricsCollector) RecordRecovery(int, time.Duration, error) {}

// BasicMetricsCollector is a simple in-memory MetricsCollector, useful for
// debugging and basic monitoring without an external dependency.
type BasicMetricsCollector struct {
	PutCount       atomic.Int64
	PutErrors      atomic.Int64
	GetCount       atomic.Int64
	GetErrors      atomic.Int64
	SearchCount    atomic.Int64
	SearchErrors   atomic.Int64
	RemoveCount    atomic.Int64
	RemoveErrors   atomic.Int64
	CommitCount    atomic.Int64
	CommitErrors   atomic.Int64
	RecoveredCount atomic.Int64
}

func (b *BasicMetricsCollector) RecordPut(_ time.Duration, err error) {
	b.PutCount.Add(1)
	if err != nil {
		b.PutErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordGet(_ time.Duration, err error) {
	b.GetCount.Add(1)
	if err != nil {
		b.GetErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordSearch(_ int, _ time.Duration, err error) {
	b.SearchCount.Add(1)
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordRemove(_ time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordCommit(_ time.Duration, err error) {
	b.CommitCount.Add(1)
	if err != nil {
		b.CommitErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordRecovery(recordsApplied int, _ time.Duration, _ error) {
	b.RecoveredCount.Add(int64(recordsApplied))
}
