package simpledb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics
// across every component wired into a DB: the KV store, the transaction
// manager (via the store's own commit accounting), and the CASPaxos
// register. Implement this to integrate with a monitoring system.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    putCounter    prometheus.Counter
//	    searchHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordPut(duration time.Duration, err error) {
//	    p.putCounter.Inc()
//	}
type MetricsCollector interface {
	// RecordPut is called after each put (SET/INSERT) operation.
	RecordPut(duration time.Duration, err error)
	// RecordGet is called after each get operation.
	RecordGet(duration time.Duration, err error)
	// RecordSearch is called after each HNSW k-NN search.
	RecordSearch(k int, duration time.Duration, err error)
	// RecordRemove is called after each remove (DELETE) operation.
	RecordRemove(duration time.Duration, err error)
	// RecordCommit is called after each transaction commit.
	RecordCommit(duration time.Duration, err error)
	// RecordRecovery is called once after WAL recovery completes.
	RecordRecovery(recordsApplied int, duration time.Duration, err error)
	// RecordCAS is called after each CASPaxos round.
	RecordCAS(duration time.Duration, succeeded bool, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPut(time.Duration, error)           {}
func (NoopMetricsCollector) RecordGet(time.Duration, error)           {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)        {}
func (NoopMetricsCollector) RecordCommit(time.Duration, error)        {}
func (NoopMetricsCollector) RecordRecovery(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordCAS(time.Duration, bool, error)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PutCount       atomic.Int64
	PutErrors      atomic.Int64
	PutTotalNanos  atomic.Int64
	GetCount       atomic.Int64
	GetErrors      atomic.Int64
	SearchCount    atomic.Int64
	SearchErrors   atomic.Int64
	SearchTotalNanos atomic.Int64
	RemoveCount    atomic.Int64
	RemoveErrors   atomic.Int64
	CommitCount    atomic.Int64
	CommitErrors   atomic.Int64
	RecoveredCount atomic.Int64
	CASCount       atomic.Int64
	CASFailures    atomic.Int64
}

func (b *BasicMetricsCollector) RecordPut(duration time.Duration, err error) {
	b.PutCount.Add(1)
	b.PutTotalNanos.Add(duration.Nanoseconds())
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

func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
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

func (b *BasicMetricsCollector) RecordCAS(_ time.Duration, succeeded bool, err error) {
	b.CASCount.Add(1)
	if err != nil || !succeeded {
		b.CASFailures.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PutCount:       b.PutCount.Load(),
		PutErrors:      b.PutErrors.Load(),
		PutAvgNanos:    b.avgNanos(b.PutTotalNanos.Load(), b.PutCount.Load()),
		GetCount:       b.GetCount.Load(),
		GetErrors:      b.GetErrors.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: b.avgNanos(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		RemoveCount:    b.RemoveCount.Load(),
		RemoveErrors:   b.RemoveErrors.Load(),
		CommitCount:    b.CommitCount.Load(),
		CommitErrors:   b.CommitErrors.Load(),
		RecoveredCount: b.RecoveredCount.Load(),
		CASCount:       b.CASCount.Load(),
		CASFailures:    b.CASFailures.Load(),
	}
}

func (b *BasicMetricsCollector) avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PutCount       int64
	PutErrors      int64
	PutAvgNanos    int64
	GetCount       int64
	GetErrors      int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	RemoveCount    int64
	RemoveErrors   int64
	CommitCount    int64
	CommitErrors   int64
	RecoveredCount int64
	CASCount       int64
	CASFailures    int64
}
