// Package wal implements the append-only, length-prefixed write-ahead log
// that backs the transactional and vector stores.
//
// Every writing method serializes on a single mutex; Read and Scan read
// through their own file descriptor without it. Append writes the full
// record and flushes the process buffer before returning; durability to
// disk is caller-driven via Sync. A short read at the tail of the file is
// treated as end-of-log rather than an error, so a crash mid-append never
// prevents recovery of everything written before it.
package wal

// RecordType identifies the kind of entry a Record carries.
type RecordType uint8

const (
	// Insert records a key/value write.
	Insert RecordType = 1
	// Delete records a tombstone for a key.
	Delete RecordType = 2
	// Commit closes out a transaction; no further records for its TxnID follow.
	Commit RecordType = 3
	// Checkpoint is an informational durability boundary; recovery ignores it.
	Checkpoint RecordType = 4
)

func (t RecordType) String() string {
	switch t {
	case Insert:
		return "INSERT"
	case Delete:
		return "DELETE"
	case Commit:
		return "COMMIT"
	case Checkpoint:
		return "CHECKPOINT"
	default:
		return "UNKNOWN"
	}
}

// Record is a single entry in the log.
//
// On disk (little-endian, unaligned, no padding):
//
//	u8   type
//	u64  txn_id
//	u64  timestamp_ns
//	u8   is_vector     (0 = string payload, 1 = float-vector payload)
//	u32  key_len       key_len bytes of key
//	u32  data_len      data_len bytes of payload
//	                   string: raw bytes; vector: data_len/4 float32s
//
// Total on-disk size is headerSize + len(Key) + len(payload bytes).
type Record struct {
	Type        RecordType
	TxnID       uint64
	TimestampNs uint64
	IsVector    bool
	Key         []byte
	// Value holds the payload for a string-mode record. Nil for vector-mode
	// records and for Commit/Checkpoint records.
	Value []byte
	// Vector holds the payload for a vector-mode record. Nil otherwise.
	Vector []float32

	// Offset is the byte offset at which this record begins. Populated by
	// Append, Read and Scan; callers constructing a Record to pass to
	// Append should leave it unset.
	Offset int64
}

// headerSize is the number of fixed-size bytes preceding the key and payload.
const headerSize = 1 + 8 + 8 + 1 + 4 + 4

// Options configures a Log.
type Options struct {
	// Mode selects whether the log accepts string or vector payloads.
	// A record whose IsVector flag disagrees with Mode is a recovery fault.
	Mode Mode

	// Logger receives structured events for open/recover/sync/checkpoint.
	// Defaults to a no-op logger.
	Logger Logger
}

// Mode is the payload kind an engine instance is configured for.
type Mode uint8

const (
	// StringMode accepts only string-payload (IsVector=false) records.
	StringMode Mode = iota
	// VectorMode accepts only vector-payload (IsVector=true) records.
	VectorMode
)

func (m Mode) String() string {
	if m == VectorMode {
		return "vector"
	}
	return "string"
}

// Logger is the minimal logging surface wal depends on, satisfied by
// *simpledb.Logger without importing the facade package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}

// DefaultOptions returns the zero-value options: string mode, no logging.
var DefaultOptions = Options{
	Mode:   StringMode,
	Logger: noopLogger{},
}
