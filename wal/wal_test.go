package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	rec := &Record{Type: Insert, TxnID: 1, TimestampNs: 42, Key: []byte("account1"), Value: []byte("100")}
	off, err := l.Append(rec)
	require.NoError(t, err)
	require.Zero(t, off)

	got, err := l.Read(off)
	require.NoError(t, err)
	require.Equal(t, rec.Type, got.Type)
	require.Equal(t, rec.TxnID, got.TxnID)
	require.Equal(t, rec.Key, got.Key)
	require.Equal(t, rec.Value, got.Value)
}

func TestScanOrdersRecordsByOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	off1, err := l.Append(&Record{Type: Insert, TxnID: 1, Key: []byte("k1"), Value: []byte("v1")})
	require.NoError(t, err)
	off2, err := l.Append(&Record{Type: Insert, TxnID: 1, Key: []byte("k2"), Value: []byte("v2")})
	require.NoError(t, err)
	off3, err := l.Append(&Record{Type: Commit, TxnID: 1})
	require.NoError(t, err)
	require.NoError(t, l.Sync())

	recs, err := l.Scan()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, []int64{off1, off2, off3}, []int64{recs[0].Offset, recs[1].Offset, recs[2].Offset})
	require.Equal(t, Commit, recs[2].Type)
}

// TestScanToleratesTruncatedTail exercises the "short read at the tail is
// end-of-log, not an error" failure semantics of spec §4.1/§7.
func TestScanToleratesTruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Open(path)
	require.NoError(t, err)

	_, err = l.Append(&Record{Type: Insert, TxnID: 1, Key: []byte("whole"), Value: []byte("record")})
	require.NoError(t, err)
	goodSize := l.Offset()

	_, err = l.Append(&Record{Type: Insert, TxnID: 2, Key: []byte("truncated"), Value: []byte("this won't all land")})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// Simulate a crash mid-append: chop off the tail of the second record.
	require.NoError(t, os.Truncate(path, goodSize+10))

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()

	recs, err := l2.Scan()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, []byte("whole"), recs[0].Key)
}

func TestAppendIsOrderPreservingAndImmutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append(&Record{Type: Insert, TxnID: 1, Key: []byte("a"), Value: []byte("1")})
	require.NoError(t, err)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = l.Append(&Record{Type: Insert, TxnID: 1, Key: []byte("b"), Value: []byte("2")})
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)

	// Invariant I1: bytes already written are never overwritten or reordered.
	require.Equal(t, before, after[:len(before)])
}

func TestModeMismatchIsRecoveryFault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Open(path, func(o *Options) { o.Mode = VectorMode })
	require.NoError(t, err)
	_, err = l.Append(&Record{Type: Insert, TxnID: 1, IsVector: true, Key: []byte("v1"), Vector: []float32{1, 2, 3}})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l2, err := Open(path, func(o *Options) { o.Mode = StringMode })
	require.NoError(t, err)
	defer l2.Close()

	_, err = l2.Scan()
	require.Error(t, err)
	var mismatch *ErrModeMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestAppendRejectsWrongModeRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Open(path, func(o *Options) { o.Mode = StringMode })
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append(&Record{Type: Insert, TxnID: 1, IsVector: true, Key: []byte("v1"), Vector: []float32{1}})
	require.Error(t, err)
}
