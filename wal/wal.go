package wal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// Log is the append-only record stream described in spec §4.1.
//
// Append, Sync, Checkpoint, Offset and Close serialize on mu. Append writes
// the full record and flushes the bufio.Writer before returning; Sync
// additionally fsyncs the underlying file. The writer keeps a monotonically
// increasing offset cursor. Read and Scan do not take mu: each opens its own
// read-only file descriptor, so they see only bytes Append has already
// flushed, and a Scan running alongside an Append ends at the record still
// being written.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	offset int64

	mode   Mode
	logger Logger
	path   string
}

// Open opens (creating if necessary) the log file at path.
func Open(path string, optFns ...func(*Options)) (*Log, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0600) //nolint:gosec // path is caller-configured
	if err != nil {
		opts.Logger.Error("wal: failed to open log file", "path", path, "error", err)
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("wal: seek %s: %w", path, err)
	}

	l := &Log{
		file:   f,
		writer: bufio.NewWriter(f),
		offset: size,
		mode:   opts.Mode,
		logger: opts.Logger,
		path:   path,
	}
	l.logger.Info("wal: opened", "path", path, "mode", opts.Mode, "size", size)
	return l, nil
}

// Append writes record to the tail of the log and returns the byte offset
// at which it begins (invariant I1: the log is append-only; this offset
// never changes once returned).
//
// Append does not fsync; call Sync to make the write durable.
func (l *Log) Append(r *Record) (int64, error) {
	if r.Type != Commit && r.Type != Checkpoint && r.IsVector != (l.mode == VectorMode) {
		return 0, fmt.Errorf("wal: refusing to append %s-mode record to a %s-mode log", modeOfRecord(r), l.mode)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := l.offset
	n, err := encode(l.writer, r)
	if err != nil {
		return 0, fmt.Errorf("wal: append: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return 0, fmt.Errorf("wal: flush: %w", err)
	}
	l.offset = start + n

	return start, nil
}

func modeOfRecord(r *Record) Mode {
	if r.IsVector {
		return VectorMode
	}
	return StringMode
}

// Sync fsyncs the log file, making every Append up to this point durable.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.syncLocked()
}

func (l *Log) syncLocked() error {
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if err := fdatasync(l.file); err != nil {
		l.logger.Error("wal: fsync failed", "path", l.path, "error", err)
		return fmt.Errorf("wal: sync: %w", err)
	}
	return nil
}

// Checkpoint appends a CHECKPOINT record and fsyncs. Per spec §4.1/§9 it is
// purely informational beyond that: there is no log compaction or
// truncation here.
func (l *Log) Checkpoint() (int64, error) {
	off, err := l.Append(&Record{Type: Checkpoint})
	if err != nil {
		return 0, err
	}
	if err := l.Sync(); err != nil {
		return 0, err
	}
	l.logger.Info("wal: checkpoint", "offset", off)
	return off, nil
}

// Read returns the record beginning at the given byte offset.
func (l *Log) Read(offset int64) (*Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("wal: read: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("wal: read: seek: %w", err)
	}

	rec, err := decode(f)
	if err != nil {
		return nil, err
	}
	rec.Offset = offset

	if err := l.checkMode(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Scan returns every well-formed record from the start of the log, in
// append order, tracking each record's starting offset. A short read at
// the tail (a crash mid-append) ends the scan without error: everything
// discarded is everything from the first truncated record onward.
func (l *Log) Scan() ([]*Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("wal: scan: %w", err)
	}
	defer f.Close()

	var records []*Record
	var offset int64
	br := bufio.NewReader(f)

	for {
		rec, err := decode(br)
		if err != nil {
			// io.EOF (clean or short-read) is the defined end of a valid log.
			break
		}
		rec.Offset = offset

		if modeErr := l.checkMode(rec); modeErr != nil {
			return nil, modeErr
		}

		size := headerSize + int64(len(rec.Key)) + int64(len(payloadBytes(rec)))
		offset += size
		records = append(records, rec)
	}

	l.logger.Debug("wal: scan complete", "records", len(records), "bytes", offset)
	return records, nil
}

// checkMode rejects a record whose IsVector flag disagrees with the log's
// configured mode. Per spec §3/§7 this is a fatal recovery fault, not a
// tolerated truncation.
func (l *Log) checkMode(rec *Record) error {
	if rec.Type == Commit || rec.Type == Checkpoint {
		return nil // carry no payload, so no mode to disagree with
	}
	if rec.IsVector != (l.mode == VectorMode) {
		err := &ErrModeMismatch{Offset: rec.Offset, Mode: l.mode, IsVector: rec.IsVector}
		l.logger.Error("wal: mode mismatch during recovery", "offset", rec.Offset, "mode", l.mode)
		return err
	}
	return nil
}

// Offset returns the current write cursor (the offset the next Append will use).
func (l *Log) Offset() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offset
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}
