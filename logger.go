package simpledb

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with simpledb-specific context. It provides
// structured logging with consistent field names, and satisfies the narrow
// per-package Logger interfaces declared by wal, hnsw, lock, store, txn,
// and paxos without any of them depending on this package.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithTxn adds a txn id field to the logger.
func (l *Logger) WithTxn(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("txn", id),
	}
}

// WithKey adds a key field to the logger.
func (l *Logger) WithKey(key []byte) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", string(key)),
	}
}

// LogPut logs a put (string-mode SET or vector-mode INSERT).
func (l *Logger) LogPut(txnID uint64, key []byte, err error) {
	if err != nil {
		l.Error("put failed", "txn", txnID, "key", string(key), "error", err)
	} else {
		l.Debug("put completed", "txn", txnID, "key", string(key))
	}
}

// LogGet logs a read.
func (l *Logger) LogGet(key []byte, err error) {
	if err != nil {
		l.Debug("get failed", "key", string(key), "error", err)
	} else {
		l.Debug("get completed", "key", string(key))
	}
}

// LogSearch logs a k-NN search.
func (l *Logger) LogSearch(k, found int, err error) {
	if err != nil {
		l.Error("search failed", "k", k, "error", err)
	} else {
		l.Debug("search completed", "k", k, "results", found)
	}
}

// LogRemove logs a delete.
func (l *Logger) LogRemove(txnID uint64, key []byte, err error) {
	if err != nil {
		l.Error("remove failed", "txn", txnID, "key", string(key), "error", err)
	} else {
		l.Debug("remove completed", "txn", txnID, "key", string(key))
	}
}

// LogCommit logs a transaction's commit or rollback outcome.
func (l *Logger) LogCommit(txnID uint64, committed bool, err error) {
	if err != nil {
		l.Error("commit failed", "txn", txnID, "error", err)
		return
	}
	if committed {
		l.Info("transaction committed", "txn", txnID)
	} else {
		l.Info("transaction rolled back", "txn", txnID)
	}
}

// LogRecovery logs a WAL recovery pass.
func (l *Logger) LogRecovery(recordsApplied int, err error) {
	if err != nil {
		l.Error("recovery failed", "records_applied", recordsApplied, "error", err)
	} else {
		l.Info("recovery complete", "records_applied", recordsApplied)
	}
}

// LogCAS logs a CASPaxos round outcome.
func (l *Logger) LogCAS(key string, succeeded bool, err error) {
	if err != nil {
		l.Warn("cas round failed", "key", key, "error", err)
	} else {
		l.Debug("cas round completed", "key", key, "succeeded", succeeded)
	}
}
