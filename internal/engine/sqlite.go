package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	// Pure-Go SQLite, no CGO: the default embedded engine.
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/graknol/declarative-sqlite/internal/types"
)

// sqliteRetryPolicy retries "database is locked"/"busy" conditions, which
// the WASM driver can surface even with its own internal busy-timeout when
// another process briefly holds the writer lock.
var sqliteRetryPolicy = retryPolicy{
	maxElapsed: 10 * time.Second,
	isTransient: func(err error) bool {
		msg := strings.ToLower(err.Error())
		return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
	},
}

// SQLiteEngine is the embedded, file-backed default engine. A process-wide
// exclusive flock guards the single-writer invariant;
// readers do not need the lock since SQLite's own MVCC handles concurrent
// reads.
type SQLiteEngine struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

// OpenSQLiteOptions configures OpenSQLite.
type OpenSQLiteOptions struct {
	// Path is the database file path, or ":memory:" for an ephemeral engine
	// (tests only; GC and sync facilities assume a durable file in
	// production).
	Path string
}

// OpenSQLite opens (creating if absent) a SQLite database file and acquires
// the writer lock alongside it.
func OpenSQLite(opts OpenSQLiteOptions) (*SQLiteEngine, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("engine: sqlite path must not be empty")
	}
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, wrapConnError("sqlite", err)
	}
	db.SetMaxOpenConns(1) // single physical writer connection; WASM driver serializes anyway

	var lock *flock.Flock
	if opts.Path != ":memory:" {
		lockPath := opts.Path + ".lock"
		lock = flock.New(lockPath)
		acquired, err := lock.TryLock()
		if err != nil {
			_ = db.Close()
			return nil, wrapConnError("sqlite", fmt.Errorf("acquire writer lock: %w", err))
		}
		if !acquired {
			_ = db.Close()
			return nil, types.NewFailure(types.FamilyConnection, types.DatabaseLocked, nil,
				"sqlite database %q is locked by another writer", opts.Path)
		}
	}

	return &SQLiteEngine{db: db, lock: lock, path: opts.Path}, nil
}

func (e *SQLiteEngine) System() string { return "sqlite" }

func (e *SQLiteEngine) Close() error {
	var errs []error
	if err := e.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.lock != nil {
		if err := e.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (e *SQLiteEngine) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := engineTracer.Start(ctx, "engine.exec", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanAttrs("sqlite", "exec", query)...))
	var result sql.Result
	err := withRetry(ctx, sqliteRetryPolicy, func() error {
		var execErr error
		result, execErr = e.db.ExecContext(ctx, query, args...)
		return execErr
	})
	wrapped := wrapExecError("sqlite", err)
	endSpan(span, wrapped)
	return result, wrapped
}

func (e *SQLiteEngine) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := engineTracer.Start(ctx, "engine.query", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanAttrs("sqlite", "query", query)...))
	var rows *sql.Rows
	err := withRetry(ctx, sqliteRetryPolicy, func() error {
		var queryErr error
		rows, queryErr = e.db.QueryContext(ctx, query, args...)
		return queryErr
	})
	wrapped := wrapQueryError("sqlite", err)
	endSpan(span, wrapped)
	return rows, wrapped
}

func (e *SQLiteEngine) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	ctx, span := engineTracer.Start(ctx, "engine.query_row", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanAttrs("sqlite", "query_row", query)...))
	defer span.End()
	return e.db.QueryRowContext(ctx, query, args...)
}

func (e *SQLiteEngine) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	ctx, span := engineTracer.Start(ctx, "engine.begin_tx", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "sqlite")))
	tx, err := e.db.BeginTx(ctx, opts)
	wrapped := wrapConnError("sqlite", err)
	endSpan(span, wrapped)
	if wrapped != nil {
		return nil, wrapped
	}
	return &sqliteTx{tx: tx, system: "sqlite"}, nil
}

type sqliteTx struct {
	tx     *sql.Tx
	system string
}

func (t *sqliteTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := engineTracer.Start(ctx, "engine.tx.exec", trace.WithAttributes(spanAttrs(t.system, "exec", query)...))
	result, err := t.tx.ExecContext(ctx, query, args...)
	wrapped := wrapExecError(t.system, err)
	endSpan(span, wrapped)
	return result, wrapped
}

func (t *sqliteTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := engineTracer.Start(ctx, "engine.tx.query", trace.WithAttributes(spanAttrs(t.system, "query", query)...))
	rows, err := t.tx.QueryContext(ctx, query, args...)
	wrapped := wrapQueryError(t.system, err)
	endSpan(span, wrapped)
	return rows, wrapped
}

func (t *sqliteTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }
