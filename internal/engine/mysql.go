package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	// MySQL-wire driver, used for a server-backed StorageEngine alongside
	// the embedded default.
	_ "github.com/go-sql-driver/mysql"
)

// mysqlRetryPolicy retries transient connection errors (stale pool
// connections, brief network blips, server restarts); go-sql-driver/mysql
// has no built-in retry of its own.
var mysqlRetryPolicy = retryPolicy{
	maxElapsed: 30 * time.Second,
	isTransient: func(err error) bool {
		msg := strings.ToLower(err.Error())
		for _, s := range []string{"broken pipe", "connection reset", "invalid connection", "driver: bad connection", "eof"} {
			if strings.Contains(msg, s) {
				return true
			}
		}
		return false
	},
}

// MySQLEngine connects to a running MySQL-wire-compatible server: an
// alternate storage engine backend for federated/multi-writer deployments.
type MySQLEngine struct {
	db *sql.DB
}

// OpenMySQL opens a connection pool against dsn (a go-sql-driver/mysql DSN).
func OpenMySQL(ctx context.Context, dsn string) (*MySQLEngine, error) {
	if dsn == "" {
		return nil, fmt.Errorf("engine: mysql dsn must not be empty")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, wrapConnError("mysql", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrapConnError("mysql", err)
	}
	return &MySQLEngine{db: db}, nil
}

func (e *MySQLEngine) System() string { return "mysql" }
func (e *MySQLEngine) Close() error   { return e.db.Close() }

func (e *MySQLEngine) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := engineTracer.Start(ctx, "engine.exec", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanAttrs("mysql", "exec", query)...))
	var result sql.Result
	err := withRetry(ctx, mysqlRetryPolicy, func() error {
		var execErr error
		result, execErr = e.db.ExecContext(ctx, query, args...)
		return execErr
	})
	wrapped := wrapExecError("mysql", err)
	endSpan(span, wrapped)
	return result, wrapped
}

func (e *MySQLEngine) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := engineTracer.Start(ctx, "engine.query", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanAttrs("mysql", "query", query)...))
	var rows *sql.Rows
	err := withRetry(ctx, mysqlRetryPolicy, func() error {
		var queryErr error
		rows, queryErr = e.db.QueryContext(ctx, query, args...)
		return queryErr
	})
	wrapped := wrapQueryError("mysql", err)
	endSpan(span, wrapped)
	return rows, wrapped
}

func (e *MySQLEngine) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	ctx, span := engineTracer.Start(ctx, "engine.query_row", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanAttrs("mysql", "query_row", query)...))
	defer span.End()
	return e.db.QueryRowContext(ctx, query, args...)
}

func (e *MySQLEngine) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	ctx, span := engineTracer.Start(ctx, "engine.begin_tx", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "mysql")))
	tx, err := e.db.BeginTx(ctx, opts)
	wrapped := wrapConnError("mysql", err)
	endSpan(span, wrapped)
	if wrapped != nil {
		return nil, wrapped
	}
	return &mysqlTx{tx: tx, system: "mysql"}, nil
}

type mysqlTx struct {
	tx     *sql.Tx
	system string
}

func (t *mysqlTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := engineTracer.Start(ctx, "engine.tx.exec", trace.WithAttributes(spanAttrs(t.system, "exec", query)...))
	result, err := t.tx.ExecContext(ctx, query, args...)
	wrapped := wrapExecError(t.system, err)
	endSpan(span, wrapped)
	return result, wrapped
}

func (t *mysqlTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := engineTracer.Start(ctx, "engine.tx.query", trace.WithAttributes(spanAttrs(t.system, "query", query)...))
	rows, err := t.tx.QueryContext(ctx, query, args...)
	wrapped := wrapQueryError(t.system, err)
	endSpan(span, wrapped)
	return rows, wrapped
}

func (t *mysqlTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *mysqlTx) Commit() error   { return t.tx.Commit() }
func (t *mysqlTx) Rollback() error { return t.tx.Rollback() }
