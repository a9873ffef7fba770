// Package engine wraps the embedded SQL engines (SQLite and MySQL-wire
// backends) the rest of the data access stack issues statements against.
// It adds OpenTelemetry tracing/metrics and transient-error retry around
// the bare database/sql connection, staying a thin collaborator rather
// than a versioned-storage backend in its own right.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/graknol/declarative-sqlite/internal/types"
)

// Engine is the minimal collaborator the write path, query executor, and
// migrator need from an embedded SQL database. Both the SQLite and MySQL
// backends implement it identically; callers never see driver-specific
// types.
type Engine interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
	System() string // "sqlite" or "mysql", used in span attributes and error messages
	Close() error
}

// Tx is a single transaction. ExecContext and QueryContext are traced but
// not retried; QueryRowContext, Commit and Rollback go straight to the
// driver without a span or retry.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Commit() error
	Rollback() error
}

var engineTracer = otel.Tracer("github.com/graknol/declarative-sqlite/engine")

var engineMetrics struct {
	retryCount metric.Int64Counter
	lockWaitMs metric.Float64Histogram
}

func init() {
	m := otel.Meter("github.com/graknol/declarative-sqlite/engine")
	engineMetrics.retryCount, _ = m.Int64Counter("dsqlite.engine.retry_count",
		metric.WithDescription("SQL operations retried due to transient engine errors"),
		metric.WithUnit("{retry}"),
	)
	engineMetrics.lockWaitMs, _ = m.Float64Histogram("dsqlite.engine.lock_wait_ms",
		metric.WithDescription("time spent waiting to acquire the single-writer lock"),
		metric.WithUnit("ms"),
	)
}

// retryPolicy classifies which errors are worth retrying and bounds total
// retry time; both backends share the same policy shape, grounded on the
// teacher's server-mode retry backoff.
type retryPolicy struct {
	maxElapsed    time.Duration
	isTransient   func(error) bool
}

func (p retryPolicy) backoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = p.maxElapsed
	return bo
}

// withRetry runs op, retrying transient errors under the policy's backoff
// and aborting immediately on any other error.
func withRetry(ctx context.Context, policy retryPolicy, op func() error) error {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		if policy.isTransient != nil && policy.isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy.backoff(), ctx))
	if attempts > 1 {
		engineMetrics.retryCount.Add(ctx, int64(attempts-1))
	}
	return err
}

func spanAttrs(system, op, query string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", op),
		attribute.String("db.statement", spanSQL(query)),
	}
}

func spanSQL(q string) string {
	if len(q) > 300 {
		return q[:300] + "…"
	}
	return q
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// wrapExecError classifies a raw driver error into the sync/write-path
// failure taxonomy before it's handed back to the caller.
func wrapExecError(system string, err error) error {
	if err == nil {
		return nil
	}
	return types.WrapEngineError(types.FamilyUpdate, err, "%s exec failed", system)
}

func wrapQueryError(system string, err error) error {
	if err == nil {
		return nil
	}
	return types.WrapEngineError(types.FamilyRead, err, "%s query failed", system)
}

func wrapConnError(system string, err error) error {
	if err == nil {
		return nil
	}
	return types.WrapEngineError(types.FamilyConnection, err, "%s connection failed", system)
}

var errNilEngine = fmt.Errorf("engine: nil connection")
