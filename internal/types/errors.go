package types

import (
	"database/sql"
	"errors"
	"fmt"
)

// FailureKind is a caller-visible classification within one of the
// operation-level error families below. UnknownKind ("unknown") marks an
// error that was not classified more specifically.
type FailureKind string

const (
	// CreateFailure kinds.
	ConstraintViolation FailureKind = "constraint_violation"
	InvalidData         FailureKind = "invalid_data"
	AccessDenied        FailureKind = "access_denied"

	// ReadFailure kinds.
	NotFound      FailureKind = "not_found"
	InvalidQuery  FailureKind = "invalid_query"

	// UpdateFailure kinds.
	ConcurrencyConflict FailureKind = "concurrency_conflict"

	// TransactionFailure / ConnectionFailure / MigrationFailure / SyncFailure kinds.
	Rollback         FailureKind = "rollback"
	Unreachable      FailureKind = "unreachable"
	DatabaseLocked   FailureKind = "database_locked"
	SchemaMismatch   FailureKind = "schema_mismatch"
	Corruption       FailureKind = "corruption"
	TransportError   FailureKind = "transport_error"
	PermanentReject  FailureKind = "permanent_rejection"
	UnknownKind      FailureKind = "unknown"
)

// Family names the error taxonomy family a Failure belongs to.
type Family string

const (
	FamilyCreate       Family = "create"
	FamilyRead         Family = "read"
	FamilyUpdate       Family = "update"
	FamilyDelete       Family = "delete"
	FamilyTransaction  Family = "transaction"
	FamilyConnection   Family = "connection"
	FamilyMigration    Family = "migration"
	FamilySync         Family = "sync"
)

// Failure is the caller-visible error type for every operation in this
// module. It carries a family, a kind within that family, a human message,
// and the originating engine error as Cause, retained via %w so callers
// can still unwrap to the underlying database/sql error.
type Failure struct {
	Family  Family
	Kind    FailureKind
	Message string
	Cause   error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", f.Family, f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s/%s: %s", f.Family, f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Cause }

// Is allows errors.Is(err, &Failure{Family: ..., Kind: ...}) matching on
// family+kind alone, so callers can classify without comparing messages.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	if t.Family != "" && t.Family != f.Family {
		return false
	}
	if t.Kind != "" && t.Kind != f.Kind {
		return false
	}
	return true
}

// NewFailure builds a Failure, formatting Message from format/args.
func NewFailure(family Family, kind FailureKind, cause error, format string, args ...any) *Failure {
	return &Failure{Family: family, Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WrapEngineError classifies a database/sql error into the given family,
// converting sql.ErrNoRows into NotFound. Any other error is tagged
// UnknownKind within the family unless the caller already knows a more
// specific kind (use NewFailure then).
func WrapEngineError(family Family, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	kind := UnknownKind
	if errors.Is(err, sql.ErrNoRows) {
		kind = NotFound
	}
	return NewFailure(family, kind, err, format, args...)
}

// IsNotFound reports whether err is a Failure carrying the NotFound kind in
// any family.
func IsNotFound(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind == NotFound
	}
	return false
}

// IsInvalidData reports whether err is a Failure carrying the InvalidData
// kind in any family (e.g. a write rejected by a view's forUpdate boundary).
func IsInvalidData(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind == InvalidData
	}
	return false
}

// IsConcurrencyConflict reports whether err represents an LWW caller-expected
// write loss, reported only when the caller asked to be told.
func IsConcurrencyConflict(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind == ConcurrencyConflict
	}
	return false
}
