// Package sync implements the server sync surface: enumerating locally
// dirty rows, pushing them through a caller-supplied transport with
// exponential backoff, and merging incoming remote rows back with
// last-writer-wins arbitration.
package sync

import (
	"context"
)

// RemoteRow is one row as received from (or sent to) the server: its
// primary key, the HLC stamp the server attaches to the write (used both
// for LWW columns and, via UpdatedAt, as the non-LWW tiebreak), and the
// column values themselves as text.
type RemoteRow struct {
	RowID     string
	UpdatedAt string // caller-supplied timestamp/version token used for non-LWW tiebreaking
	Columns   map[string]string
}

// PushResult reports the server's verdict for one pushed row.
type PushResult struct {
	RowID     string
	Accepted  bool
	Err       error
}

// Transport is the caller-supplied network boundary: how dirty rows reach
// a server and how remote rows come back. This package never talks HTTP or
// gRPC directly; it only orchestrates retry, classification, and merge
// semantics around whatever Transport the application wires in.
type Transport interface {
	Push(ctx context.Context, table string, rows []RemoteRow) ([]PushResult, error)
	Pull(ctx context.Context, table string) ([]RemoteRow, error)
}
