// Package reactive implements the watch registry: application code
// registers a query, receives results, and is notified again whenever a
// mutation touches something the query depends on.
// Re-execution runs on a single cooperative task runner so result
// emissions never race each other for a given watch.
package reactive

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/graknol/declarative-sqlite/internal/depanalysis"
	"github.com/graknol/declarative-sqlite/internal/query"
	"github.com/graknol/declarative-sqlite/internal/writepath"
)

// State is a watch's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateExecuting
	StateEmitted
	StateInvalidated
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateEmitted:
		return "emitted"
	case StateInvalidated:
		return "invalidated"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Executor runs a query and returns its rows as a driver-agnostic slice of
// column-name/value maps; it is supplied by the caller (record/query
// execution layer) so this package stays free of any engine dependency.
type Executor func(ctx context.Context, q *query.Select) ([]map[string]any, error)

// Result is what a watch emits: either a fresh row set or an execution
// error (the watch keeps running either way; an execution failure
// surfaces as a result, not a fatal crash).
type Result struct {
	Rows []map[string]any
	Err  error
}

// Watch is one registered reactive query.
type Watch struct {
	id   int64
	mgr  *Manager
	q    *query.Select
	deps *depanalysis.Dependencies

	mu     sync.Mutex
	state  State
	onNext func(Result)
}

// ID returns the watch's registry identifier.
func (w *Watch) ID() int64 { return w.id }

// State returns the watch's current lifecycle state.
func (w *Watch) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Cancel stops future re-execution of this watch and removes it from the
// registry.
func (w *Watch) Cancel() {
	w.mu.Lock()
	w.state = StateCancelled
	w.mu.Unlock()
	w.mgr.remove(w.id)
}

// Manager owns the watch registry and the single-threaded task runner that
// serializes all re-executions: cooperative scheduling, no concurrent
// writers to a given watch's result stream.
type Manager struct {
	mu       sync.Mutex
	watches  map[int64]*Watch
	nextID   int64
	schema   depanalysis.SchemaProvider
	exec     Executor
	tasks    chan func()
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager starts the manager's task runner goroutine. sp may be nil if
// the caller never needs unqualified-column resolution to be precise.
func NewManager(sp depanalysis.SchemaProvider, exec Executor) *Manager {
	m := &Manager{
		watches: map[int64]*Watch{},
		schema:  sp,
		exec:    exec,
		tasks:   make(chan func(), 256),
		stopCh:  make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Manager) run() {
	for {
		select {
		case task := <-m.tasks:
			task()
		case <-m.stopCh:
			return
		}
	}
}

// Stop halts the task runner. Pending re-executions are dropped.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Watch registers q, executes it once, and calls onNext with the initial
// result before returning. Subsequent mutations that intersect q's
// dependency set trigger onNext again, coalesced: if several mutations
// land before re-execution runs, only one re-execution happens.
func (m *Manager) Watch(ctx context.Context, q *query.Select, onNext func(Result)) (*Watch, error) {
	deps := depanalysis.Analyze(q, m.schema)

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	w := &Watch{id: id, mgr: m, q: q, deps: deps, onNext: onNext}
	m.watches[id] = w
	m.mu.Unlock()

	m.execute(ctx, w)
	return w, nil
}

func (m *Manager) remove(id int64) {
	m.mu.Lock()
	delete(m.watches, id)
	m.mu.Unlock()
}

func (m *Manager) execute(ctx context.Context, w *Watch) {
	w.mu.Lock()
	if w.state == StateCancelled {
		w.mu.Unlock()
		return
	}
	w.state = StateExecuting
	w.mu.Unlock()

	rows, err := m.exec(ctx, w.q)

	w.mu.Lock()
	if w.state == StateCancelled {
		w.mu.Unlock()
		return
	}
	w.state = StateEmitted
	cb := w.onNext
	w.mu.Unlock()

	if cb != nil {
		cb(Result{Rows: rows, Err: err})
	}
}

// OnMutation is called once per committed writepath.Change. It intersects
// the change's mutated columns against every watch's dependency set and
// schedules re-execution for every watch that overlaps, matching the
// invalidation rule below.
func (m *Manager) OnMutation(ctx context.Context, change writepath.Change) {
	m.mu.Lock()
	var affected []*Watch
	for _, w := range m.watches {
		if !w.deps.Tables[change.Table] {
			continue
		}
		switch change.Kind {
		case writepath.ChangeInsert, writepath.ChangeDelete:
			// A new or vanished row always invalidates every watch over its
			// table, regardless of which columns happened to be set: the
			// row's mere existence (or non-existence) is what changed, and
			// an insert's MutatedColumns may omit nullable columns with no
			// default, which would otherwise hide the row from a watch that
			// depends on exactly one of them.
			affected = append(affected, w)
		default:
			if w.deps.Wildcard || len(change.MutatedColumns) == 0 || columnsOverlap(w.deps, change) {
				affected = append(affected, w)
			}
		}
	}
	m.mu.Unlock()

	sort.Slice(affected, func(i, j int) bool { return affected[i].id < affected[j].id })

	// One commit can invalidate many watches at once; an errgroup sequences
	// submitting that whole batch onto the task runner so a slow/cancelled
	// submission for one watch doesn't silently drop the rest.
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range affected {
		w.mu.Lock()
		alreadyPending := w.state == StateInvalidated
		w.state = StateInvalidated
		w.mu.Unlock()

		if alreadyPending {
			continue // a re-execution is already queued; this mutation coalesces into it
		}
		ww := w
		g.Go(func() error {
			select {
			case m.tasks <- func() { m.execute(ctx, ww) }:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	_ = g.Wait()
}

func columnsOverlap(deps *depanalysis.Dependencies, change writepath.Change) bool {
	if len(deps.Columns) == 0 {
		return true // no column-level info recorded for this table: assume full overlap
	}
	for _, col := range change.MutatedColumns {
		if deps.Columns[depanalysis.ColumnDep{Table: change.Table, Column: col}] {
			return true
		}
	}
	return false
}

// OnDDL invalidates every watch touching table, unconditionally, when its
// physical shape changes: a ddl change descriptor invalidates any watch
// depending on the affected table.
func (m *Manager) OnDDL(ctx context.Context, table string) {
	m.OnMutation(ctx, writepath.Change{Table: table})
}

// DebugSnapshot returns a small human-readable description of every live
// watch's state, useful for a schema print / status CLI command.
func (m *Manager) DebugSnapshot() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id := range m.watches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ""
	for _, id := range ids {
		w := m.watches[id]
		out += fmt.Sprintf("watch %d: %s\n", id, w.State())
	}
	return out
}
