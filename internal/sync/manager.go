package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/graknol/declarative-sqlite/internal/engine"
	"github.com/graknol/declarative-sqlite/internal/journal"
	"github.com/graknol/declarative-sqlite/internal/schema"
)

// PermanentClassifier decides whether an error from Transport should abort
// retrying immediately rather than backing off (an isRetryableError /
// backoff.Permanent split). A nil classifier treats every transport error
// as retryable.
type PermanentClassifier func(error) bool

// RetryPolicy bounds how long SyncNow retries a failing push/pull before
// giving up and recording a failed history entry.
type RetryPolicy struct {
	MaxElapsed  time.Duration
	IsPermanent PermanentClassifier
}

func (p RetryPolicy) backoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if p.MaxElapsed > 0 {
		bo.MaxElapsedTime = p.MaxElapsed
	} else {
		bo.MaxElapsedTime = 60 * time.Second
	}
	return bo
}

// StatusEntry is one bounded sync-history record.
type StatusEntry struct {
	Table    string
	Attempts int
	Err      error
}

const defaultHistoryCap = 50

// Manager is the sync façade: dirty enumeration, push/pull via a caller's
// Transport, and a bounded history of recent attempts.
type Manager struct {
	eng     engine.Engine
	journal *journal.Store
	decl    *schema.Schema
	tr      Transport
	policy  RetryPolicy

	mu          sync.Mutex
	history     []StatusEntry
	historyCap  int
	stopAuto    chan struct{}
	autoRunning bool
}

func NewManager(eng engine.Engine, j *journal.Store, decl *schema.Schema, tr Transport, policy RetryPolicy) *Manager {
	return &Manager{eng: eng, journal: j, decl: decl, tr: tr, policy: policy, historyCap: defaultHistoryCap}
}

// DirtyRows enumerates locally dirty rows for table ("" for all tables).
func (m *Manager) DirtyRows(ctx context.Context, table string) ([]journal.Entry, error) {
	return m.journal.ListDirty(ctx, table)
}

// MarkSynced clears all of a row's dirty entries after the server acknowledges it.
func (m *Manager) MarkSynced(ctx context.Context, table, rowID string) error {
	return m.journal.MarkSynced(ctx, table, rowID)
}

// Discard clears all of a row's dirty entries without syncing it (used when a
// remote write supersedes the pending local change).
func (m *Manager) Discard(ctx context.Context, table, rowID string) error {
	return m.journal.Discard(ctx, table, rowID)
}

// SyncNow pushes every dirty row for table (pulling the server's response
// for acceptance), then pulls and applies any remote rows, recording one
// history entry for the attempt.
func (m *Manager) SyncNow(ctx context.Context, table string) error {
	entries, err := m.journal.ListDirty(ctx, table)
	if err != nil {
		m.record(StatusEntry{Table: table, Err: err})
		return err
	}

	rows := make([]RemoteRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, RemoteRow{RowID: e.RowID, UpdatedAt: e.HLC, Columns: e.Columns})
	}

	attempts := 0
	pushErr := backoff.Retry(func() error {
		attempts++
		results, err := m.tr.Push(ctx, table, rows)
		if err != nil {
			if m.policy.IsPermanent != nil && m.policy.IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		for _, r := range results {
			if r.Err != nil {
				continue // one row's rejection doesn't fail the whole push
			}
			if r.Accepted {
				_ = m.journal.MarkSynced(ctx, table, r.RowID)
			}
		}
		return nil
	}, backoff.WithContext(m.policy.backoff(), ctx))

	if pushErr != nil {
		m.record(StatusEntry{Table: table, Attempts: attempts, Err: pushErr})
		return fmt.Errorf("sync: push %q: %w", table, pushErr)
	}

	remote, err := m.tr.Pull(ctx, table)
	if err != nil {
		m.record(StatusEntry{Table: table, Attempts: attempts, Err: err})
		return fmt.Errorf("sync: pull %q: %w", table, err)
	}

	t, ok := m.decl.Table(table)
	if !ok {
		err := fmt.Errorf("sync: unknown table %q", table)
		m.record(StatusEntry{Table: table, Attempts: attempts, Err: err})
		return err
	}
	if _, err := ApplyRemote(ctx, m.eng, t, remote); err != nil {
		m.record(StatusEntry{Table: table, Attempts: attempts, Err: err})
		return err
	}

	m.record(StatusEntry{Table: table, Attempts: attempts})
	return nil
}

func (m *Manager) record(e StatusEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, e)
	if len(m.history) > m.historyCap {
		m.history = m.history[len(m.history)-m.historyCap:]
	}
}

// History returns a copy of the bounded recent-attempt history, most
// recent last.
func (m *Manager) History() []StatusEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StatusEntry, len(m.history))
	copy(out, m.history)
	return out
}

// StartAuto begins a background goroutine calling SyncNow(table) every
// interval until StopAuto is called.
func (m *Manager) StartAuto(ctx context.Context, table string, interval time.Duration) {
	m.mu.Lock()
	if m.autoRunning {
		m.mu.Unlock()
		return
	}
	m.autoRunning = true
	m.stopAuto = make(chan struct{})
	stop := m.stopAuto
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = m.SyncNow(ctx, table)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopAuto halts the background sync loop started by StartAuto.
func (m *Manager) StopAuto() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.autoRunning {
		return
	}
	close(m.stopAuto)
	m.autoRunning = false
}
