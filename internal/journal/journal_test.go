package journal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graknol/declarative-sqlite/internal/engine"
	"github.com/graknol/declarative-sqlite/internal/journal"
)

func newTestStore(t *testing.T) *journal.Store {
	t.Helper()
	eng, err := engine.OpenSQLite(engine.OpenSQLiteOptions{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.NoError(t, journal.EnsureTable(context.Background(), eng))
	return journal.NewStore(eng)
}

func TestRecordThenListDirtyRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Record(ctx, journal.Entry{
		Table:   "widgets",
		RowID:   "w1",
		Op:      journal.OpUpdate,
		Columns: map[string]string{"name": "gizmo"},
		HLC:     "1@N1",
	})
	require.NoError(t, err)

	entries, err := s.ListDirty(ctx, "widgets")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "w1", entries[0].RowID)
	require.Equal(t, "gizmo", entries[0].Columns["name"])
}

func TestRecordAppendsSeparateEntryPerSuccessiveUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, journal.Entry{
		Table: "widgets", RowID: "w1", Op: journal.OpUpdate,
		Columns: map[string]string{"name": "gizmo"}, HLC: "1@N1",
	}))
	require.NoError(t, s.Record(ctx, journal.Entry{
		Table: "widgets", RowID: "w1", Op: journal.OpUpdate,
		Columns: map[string]string{"stock": "5"}, HLC: "2@N1",
	}))

	entries, err := s.ListDirty(ctx, "widgets")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, map[string]string{"name": "gizmo"}, entries[0].Columns)
	require.Equal(t, "1@N1", entries[0].HLC)
	require.Equal(t, map[string]string{"stock": "5"}, entries[1].Columns)
	require.Equal(t, "2@N1", entries[1].HLC)
}

func TestRecordKeepsInsertEntrySeparateFromFollowUpUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, journal.Entry{
		Table: "widgets", RowID: "w1", Op: journal.OpInsert,
		Columns: map[string]string{"name": "gizmo", "age": "1"}, HLC: "1@N1",
	}))
	require.NoError(t, s.Record(ctx, journal.Entry{
		Table: "widgets", RowID: "w1", Op: journal.OpUpdate,
		Columns: map[string]string{"age": "2"}, HLC: "2@N1",
	}))

	entries, err := s.ListDirty(ctx, "widgets")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, journal.OpInsert, entries[0].Op)
	require.Equal(t, map[string]string{"name": "gizmo", "age": "1"}, entries[0].Columns)

	require.Equal(t, journal.OpUpdate, entries[1].Op)
	require.Equal(t, map[string]string{"age": "2"}, entries[1].Columns)
}

func TestRecordDeleteAddsItsOwnEntryAlongsidePriorUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, journal.Entry{
		Table: "widgets", RowID: "w1", Op: journal.OpUpdate,
		Columns: map[string]string{"name": "gizmo"}, HLC: "1@N1",
	}))
	require.NoError(t, s.Record(ctx, journal.Entry{
		Table: "widgets", RowID: "w1", Op: journal.OpDelete,
		Columns: map[string]string{}, HLC: "2@N1",
	}))

	entries, err := s.ListDirty(ctx, "widgets")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, journal.OpUpdate, entries[0].Op)
	require.Equal(t, journal.OpDelete, entries[1].Op)
}

func TestMarkSyncedRemovesAllOfARowsPendingEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, journal.Entry{
		Table: "widgets", RowID: "w1", Op: journal.OpInsert,
		Columns: map[string]string{"name": "gizmo"}, HLC: "1@N1",
	}))
	require.NoError(t, s.Record(ctx, journal.Entry{
		Table: "widgets", RowID: "w1", Op: journal.OpUpdate,
		Columns: map[string]string{"name": "sprocket"}, HLC: "2@N1",
	}))
	require.NoError(t, s.MarkSynced(ctx, "widgets", "w1"))

	entries, err := s.ListDirty(ctx, "widgets")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestListDirtyAcrossAllTablesWhenUnfiltered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, journal.Entry{
		Table: "widgets", RowID: "w1", Op: journal.OpUpdate,
		Columns: map[string]string{"name": "gizmo"}, HLC: "1@N1",
	}))
	require.NoError(t, s.Record(ctx, journal.Entry{
		Table: "gadgets", RowID: "g1", Op: journal.OpUpdate,
		Columns: map[string]string{"name": "thing"}, HLC: "1@N1",
	}))

	entries, err := s.ListDirty(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
