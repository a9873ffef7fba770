package fileset_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGCFilesetsRemovesUnreferencedContainerEntirely(t *testing.T) {
	store, decl := newTestStore(t)
	ctx := context.Background()

	keptOwner := "owner-kept"
	orphanOwner := "owner-orphan"

	keptID, err := store.AddFile(ctx, keptOwner, "kept.txt", "text/plain", strings.NewReader("a"))
	require.NoError(t, err)
	orphanID, err := store.AddFile(ctx, orphanOwner, "orphan.txt", "text/plain", strings.NewReader("b"))
	require.NoError(t, err)

	// The fileset column holds the container (owner) identifier, not any
	// individual file's own id.
	_, err = store.Engine().ExecContext(ctx,
		"INSERT INTO widgets (system_id, system_created_at, system_version, name, attachment) VALUES (?, ?, ?, ?, ?)",
		"w1", "1@N1", "1@N1", "gizmo", keptOwner)
	require.NoError(t, err)

	result, err := store.GCFilesets(ctx, decl)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesetsRemoved)
	require.Empty(t, result.Errors)

	_, err = store.GetMeta(ctx, keptID)
	require.NoError(t, err)
	_, err = store.GetMeta(ctx, orphanID)
	require.Error(t, err)
}

func TestGCFilesetsRemovesAllFilesUnderAnOrphanedContainer(t *testing.T) {
	store, decl := newTestStore(t)
	ctx := context.Background()

	orphanOwner := "owner-orphan"
	f1, err := store.AddFile(ctx, orphanOwner, "a.txt", "text/plain", strings.NewReader("a"))
	require.NoError(t, err)
	f2, err := store.AddFile(ctx, orphanOwner, "b.txt", "text/plain", strings.NewReader("b"))
	require.NoError(t, err)

	result, err := store.GCFilesets(ctx, decl)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesetsRemoved)

	_, err = store.GetMeta(ctx, f1)
	require.Error(t, err)
	_, err = store.GetMeta(ctx, f2)
	require.Error(t, err)
}

func TestGCFilesRemovesOrphanedBlobsViaLister(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.AddFile(ctx, "owner-1", "a.txt", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)

	// Delete the __files row directly, leaving the blob behind, to force
	// GCFiles to find it via the repository's own listing.
	_, err = store.Engine().ExecContext(ctx, "DELETE FROM __files WHERE id = ?", id)
	require.NoError(t, err)

	result, err := store.GCFiles(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesRemoved)
}

func TestGCFilesLeavesOwnedBlobsAlone(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.AddFile(ctx, "owner-1", "a.txt", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)

	result, err := store.GCFiles(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, result.FilesRemoved)

	_, err = store.GetMeta(ctx, id)
	require.NoError(t, err)
}

func TestGCAllAggregatesBothPasses(t *testing.T) {
	store, decl := newTestStore(t)
	ctx := context.Background()

	// An unreferenced container: removed by the filesets pass, not the
	// files pass.
	_, err := store.AddFile(ctx, "owner-orphan-container", "a.txt", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)

	// A referenced container with one orphaned blob alongside a kept file.
	keptID, err := store.AddFile(ctx, "owner-kept", "kept.txt", "text/plain", strings.NewReader("y"))
	require.NoError(t, err)
	orphanBlobID, err := store.AddFile(ctx, "owner-kept", "stray.txt", "text/plain", strings.NewReader("z"))
	require.NoError(t, err)
	_, err = store.Engine().ExecContext(ctx, "DELETE FROM __files WHERE id = ?", orphanBlobID)
	require.NoError(t, err)

	_, err = store.Engine().ExecContext(ctx,
		"INSERT INTO widgets (system_id, system_created_at, system_version, name, attachment) VALUES (?, ?, ?, ?, ?)",
		"w1", "1@N1", "1@N1", "gizmo", "owner-kept")
	require.NoError(t, err)

	result, err := store.GCAll(ctx, decl)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesetsRemoved)
	require.Equal(t, 1, result.FilesRemoved)
	require.Empty(t, result.Errors)

	_, err = store.GetMeta(ctx, keptID)
	require.NoError(t, err)
}
