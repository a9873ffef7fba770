package fileset

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRepoPutGetDelete(t *testing.T) {
	repo, err := NewLocalRepo(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, "owner-1", "abc", strings.NewReader("hello world")))

	rc, err := repo.Get(ctx, "owner-1", "abc")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	require.NoError(t, repo.Delete(ctx, "owner-1", "abc"))
	_, err = repo.Get(ctx, "owner-1", "abc")
	assert.Error(t, err)
}

func TestLocalRepoFilesUnderDifferentOwnersDontCollide(t *testing.T) {
	repo, err := NewLocalRepo(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, "owner-1", "same-id", strings.NewReader("one")))
	require.NoError(t, repo.Put(ctx, "owner-2", "same-id", strings.NewReader("two")))

	rc1, err := repo.Get(ctx, "owner-1", "same-id")
	require.NoError(t, err)
	data1, _ := io.ReadAll(rc1)
	rc1.Close()
	assert.Equal(t, "one", string(data1))

	rc2, err := repo.Get(ctx, "owner-2", "same-id")
	require.NoError(t, err)
	data2, _ := io.ReadAll(rc2)
	rc2.Close()
	assert.Equal(t, "two", string(data2))
}

func TestLocalRepoListOwnersAndFileIDs(t *testing.T) {
	repo, err := NewLocalRepo(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, "owner-1", "a", strings.NewReader("1")))
	require.NoError(t, repo.Put(ctx, "owner-1", "b", strings.NewReader("2")))
	require.NoError(t, repo.Put(ctx, "owner-2", "c", strings.NewReader("3")))

	owners, err := repo.ListOwners(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owner-1", "owner-2"}, owners)

	ids, err := repo.ListFileIDs(ctx, "owner-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestLocalRepoDeleteMissingIsNotAnError(t *testing.T) {
	repo, err := NewLocalRepo(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, repo.Delete(context.Background(), "owner-1", "does-not-exist"))
}

func TestLocalRepoDeleteContainerRemovesAllFiles(t *testing.T) {
	repo, err := NewLocalRepo(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, "owner-1", "a", strings.NewReader("1")))
	require.NoError(t, repo.Put(ctx, "owner-1", "b", strings.NewReader("2")))

	require.NoError(t, repo.DeleteContainer(ctx, "owner-1"))

	_, err = repo.Get(ctx, "owner-1", "a")
	assert.Error(t, err)
	ids, err := repo.ListFileIDs(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
