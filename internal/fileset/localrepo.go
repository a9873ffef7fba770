package fileset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalRepo stores file content as individual files under a root directory,
// one owner-keyed subdirectory per fileset container, named by the file's
// own identifier within it.
type LocalRepo struct {
	root string
}

// NewLocalRepo prepares a local-disk repository rooted at dir, creating it
// if necessary.
func NewLocalRepo(dir string) (*LocalRepo, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("fileset: create repo root %q: %w", dir, err)
	}
	return &LocalRepo{root: dir}, nil
}

func (r *LocalRepo) ownerDir(ownerID string) string {
	// #nosec G304 - ownerID is a server-generated uuid, never user-controlled path input
	return filepath.Join(r.root, ownerID)
}

func (r *LocalRepo) pathFor(ownerID, fileID string) string {
	return filepath.Join(r.ownerDir(ownerID), fileID)
}

func (r *LocalRepo) Put(ctx context.Context, ownerID, fileID string, content io.Reader) error {
	dir := r.ownerDir(ownerID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("fileset: create container %q: %w", dir, err)
	}
	path := r.pathFor(ownerID, fileID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("fileset: open %q for write: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return fmt.Errorf("fileset: write %q: %w", path, err)
	}
	return nil
}

func (r *LocalRepo) Get(ctx context.Context, ownerID, fileID string) (io.ReadCloser, error) {
	path := r.pathFor(ownerID, fileID)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fileset: open %q for read: %w", path, err)
	}
	return f, nil
}

func (r *LocalRepo) Delete(ctx context.Context, ownerID, fileID string) error {
	path := r.pathFor(ownerID, fileID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fileset: remove %q: %w", path, err)
	}
	return nil
}

// DeleteContainer removes an owner's entire subdirectory (and everything
// still in it), used when a fileset container itself is no longer
// referenced by any row.
func (r *LocalRepo) DeleteContainer(ctx context.Context, ownerID string) error {
	if err := os.RemoveAll(r.ownerDir(ownerID)); err != nil {
		return fmt.Errorf("fileset: remove container %q: %w", ownerID, err)
	}
	return nil
}

// ListOwners implements Lister by listing the repo root's subdirectories,
// one per fileset container.
func (r *LocalRepo) ListOwners(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("fileset: list repo root %q: %w", r.root, err)
	}
	owners := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			owners = append(owners, e.Name())
		}
	}
	return owners, nil
}

// ListFileIDs implements Lister by listing the files directly inside one
// owner's subdirectory.
func (r *LocalRepo) ListFileIDs(ctx context.Context, ownerID string) ([]string, error) {
	dir := r.ownerDir(ownerID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fileset: list container %q: %w", dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
