// Package fileset implements the binary blob attachment model: a fileset
// column stores a container identifier (the "owner id"), under which any
// number of files can be grouped; the actual bytes live in a pluggable
// repository addressed by (owner id, file id), and a __files system table
// tracks per-file ownership and metadata for garbage collection.
package fileset

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/graknol/declarative-sqlite/internal/engine"
	"github.com/graknol/declarative-sqlite/internal/schema"
	"github.com/graknol/declarative-sqlite/internal/types"
)

// FilesTableName is the system table tracking fileset metadata.
const FilesTableName = "__files"

// RegisterFilesTable appends the __files system table to a schema build
// unconditionally; it does not check whether any declared table carries a
// fileset column. Called before Build() by the application's schema assembly, mirroring
// how system columns are injected per-table in internal/schema.
func RegisterFilesTable(b *schema.Builder) *schema.Builder {
	b.Table(FilesTableName, func(tb *schema.TableBuilder) {
		tb.Guid("id").NotNull()
		tb.Guid("owner_id").NotNull()
		tb.Text("filename").NotNull()
		tb.Text("path").NotNull()
		tb.Text("mimetype")
		tb.Integer("size").NotNull()
		tb.Key("id").Primary()
		tb.Key("owner_id").Indexed()
	})
	return b
}

// Meta is one __files row.
type Meta struct {
	ID       string
	OwnerID  string
	Filename string
	Path     string
	Mimetype string
	Size     int64
}

// IFileRepository stores and retrieves the raw bytes behind one file,
// addressed by the pair (ownerID, fileID): ownerID is the fileset
// container identifier held in a row's fileset column, fileID is one
// file's own identifier within that container. Implementations may be
// local disk, object storage, or anything else; this package only needs
// Put/Get/Delete.
type IFileRepository interface {
	Put(ctx context.Context, ownerID, fileID string, content io.Reader) error
	Get(ctx context.Context, ownerID, fileID string) (io.ReadCloser, error)
	Delete(ctx context.Context, ownerID, fileID string) error
}

// Store binds an engine connection (for __files metadata) to a file
// repository (for content).
type Store struct {
	eng  engine.Engine
	repo IFileRepository
}

func NewStore(eng engine.Engine, repo IFileRepository) *Store {
	return &Store{eng: eng, repo: repo}
}

// Engine exposes the bound engine connection for callers (tests, GC
// tooling) that need to query application tables alongside __files.
func (s *Store) Engine() engine.Engine { return s.eng }

// AddFile stores content under a fresh file identifier inside ownerID's
// container, records its metadata, and returns the file identifier. ownerID
// is the fileset-identifier string the caller stores in the row's fileset
// column; it may be shared across several AddFile calls to group multiple
// files under one container.
func (s *Store) AddFile(ctx context.Context, ownerID, filename, mimetype string, content io.Reader) (string, error) {
	id := uuid.NewString()

	counter := &countingReader{r: content}
	if err := s.repo.Put(ctx, ownerID, id, counter); err != nil {
		return "", types.NewFailure(types.FamilyCreate, types.InvalidData, err, "store file content for %q", filename)
	}

	_, err := s.eng.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, owner_id, filename, path, mimetype, size) VALUES (?, ?, ?, ?, ?, ?)", FilesTableName),
		id, ownerID, filename, id, mimetype, counter.n)
	if err != nil {
		_ = s.repo.Delete(ctx, ownerID, id) // best-effort: don't leave an orphaned blob behind a failed metadata insert
		return "", types.WrapEngineError(types.FamilyCreate, err, "record file metadata for %q", filename)
	}

	return id, nil
}

// GetContent opens the stored content for id.
func (s *Store) GetContent(ctx context.Context, id string) (io.ReadCloser, error) {
	m, err := s.GetMeta(ctx, id)
	if err != nil {
		return nil, types.NewFailure(types.FamilyRead, types.NotFound, err, "read file content for %q", id)
	}
	rc, err := s.repo.Get(ctx, m.OwnerID, id)
	if err != nil {
		return nil, types.NewFailure(types.FamilyRead, types.NotFound, err, "read file content for %q", id)
	}
	return rc, nil
}

// GetMeta returns the __files row for id.
func (s *Store) GetMeta(ctx context.Context, id string) (*Meta, error) {
	row := s.eng.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, owner_id, filename, path, mimetype, size FROM %s WHERE id = ?", FilesTableName), id)
	var m Meta
	if err := row.Scan(&m.ID, &m.OwnerID, &m.Filename, &m.Path, &m.Mimetype, &m.Size); err != nil {
		return nil, types.WrapEngineError(types.FamilyRead, err, "read file metadata for %q", id)
	}
	return &m, nil
}

// DeleteFile removes both the metadata row and the underlying content.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	m, err := s.GetMeta(ctx, id)
	if err != nil {
		return types.WrapEngineError(types.FamilyDelete, err, "read file metadata for %q", id)
	}
	if _, err := s.eng.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", FilesTableName), id); err != nil {
		return types.WrapEngineError(types.FamilyDelete, err, "delete file metadata for %q", id)
	}
	if err := s.repo.Delete(ctx, m.OwnerID, id); err != nil {
		return types.NewFailure(types.FamilyDelete, types.InvalidData, err, "delete file content for %q", id)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
