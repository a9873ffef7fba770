package fileset

import (
	"context"
	"fmt"

	"github.com/graknol/declarative-sqlite/internal/schema"
	"github.com/graknol/declarative-sqlite/internal/types"
)

// GCResult reports what one garbage-collection pass did, including
// per-item failures: GC is best-effort and a single bad row never aborts
// the whole pass. FilesetsRemoved counts whole containers (owner ids) torn
// down because no row references them; FilesRemoved counts individual
// orphaned blobs found with no matching __files row.
type GCResult struct {
	FilesetsRemoved int
	FilesRemoved    int
	Errors          []error
}

// Lister is an optional IFileRepository capability: repositories that can
// enumerate their stored containers and the files within each let GCFiles
// find content blobs with no matching __files row. Repositories that can't
// implement it (e.g. a remote object store with no cheap listing) simply
// skip that half of GC.
type Lister interface {
	ListOwners(ctx context.Context) ([]string, error)
	ListFileIDs(ctx context.Context, ownerID string) ([]string, error)
}

// ContainerRemover is an optional IFileRepository capability letting
// GCFilesets tear down an owner's whole container in one call instead of
// deleting its files one at a time. Repositories that don't implement it
// fall back to per-file deletion.
type ContainerRemover interface {
	DeleteContainer(ctx context.Context, ownerID string) error
}

// GCFilesets removes __files rows (and their content) belonging to
// containers (owner ids) no longer referenced by any fileset column of
// decl's tables. A container is only a candidate if its owner id isn't
// referenced anywhere; the scan reads the current contents of every
// fileset column across every table at the moment GC runs, so anything
// inserted after the scan began survives even if this pass is still
// running: a GC pass never removes files created after its snapshot was
// taken.
func (s *Store) GCFilesets(ctx context.Context, decl *schema.Schema) (GCResult, error) {
	validOwners, err := s.collectReferencedOwnerIDs(ctx, decl)
	if err != nil {
		return GCResult{}, err
	}

	rows, err := s.eng.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT owner_id FROM %s", FilesTableName))
	if err != nil {
		return GCResult{}, types.WrapEngineError(types.FamilyRead, err, "list file owners for gc")
	}
	var staleOwners []string
	for rows.Next() {
		var ownerID string
		if err := rows.Scan(&ownerID); err != nil {
			rows.Close()
			return GCResult{}, types.WrapEngineError(types.FamilyRead, err, "scan file owner for gc")
		}
		if !validOwners[ownerID] {
			staleOwners = append(staleOwners, ownerID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return GCResult{}, types.WrapEngineError(types.FamilyRead, err, "iterate file owners for gc")
	}

	var result GCResult
	for _, ownerID := range staleOwners {
		if err := s.removeContainer(ctx, ownerID); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.FilesetsRemoved++
	}
	return result, nil
}

// removeContainer deletes every __files row under ownerID and its content,
// using the repository's ContainerRemover capability when available to
// avoid a per-file round trip.
func (s *Store) removeContainer(ctx context.Context, ownerID string) error {
	ids, err := s.fileIDsForOwner(ctx, ownerID)
	if err != nil {
		return err
	}

	if _, err := s.eng.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE owner_id = ?", FilesTableName), ownerID); err != nil {
		return types.WrapEngineError(types.FamilyDelete, err, "delete file metadata for container %q", ownerID)
	}

	if remover, ok := s.repo.(ContainerRemover); ok {
		if err := remover.DeleteContainer(ctx, ownerID); err != nil {
			return types.NewFailure(types.FamilyDelete, types.InvalidData, err, "delete container %q", ownerID)
		}
		return nil
	}

	for _, id := range ids {
		if err := s.repo.Delete(ctx, ownerID, id); err != nil {
			return types.NewFailure(types.FamilyDelete, types.InvalidData, err, "delete file content %q/%q", ownerID, id)
		}
	}
	return nil
}

func (s *Store) fileIDsForOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.eng.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE owner_id = ?", FilesTableName), ownerID)
	if err != nil {
		return nil, types.WrapEngineError(types.FamilyRead, err, "list files for container %q", ownerID)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.WrapEngineError(types.FamilyRead, err, "scan file for container %q", ownerID)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// collectReferencedOwnerIDs scans every fileset-typed column of every table
// in decl and returns the set of container (owner) identifiers currently
// held by some row.
func (s *Store) collectReferencedOwnerIDs(ctx context.Context, decl *schema.Schema) (map[string]bool, error) {
	valid := map[string]bool{}
	for _, t := range decl.Tables {
		if t.Name == FilesTableName {
			continue
		}
		for _, c := range t.Columns {
			if c.Kind != types.KindFileset {
				continue
			}
			rows, err := s.eng.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL", c.Name, t.Name, c.Name))
			if err != nil {
				return nil, types.WrapEngineError(types.FamilyRead, err, "scan fileset column %s.%s for gc", t.Name, c.Name)
			}
			for rows.Next() {
				var ownerID string
				if err := rows.Scan(&ownerID); err != nil {
					rows.Close()
					return nil, types.WrapEngineError(types.FamilyRead, err, "scan fileset value %s.%s for gc", t.Name, c.Name)
				}
				valid[ownerID] = true
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return nil, types.WrapEngineError(types.FamilyRead, err, "iterate fileset column %s.%s for gc", t.Name, c.Name)
			}
		}
	}
	return valid, nil
}

// GCFiles removes orphaned content blobs that have no corresponding
// __files row, when the repository supports listing (Lister). Repositories
// that don't implement Lister are skipped with a nil result rather than an
// error, since this half of GC is strictly an optimization: GCFilesets
// already removes every file that belongs to a dead container, via its
// metadata rows rather than a repository listing.
func (s *Store) GCFiles(ctx context.Context) (GCResult, error) {
	lister, ok := s.repo.(Lister)
	if !ok {
		return GCResult{}, nil
	}

	owners, err := lister.ListOwners(ctx)
	if err != nil {
		return GCResult{}, fmt.Errorf("fileset: list repository containers: %w", err)
	}

	var result GCResult
	for _, ownerID := range owners {
		ids, err := lister.ListFileIDs(ctx, ownerID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("fileset: list container %q: %w", ownerID, err))
			continue
		}
		for _, id := range ids {
			if m, err := s.GetMeta(ctx, id); err == nil && m.OwnerID == ownerID {
				continue
			}
			if err := s.repo.Delete(ctx, ownerID, id); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			result.FilesRemoved++
		}
	}
	return result, nil
}

// GCAll runs GCFilesets followed by GCFiles, aggregating their results.
func (s *Store) GCAll(ctx context.Context, decl *schema.Schema) (GCResult, error) {
	filesetsResult, err := s.GCFilesets(ctx, decl)
	if err != nil {
		return filesetsResult, err
	}
	filesResult, err := s.GCFiles(ctx)
	if err != nil {
		return filesetsResult, err
	}
	return GCResult{
		FilesetsRemoved: filesetsResult.FilesetsRemoved,
		FilesRemoved:    filesResult.FilesRemoved,
		Errors:          append(filesetsResult.Errors, filesResult.Errors...),
	}, nil
}
