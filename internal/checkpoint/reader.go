// Package checkpoint implements the Checkpoint Reader (spec §4.2): it
// loads pending checkpoint rows from the store, validates their shape,
// and coalesces them per file into the ChangeSet the rest of the core
// operates on.
package checkpoint

import (
	"context"
	"fmt"

	"connectgraph/internal/domain"
)

// InputCorruptionError reports a checkpoint row with inconsistent
// contents (spec §7: e.g. modified without old_content). Fatal; the
// run aborts without deleting rows.
type InputCorruptionError struct {
	RowID int64
	Detail string
}

func (e *InputCorruptionError) Error() string {
	return fmt.Sprintf("checkpoint row %d is corrupt: %s", e.RowID, e.Detail)
}

// Source loads pending checkpoint rows; implemented by the store.
type Source interface {
	LoadCheckpointRows(ctx context.Context) ([]domain.CheckpointRow, error)
}

// Load reads every pending row, validates it, groups by
// (project_id, file_path), and coalesces each group into a single
// Change, returning the resulting ChangeSet plus the full set of row
// IDs consumed (for deletion inside the final commit).
func Load(ctx context.Context, src Source) (*domain.ChangeSet, []int64, error) {
	rows, err := src.LoadCheckpointRows(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return domain.NewChangeSet(), nil, nil
	}

	grouped := make(map[domain.FileKey][]domain.CheckpointRow)
	var rowIDs []int64
	for _, r := range rows {
		if err := validateRow(r); err != nil {
			return nil, nil, err
		}
		key := domain.FileKey{ProjectID: r.ProjectID, FilePath: r.FilePath}
		grouped[key] = append(grouped[key], r)
		rowIDs = append(rowIDs, r.ID)
	}

	cs := domain.NewChangeSet()
	for key, group := range grouped {
		sorted := domain.SortRowsByID(group)
		cs.Changes[key] = domain.CoalesceRows(sorted)
	}

	return cs, rowIDs, nil
}

func validateRow(r domain.CheckpointRow) error {
	switch r.ChangeKind {
	case domain.ChangeAdded:
		if r.NewContent == nil {
			return &InputCorruptionError{RowID: r.ID, Detail: "added row missing new_content"}
		}
	case domain.ChangeModified:
		if r.OldContent == nil || r.NewContent == nil {
			return &InputCorruptionError{RowID: r.ID, Detail: "modified row missing old_content or new_content"}
		}
	case domain.ChangeDeleted:
		if r.OldContent == nil {
			return &InputCorruptionError{RowID: r.ID, Detail: "deleted row missing old_content"}
		}
	default:
		return &InputCorruptionError{RowID: r.ID, Detail: fmt.Sprintf("unknown change_kind %q", r.ChangeKind)}
	}
	return nil
}
