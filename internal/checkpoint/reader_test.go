package checkpoint

import (
	"context"
	"testing"

	"connectgraph/internal/domain"
)

type fakeSource struct {
	rows []domain.CheckpointRow
}

func (f fakeSource) LoadCheckpointRows(ctx context.Context) ([]domain.CheckpointRow, error) {
	return f.rows, nil
}

func strp(s string) *string { return &s }

func TestLoad_L3_RevertCancels(t *testing.T) {
	src := fakeSource{rows: []domain.CheckpointRow{
		{ID: 1, ProjectID: 1, FilePath: "f.go", ChangeKind: domain.ChangeModified, OldContent: strp("a"), NewContent: strp("b")},
		{ID: 2, ProjectID: 1, FilePath: "f.go", ChangeKind: domain.ChangeModified, OldContent: strp("b"), NewContent: strp("a")},
	}}

	cs, ids, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected both rows consumed, got %v", ids)
	}
	change := cs.Changes[domain.FileKey{ProjectID: 1, FilePath: "f.go"}]
	if change.Modified == nil {
		t.Fatalf("expected a Modified change, got %+v", change)
	}
	if change.Modified.Old != "a" || change.Modified.New != "a" {
		t.Fatalf("expected a revert to coalesce to a no-content-change modified(a,a), got %+v", change.Modified)
	}
}

func TestLoad_AddedThenDeletedIsNoOp(t *testing.T) {
	src := fakeSource{rows: []domain.CheckpointRow{
		{ID: 1, ProjectID: 1, FilePath: "new.go", ChangeKind: domain.ChangeAdded, NewContent: strp("x")},
		{ID: 2, ProjectID: 1, FilePath: "new.go", ChangeKind: domain.ChangeDeleted, OldContent: strp("x")},
	}}

	cs, ids, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected both rows marked processed, got %v", ids)
	}
	change := cs.Changes[domain.FileKey{ProjectID: 1, FilePath: "new.go"}]
	if !change.IsNoOp() {
		t.Fatalf("expected no-op change, got %+v", change)
	}
}

func TestLoad_InputCorruption(t *testing.T) {
	src := fakeSource{rows: []domain.CheckpointRow{
		{ID: 5, ProjectID: 1, FilePath: "f.go", ChangeKind: domain.ChangeModified, NewContent: strp("b")},
	}}
	_, _, err := Load(context.Background(), src)
	if err == nil {
		t.Fatalf("expected InputCorruptionError")
	}
	if _, ok := err.(*InputCorruptionError); !ok {
		t.Fatalf("expected *InputCorruptionError, got %T", err)
	}
}
