package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"connectgraph/internal/domain"
	"connectgraph/internal/projectdesc"
	"connectgraph/internal/splitter"
	"connectgraph/internal/store"
)

// fakeSplitter returns a fixed Response, or fails if called when the
// test does not expect a Splitter call at all.
type fakeSplitter struct {
	resp         splitter.Response
	err          error
	calls        int
	failIfCalled bool
	t            *testing.T
}

func (f *fakeSplitter) Name() string { return "fake" }
func (f *fakeSplitter) Close() error { return nil }
func (f *fakeSplitter) Split(ctx context.Context, req splitter.Request) (splitter.Response, error) {
	f.calls++
	if f.failIfCalled {
		f.t.Fatalf("splitter should not have been called, got request %+v", req)
	}
	return f.resp, f.err
}

// snapshotFile mirrors internal/store's unexported fileSnapshot shape
// so tests can seed pending checkpoint rows, which the Store exposes
// no public writer for (they arrive out-of-band from an external
// watcher in a real deployment).
type snapshotFile struct {
	NextID         int64                              `json:"next_id"`
	Projects       map[int64]domain.Project           `json:"projects"`
	Files          map[int64]domain.File              `json:"files"`
	Connections    map[int64]domain.Connection        `json:"connections"`
	Mappings       map[int64]domain.ConnectionMapping `json:"mappings"`
	CheckpointRows []domain.CheckpointRow             `json:"checkpoint_rows"`
}

func readSnapshotFile(t *testing.T, path string) snapshotFile {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	return snap
}

func writeSnapshotFile(t *testing.T, path string, snap snapshotFile) {
	t.Helper()
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
}

// appendCheckpointRow seeds row into the snapshot file at path (which
// may not exist yet) and returns a Store freshly loaded from it: a
// file-backed Store reads its snapshot once, on first use, so a
// handle loaded before the row was written never sees it.
func appendCheckpointRow(t *testing.T, path string, row domain.CheckpointRow) *store.Store {
	t.Helper()
	snap := snapshotFile{NextID: 1}
	if _, err := os.Stat(path); err == nil {
		snap = readSnapshotFile(t, path)
	}
	row.ID = snap.NextID
	snap.NextID++
	snap.CheckpointRows = append(snap.CheckpointRows, row)
	writeSnapshotFile(t, path, snap)
	s := store.New(path)
	if err := s.EnsureLoaded(); err != nil {
		t.Fatalf("EnsureLoaded (after seeding): %v", err)
	}
	return s
}

func strPtr(s string) *string { return &s }

func newTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	s := store.New(path)
	if err := s.EnsureLoaded(); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	return s, path
}

func baseConfig(s *store.Store, sp splitter.Splitter) Config {
	return Config{
		Store:              s,
		Splitter:           sp,
		ProjectDesc:        projectdesc.Static{},
		BatchLineBudget:    5000,
		AdjacencyThreshold: 3,
		MatcherThreshold:   0.5,
		CPUWorkers:         2,
	}
}

// S3: Added file. A new file appears in the checkpoint; one
// SnippetJob covers the whole file; all returned connections are
// inserted; no deletes.
func TestCoordinator_S3_AddedFile(t *testing.T) {
	s, path := newTestStore(t)
	s = appendCheckpointRow(t, path, domain.CheckpointRow{
		ProjectID:  1,
		FilePath:   "svc/queue.go",
		ChangeKind: domain.ChangeAdded,
		NewContent: strPtr("func A() {}"),
	})

	sp := &fakeSplitter{resp: splitter.Response{Connections: []splitter.DerivedConnection{
		{SourceIndex: 0, Direction: domain.DirectionOutgoing, StartLine: 1, EndLine: 1, CodeSnippet: "func A() {}", Description: "calls out", TechnologyName: "HTTP/GET"},
	}}}

	co := New(baseConfig(s, sp))
	if err := co.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sp.calls != 1 {
		t.Fatalf("expected exactly 1 splitter call, got %d", sp.calls)
	}

	f, ok, err := s.FileByPath(context.Background(), 1, "svc/queue.go")
	if err != nil || !ok {
		t.Fatalf("FileByPath: ok=%v err=%v", ok, err)
	}
	conns, err := s.ConnectionsForFile(context.Background(), f.ID)
	if err != nil {
		t.Fatalf("ConnectionsForFile: %v", err)
	}
	if len(conns) != 1 || conns[0].TechnologyName != "HTTP/GET" {
		t.Fatalf("unexpected connections: %+v", conns)
	}
}

// S4: Deleted file. A file with 3 connections and 2 mappings is
// deleted. The 3 connections are removed, the 2 mappings cascade
// away, no SnippetJob is emitted.
func TestCoordinator_S4_DeletedFile(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	setup := store.CommitPlan{
		UpsertFiles: []domain.File{{ProjectID: 1, Path: "svc/old.go"}},
		NewConnections: []store.PendingConnection{
			{ProjectID: 1, FilePath: "svc/old.go", Connection: domain.Connection{ID: -1, Direction: domain.DirectionOutgoing, StartLine: 1, EndLine: 1, TechnologyName: "HTTP/GET"}},
			{ProjectID: 1, FilePath: "svc/old.go", Connection: domain.Connection{ID: -2, Direction: domain.DirectionIncoming, StartLine: 3, EndLine: 3, TechnologyName: "HTTP/GET"}},
			{ProjectID: 1, FilePath: "svc/old.go", Connection: domain.Connection{ID: -3, Direction: domain.DirectionOutgoing, StartLine: 5, EndLine: 5, TechnologyName: "MessageQueue"}},
		},
		NewMappings: []domain.ConnectionMapping{
			{OutgoingConnectionID: -1, IncomingConnectionID: -2, Confidence: 0.9, TechnologyName: "HTTP/GET"},
			{OutgoingConnectionID: -3, IncomingConnectionID: -2, Confidence: 0.6, TechnologyName: "MessageQueue"},
		},
	}
	if err := s.Commit(ctx, setup); err != nil {
		t.Fatalf("setup commit: %v", err)
	}

	s = appendCheckpointRow(t, path, domain.CheckpointRow{
		ProjectID:  1,
		FilePath:   "svc/old.go",
		ChangeKind: domain.ChangeDeleted,
		OldContent: strPtr("a\nb\nc\nd\ne"),
	})

	sp := &fakeSplitter{failIfCalled: true, t: t}
	co := New(baseConfig(s, sp))
	if err := co.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	_, ok, err := s.FileByPath(ctx, 1, "svc/old.go")
	if err != nil {
		t.Fatalf("FileByPath: %v", err)
	}
	if ok {
		t.Fatalf("expected file to be deleted")
	}

	all, err := s.AllConnections(ctx)
	if err != nil {
		t.Fatalf("AllConnections: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected 0 connections after delete, got %d", len(all))
	}
	if snap := readSnapshotFile(t, path); len(snap.Mappings) != 0 {
		t.Fatalf("expected 0 mappings after delete, got %d", len(snap.Mappings))
	}
}

// S6: Abort on splitter failure. The Splitter fails permanently; no
// connection rows are inserted for the new file and the checkpoint
// row for it remains pending.
func TestCoordinator_S6_AbortOnSplitterFailure(t *testing.T) {
	s, path := newTestStore(t)
	s = appendCheckpointRow(t, path, domain.CheckpointRow{
		ProjectID:  1,
		FilePath:   "svc/queue.go",
		ChangeKind: domain.ChangeAdded,
		NewContent: strPtr("func A() {}"),
	})

	sp := &fakeSplitter{err: splitter.NewPermanentError(errors.New("provider rejected request"))}
	co := New(baseConfig(s, sp))

	err := co.Run(context.Background())
	if err == nil {
		t.Fatalf("expected Run to fail")
	}
	var permErr *splitter.PermanentError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected a *splitter.PermanentError in the chain, got %T: %v", err, err)
	}

	_, ok, ferr := s.FileByPath(context.Background(), 1, "svc/queue.go")
	if ferr != nil {
		t.Fatalf("FileByPath: %v", ferr)
	}
	if ok {
		t.Fatalf("expected no file to have been committed")
	}

	reloaded := store.New(path)
	if err := reloaded.EnsureLoaded(); err != nil {
		t.Fatalf("EnsureLoaded (reload): %v", err)
	}
	rows, err := reloaded.LoadCheckpointRows(context.Background())
	if err != nil {
		t.Fatalf("LoadCheckpointRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected the checkpoint row to remain pending, got %d rows", len(rows))
	}
}

// TestCoordinator_CancelledContextAbortsBeforeSplitting confirms a
// context cancelled before a phase boundary surfaces as the
// dedicated ErrCancelled sentinel (spec §7: "Cancelled: not an
// error"), rather than a generic wrapped context.Canceled, and that
// nothing from the aborted run is committed.
func TestCoordinator_CancelledContextAbortsBeforeSplitting(t *testing.T) {
	s, path := newTestStore(t)
	s = appendCheckpointRow(t, path, domain.CheckpointRow{
		ProjectID:  1,
		FilePath:   "svc/queue.go",
		ChangeKind: domain.ChangeAdded,
		NewContent: strPtr("func A() {}"),
	})

	sp := &fakeSplitter{failIfCalled: true, t: t}
	co := New(baseConfig(s, sp))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := co.Run(ctx)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}

	_, ok, ferr := s.FileByPath(context.Background(), 1, "svc/queue.go")
	if ferr != nil {
		t.Fatalf("FileByPath: %v", ferr)
	}
	if ok {
		t.Fatalf("expected no file to have been committed")
	}

	reloaded := store.New(path)
	if err := reloaded.EnsureLoaded(); err != nil {
		t.Fatalf("EnsureLoaded (reload): %v", err)
	}
	rows, err := reloaded.LoadCheckpointRows(context.Background())
	if err != nil {
		t.Fatalf("LoadCheckpointRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected the checkpoint row to remain pending, got %d rows", len(rows))
	}
}

// L1: No-op idempotence. Running with an empty checkpoint is a
// no-op.
func TestCoordinator_L1_NoOpIdempotence(t *testing.T) {
	s, _ := newTestStore(t)
	sp := &fakeSplitter{failIfCalled: true, t: t}
	co := New(baseConfig(s, sp))

	err := co.Run(context.Background())
	if !errors.Is(err, ErrNothingToDo) {
		t.Fatalf("expected ErrNothingToDo, got %v", err)
	}
}

// L2: Pure-shift idempotence. A modification that only inserts
// lines entirely outside every existing connection's range, well
// past ADJACENCY from its boundaries, leaves every pre-existing
// connection's description/technology_name/code_snippet untouched;
// only its line range shifts, and no SnippetJob (hence no Splitter
// call) is produced.
func TestCoordinator_L2_PureShiftIdempotence(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	oldContent := "line1\nline2\nline3\nline4\nline5\nline6\nline7\nline8\nline9\nline10"
	setup := store.CommitPlan{
		UpsertFiles: []domain.File{{ProjectID: 1, Path: "svc/a.go", ContentHash: "orig"}},
		NewConnections: []store.PendingConnection{
			{ProjectID: 1, FilePath: "svc/a.go", Connection: domain.Connection{
				Direction: domain.DirectionOutgoing, StartLine: 7, EndLine: 8,
				CodeSnippet: "line7\nline8", Description: "calls out", TechnologyName: "HTTP/GET",
			}},
		},
	}
	if err := s.Commit(ctx, setup); err != nil {
		t.Fatalf("setup commit: %v", err)
	}
	f, _, err := s.FileByPath(ctx, 1, "svc/a.go")
	if err != nil {
		t.Fatalf("FileByPath: %v", err)
	}
	conns, err := s.ConnectionsForFile(ctx, f.ID)
	if err != nil || len(conns) != 1 {
		t.Fatalf("setup: expected 1 connection, got %d, err=%v", len(conns), err)
	}
	connID := conns[0].ID

	newContent := "line0\n" + oldContent
	s = appendCheckpointRow(t, path, domain.CheckpointRow{
		ProjectID:  1,
		FilePath:   "svc/a.go",
		ChangeKind: domain.ChangeModified,
		OldContent: strPtr(oldContent),
		NewContent: strPtr(newContent),
	})

	sp := &fakeSplitter{failIfCalled: true, t: t}
	co := New(baseConfig(s, sp))
	if err := co.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	updated, err := s.ConnectionsForFile(ctx, f.ID)
	if err != nil {
		t.Fatalf("ConnectionsForFile: %v", err)
	}
	if len(updated) != 1 {
		t.Fatalf("expected connection to survive, got %d connections", len(updated))
	}
	c := updated[0]
	if c.ID != connID {
		t.Fatalf("expected the same connection ID to survive, got %d want %d", c.ID, connID)
	}
	if c.StartLine != 8 || c.EndLine != 9 {
		t.Fatalf("expected shifted range [8,9], got [%d,%d]", c.StartLine, c.EndLine)
	}
	if c.CodeSnippet != "line7\nline8" || c.Description != "calls out" || c.TechnologyName != "HTTP/GET" {
		t.Fatalf("expected content/description/technology unchanged, got %+v", c)
	}
}
