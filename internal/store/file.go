package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"connectgraph/internal/domain"
)

// fileSnapshot is the JSON-serializable shape of the whole store,
// grounded on the teacher's file_backend.go in-memory maps but
// flattened to a single snapshot document since there is no
// per-project partitioning in this domain.
type fileSnapshot struct {
	NextID          int64                      `json:"next_id"`
	Projects        map[int64]domain.Project   `json:"projects"`
	Files           map[int64]domain.File      `json:"files"`
	Connections     map[int64]domain.Connection `json:"connections"`
	Mappings        map[int64]domain.ConnectionMapping `json:"mappings"`
	CheckpointRows  []domain.CheckpointRow     `json:"checkpoint_rows"`
}

func newSnapshot() *fileSnapshot {
	return &fileSnapshot{
		NextID:      1,
		Projects:    make(map[int64]domain.Project),
		Files:       make(map[int64]domain.File),
		Connections: make(map[int64]domain.Connection),
		Mappings:    make(map[int64]domain.ConnectionMapping),
	}
}

func (s *Store) ensureLoadedFile() error {
	var loadErr error
	s.loadOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.snapshot = newSnapshot()

		b, err := os.ReadFile(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			loadErr = err
			return
		}
		if len(b) == 0 {
			return
		}
		if err := json.Unmarshal(b, s.snapshot); err != nil {
			loadErr = err
		}
	})
	return loadErr
}

// writeSnapshotFile persists snap to path via a temp-file-plus-rename
// so a crash or a failed write never leaves a half-written snapshot on
// disk. It takes no lock: callers must only pass a snapshot that is
// not still reachable from a concurrently-mutated *Store.
func writeSnapshotFile(path string, snap *fileSnapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// cloneSnapshot deep-copies the map-valued fields of s so a commit can
// be built up on a scratch copy and discarded on any failure without
// the original ever observing a partial mutation.
func cloneSnapshot(s *fileSnapshot) *fileSnapshot {
	out := &fileSnapshot{
		NextID:      s.NextID,
		Projects:    make(map[int64]domain.Project, len(s.Projects)),
		Files:       make(map[int64]domain.File, len(s.Files)),
		Connections: make(map[int64]domain.Connection, len(s.Connections)),
		Mappings:    make(map[int64]domain.ConnectionMapping, len(s.Mappings)),
	}
	for k, v := range s.Projects {
		out.Projects[k] = v
	}
	for k, v := range s.Files {
		out.Files[k] = v
	}
	for k, v := range s.Connections {
		out.Connections[k] = v
	}
	for k, v := range s.Mappings {
		out.Mappings[k] = v
	}
	out.CheckpointRows = append([]domain.CheckpointRow(nil), s.CheckpointRows...)
	return out
}

func (s *Store) loadCheckpointRowsFile() ([]domain.CheckpointRow, error) {
	if err := s.ensureLoadedFile(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.CheckpointRow(nil), s.snapshot.CheckpointRows...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) fileByPathFile(projectID int64, path string) (domain.File, bool, error) {
	if err := s.ensureLoadedFile(); err != nil {
		return domain.File{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.snapshot.Files {
		if f.ProjectID == projectID && f.Path == path {
			return f, true, nil
		}
	}
	return domain.File{}, false, nil
}

func (s *Store) connectionsForFileFile(fileID int64) ([]domain.Connection, error) {
	if err := s.ensureLoadedFile(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Connection
	for _, c := range s.snapshot.Connections {
		if c.FileID == fileID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) allConnectionsFile() ([]ConnectionWithProject, error) {
	if err := s.ensureLoadedFile(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ConnectionWithProject
	for _, c := range s.snapshot.Connections {
		if f, ok := s.snapshot.Files[c.FileID]; ok {
			out = append(out, ConnectionWithProject{Connection: c, ProjectID: f.ProjectID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Connection.ID < out[j].Connection.ID })
	return out, nil
}

func (s *Store) projectDescriptionFile(projectID int64) (string, error) {
	if err := s.ensureLoadedFile(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.snapshot.Projects[projectID]; ok {
		return p.Description, nil
	}
	return "", nil
}

// commitFile applies plan to a scratch copy of the snapshot and only
// makes it visible, in memory and on disk, once every step has
// succeeded. A failure at any point (a dangling reference in the
// plan, a marshal error, a disk write error) leaves s.snapshot and
// the on-disk file exactly as they were before the call (spec §7:
// "Any write error aborts the whole run; the store is left in the
// pre-run state").
func (s *Store) commitFile(plan CommitPlan) error {
	if err := s.ensureLoadedFile(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneSnapshot(s.snapshot)
	if err := applyCommitPlan(next, plan); err != nil {
		return err
	}
	if err := writeSnapshotFile(s.path, next); err != nil {
		return err
	}
	s.snapshot = next
	return nil
}

// applyCommitPlan mutates snap in place according to plan. It is only
// ever called on a scratch clone, never on a *Store's live snapshot
// directly, so a returned error never corrupts committed state.
func applyCommitPlan(snap *fileSnapshot, plan CommitPlan) error {
	fileIDs := make(map[string]int64)
	for _, f := range plan.UpsertFiles {
		id, existing := findFileID(snap, f.ProjectID, f.Path)
		if !existing {
			id = snap.NextID
			snap.NextID++
			f.ID = id
		} else {
			f.ID = id
		}
		snap.Files[id] = f
		fileIDs[fileKey(f.ProjectID, f.Path)] = id
	}

	for _, id := range plan.DeleteFileIDs {
		delete(snap.Files, id)
		for cid, c := range snap.Connections {
			if c.FileID == id {
				delete(snap.Connections, cid)
			}
		}
	}

	for _, u := range plan.SurviveShiftUpdates {
		c, ok := snap.Connections[u.ConnectionID]
		if !ok {
			return fmt.Errorf("store: survive-shift update references missing connection %d", u.ConnectionID)
		}
		c.StartLine = u.StartLine
		c.EndLine = u.EndLine
		c.CodeSnippet = u.CodeSnippet
		snap.Connections[u.ConnectionID] = c
	}

	for _, id := range plan.DeleteConnectionIDs {
		delete(snap.Connections, id)
	}
	if plan.ReplaceMappings {
		snap.Mappings = make(map[int64]domain.ConnectionMapping)
	} else {
		for id, m := range snap.Mappings {
			if _, gone := snap.Connections[m.OutgoingConnectionID]; gone {
				delete(snap.Mappings, id)
				continue
			}
			if _, gone := snap.Connections[m.IncomingConnectionID]; gone {
				delete(snap.Mappings, id)
			}
		}
	}

	placeholderToReal := make(map[int64]int64, len(plan.NewConnections))
	for _, pc := range plan.NewConnections {
		fileID, ok := fileIDs[fileKey(pc.ProjectID, pc.FilePath)]
		if !ok {
			fileID, ok = findFileID(snap, pc.ProjectID, pc.FilePath)
			if !ok {
				return fmt.Errorf("store: new connection references unknown file %s in project %d", pc.FilePath, pc.ProjectID)
			}
		}
		id := snap.NextID
		snap.NextID++
		conn := pc.Connection
		placeholder := conn.ID
		conn.ID = id
		conn.FileID = fileID
		snap.Connections[id] = conn
		if placeholder < 0 {
			placeholderToReal[placeholder] = id
		}
	}

	for _, m := range plan.NewMappings {
		id := snap.NextID
		snap.NextID++
		m.ID = id
		m.OutgoingConnectionID = resolvePlaceholder(m.OutgoingConnectionID, placeholderToReal)
		m.IncomingConnectionID = resolvePlaceholder(m.IncomingConnectionID, placeholderToReal)
		snap.Mappings[id] = m
	}

	processed := make(map[int64]bool, len(plan.ProcessedCheckpointRowIDs))
	for _, id := range plan.ProcessedCheckpointRowIDs {
		processed[id] = true
	}
	remaining := snap.CheckpointRows[:0:0]
	for _, r := range snap.CheckpointRows {
		if !processed[r.ID] {
			remaining = append(remaining, r)
		}
	}
	snap.CheckpointRows = remaining

	return nil
}

func findFileID(snap *fileSnapshot, projectID int64, path string) (int64, bool) {
	for id, f := range snap.Files {
		if f.ProjectID == projectID && f.Path == path {
			return id, true
		}
	}
	return 0, false
}
