package store

import (
	"context"
	"database/sql"
	"fmt"

	"connectgraph/internal/domain"
)

func (s *Store) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS projects (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  root_path TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS files (
  id BIGSERIAL PRIMARY KEY,
  project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  path TEXT NOT NULL,
  language TEXT NOT NULL DEFAULT '',
  content_hash TEXT NOT NULL DEFAULT '',
  UNIQUE (project_id, path)
);

CREATE TABLE IF NOT EXISTS connections (
  id BIGSERIAL PRIMARY KEY,
  file_id BIGINT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  direction TEXT NOT NULL CHECK (direction IN ('incoming','outgoing')),
  start_line INTEGER NOT NULL,
  end_line INTEGER NOT NULL,
  code_snippet TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  technology_name TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_connections_file_id ON connections (file_id);

CREATE TABLE IF NOT EXISTS connection_mappings (
  id BIGSERIAL PRIMARY KEY,
  outgoing_id BIGINT NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
  incoming_id BIGINT NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
  confidence DOUBLE PRECISION NOT NULL,
  technology_name TEXT NOT NULL DEFAULT '',
  rationale TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS checkpoint_rows (
  id BIGSERIAL PRIMARY KEY,
  project_id BIGINT NOT NULL,
  file_path TEXT NOT NULL,
  change_kind TEXT NOT NULL CHECK (change_kind IN ('added','modified','deleted')),
  old_content TEXT,
  new_content TEXT,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`)
	})
	return s.schemaErr
}

func (s *Store) loadCheckpointRowsDB(ctx context.Context) ([]domain.CheckpointRow, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, project_id, file_path, change_kind, old_content, new_content
FROM checkpoint_rows ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CheckpointRow
	for rows.Next() {
		var r domain.CheckpointRow
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.FilePath, &r.ChangeKind, &r.OldContent, &r.NewContent); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) fileByPathDB(ctx context.Context, projectID int64, path string) (domain.File, bool, error) {
	if err := s.ensureSchema(); err != nil {
		return domain.File{}, false, err
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, project_id, path, language, content_hash
FROM files WHERE project_id = $1 AND path = $2`, projectID, path)
	var f domain.File
	if err := row.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Language, &f.ContentHash); err != nil {
		if err == sql.ErrNoRows {
			return domain.File{}, false, nil
		}
		return domain.File{}, false, err
	}
	return f, true, nil
}

func (s *Store) connectionsForFileDB(ctx context.Context, fileID int64) ([]domain.Connection, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, file_id, direction, start_line, end_line, code_snippet, description, technology_name
FROM connections WHERE file_id = $1 ORDER BY id ASC`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Connection
	for rows.Next() {
		var c domain.Connection
		if err := rows.Scan(&c.ID, &c.FileID, &c.Direction, &c.StartLine, &c.EndLine, &c.CodeSnippet, &c.Description, &c.TechnologyName); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) allConnectionsDB(ctx context.Context) ([]ConnectionWithProject, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, c.file_id, c.direction, c.start_line, c.end_line, c.code_snippet, c.description, c.technology_name, f.project_id
FROM connections c JOIN files f ON f.id = c.file_id
ORDER BY c.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConnectionWithProject
	for rows.Next() {
		var cp ConnectionWithProject
		c := &cp.Connection
		if err := rows.Scan(&c.ID, &c.FileID, &c.Direction, &c.StartLine, &c.EndLine, &c.CodeSnippet, &c.Description, &c.TechnologyName, &cp.ProjectID); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *Store) projectDescriptionDB(ctx context.Context, projectID int64) (string, error) {
	if err := s.ensureSchema(); err != nil {
		return "", err
	}
	var desc string
	err := s.db.QueryRowContext(ctx, `SELECT description FROM projects WHERE id = $1`, projectID).Scan(&desc)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return desc, err
}

func (s *Store) commitDB(ctx context.Context, plan CommitPlan) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	fileIDs := make(map[string]int64) // "projectID:path" -> id

	for _, f := range plan.UpsertFiles {
		var id int64
		err := tx.QueryRowContext(ctx, `
INSERT INTO files (project_id, path, language, content_hash)
VALUES ($1, $2, $3, $4)
ON CONFLICT (project_id, path)
DO UPDATE SET language = EXCLUDED.language, content_hash = EXCLUDED.content_hash
RETURNING id`, f.ProjectID, f.Path, f.Language, f.ContentHash).Scan(&id)
		if err != nil {
			return err
		}
		fileIDs[fileKey(f.ProjectID, f.Path)] = id
	}

	for _, id := range plan.DeleteFileIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id); err != nil {
			return err
		}
	}

	for _, u := range plan.SurviveShiftUpdates {
		if _, err := tx.ExecContext(ctx, `
UPDATE connections SET start_line = $2, end_line = $3, code_snippet = $4
WHERE id = $1`, u.ConnectionID, u.StartLine, u.EndLine, u.CodeSnippet); err != nil {
			return err
		}
	}

	for _, id := range plan.DeleteConnectionIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id); err != nil {
			return err
		}
	}

	// placeholderToReal resolves the negative placeholder IDs the
	// Coordinator assigns to not-yet-persisted connections (so the
	// Matcher can run before Committing) to their real row IDs.
	placeholderToReal := make(map[int64]int64, len(plan.NewConnections))
	for _, pc := range plan.NewConnections {
		fileID, ok := fileIDs[fileKey(pc.ProjectID, pc.FilePath)]
		if !ok {
			row := tx.QueryRowContext(ctx, `SELECT id FROM files WHERE project_id = $1 AND path = $2`, pc.ProjectID, pc.FilePath)
			if err := row.Scan(&fileID); err != nil {
				return err
			}
		}
		var id int64
		err := tx.QueryRowContext(ctx, `
INSERT INTO connections (file_id, direction, start_line, end_line, code_snippet, description, technology_name)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`, fileID, pc.Connection.Direction, pc.Connection.StartLine, pc.Connection.EndLine,
			pc.Connection.CodeSnippet, pc.Connection.Description, pc.Connection.TechnologyName).Scan(&id)
		if err != nil {
			return err
		}
		if pc.Connection.ID < 0 {
			placeholderToReal[pc.Connection.ID] = id
		}
	}

	if plan.ReplaceMappings {
		if _, err := tx.ExecContext(ctx, `DELETE FROM connection_mappings`); err != nil {
			return err
		}
	}

	for _, m := range plan.NewMappings {
		outID := resolvePlaceholder(m.OutgoingConnectionID, placeholderToReal)
		inID := resolvePlaceholder(m.IncomingConnectionID, placeholderToReal)
		if _, err := tx.ExecContext(ctx, `
INSERT INTO connection_mappings (outgoing_id, incoming_id, confidence, technology_name, rationale)
VALUES ($1, $2, $3, $4, $5)`, outID, inID, m.Confidence, m.TechnologyName, m.Rationale); err != nil {
			return err
		}
	}

	for _, id := range plan.ProcessedCheckpointRowIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint_rows WHERE id = $1`, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func fileKey(projectID int64, path string) string {
	return fmt.Sprintf("%d:%s", projectID, path)
}
