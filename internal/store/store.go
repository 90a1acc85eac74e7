package store

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"connectgraph/internal/domain"
)

// Store is the dual-backend handle the Coordinator is given at run
// start (spec §5: "explicit store handle passed into the
// Coordinator"). A nil db selects the file-backed snapshot.
type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	mu       sync.RWMutex
	snapshot *fileSnapshot

	schemaOnce sync.Once
	schemaErr  error

	connectionCache *lru.Cache[int64, []domain.Connection]
}

// New returns a file-backed store reading/writing a JSON snapshot at
// path.
func New(path string) *Store {
	return &Store{path: path}
}

// NewPostgres opens a Postgres-backed store over dsn using the pgx
// stdlib driver, matching the teacher's projectstore.NewPostgres.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[int64, []domain.Connection](4096)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, connectionCache: cache}, nil
}

// NewFromEnv opens a Postgres-backed store if CONNECTGRAPH_DATABASE_URL
// (or the legacy PROJECT_STORE_PG_DSN name the teacher used) is set,
// falling back to the file backend at path otherwise.
func NewFromEnv(path string) *Store {
	dsn := strings.TrimSpace(os.Getenv("CONNECTGRAPH_DATABASE_URL"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("PROJECT_STORE_PG_DSN"))
	}
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(path)
	}
	return s
}

// EnsureLoaded prepares the backend for use: creates the Postgres
// schema if needed, or loads the file snapshot into memory.
func (s *Store) EnsureLoaded() error {
	if s.db != nil {
		return s.ensureSchema()
	}
	return s.ensureLoadedFile()
}

// LoadCheckpointRows returns every pending checkpoint row (spec §6
// input table), read-consume-delete: rows are only removed inside
// Commit.
func (s *Store) LoadCheckpointRows(ctx context.Context) ([]domain.CheckpointRow, error) {
	if s.db != nil {
		return s.loadCheckpointRowsDB(ctx)
	}
	return s.loadCheckpointRowsFile()
}

// FileByPath returns the current File row for (projectID, path), if
// any.
func (s *Store) FileByPath(ctx context.Context, projectID int64, path string) (domain.File, bool, error) {
	if s.db != nil {
		return s.fileByPathDB(ctx, projectID, path)
	}
	return s.fileByPathFile(projectID, path)
}

// ConnectionsForFile returns every Connection anchored in fileID.
func (s *Store) ConnectionsForFile(ctx context.Context, fileID int64) ([]domain.Connection, error) {
	if s.db != nil {
		if s.connectionCache != nil {
			if cached, ok := s.connectionCache.Get(fileID); ok {
				return cached, nil
			}
		}
		conns, err := s.connectionsForFileDB(ctx, fileID)
		if err != nil {
			return nil, err
		}
		if s.connectionCache != nil {
			s.connectionCache.Add(fileID, conns)
		}
		return conns, nil
	}
	return s.connectionsForFileFile(fileID)
}

// AllConnections returns every Connection across every project, for
// the Matcher's global pass (spec §4.7: "After all projects are
// updated...").
func (s *Store) AllConnections(ctx context.Context) ([]ConnectionWithProject, error) {
	if s.db != nil {
		return s.allConnectionsDB(ctx)
	}
	return s.allConnectionsFile()
}

// ProjectDescription implements the project description source
// (spec §6 inbound interface) directly off the project row.
func (s *Store) ProjectDescription(ctx context.Context, projectID int64) (string, error) {
	if s.db != nil {
		return s.projectDescriptionDB(ctx, projectID)
	}
	return s.projectDescriptionFile(projectID)
}

// Commit applies plan atomically: survive-shift updates, deletes,
// new connections, new mappings, and checkpoint row deletions all
// happen inside one transaction (spec §4.8). On any failure nothing
// is persisted and the checkpoint rows remain pending.
func (s *Store) Commit(ctx context.Context, plan CommitPlan) error {
	if s.db != nil {
		if s.connectionCache != nil {
			s.connectionCache.Purge()
		}
		return s.commitDB(ctx, plan)
	}
	return s.commitFile(plan)
}

// ConnectionWithProject pairs a Connection with the project it
// belongs to, resolved via its File's project_id, for the Matcher.
type ConnectionWithProject struct {
	Connection domain.Connection
	ProjectID  int64
}
