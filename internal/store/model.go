// Package store implements the persistent Store (spec §4.8, §6): the
// sole shared mutable resource in the core, accessed exclusively
// through its transactional interface. It follows the teacher's
// projectstore.Store dual-backend shape (a Postgres backend via
// database/sql + pgx's stdlib driver, and a JSON-snapshot file
// backend for tests and local runs without a database).
package store

import "connectgraph/internal/domain"

// ConnectionUpdate is a Case-4 survive-shift update: only the line
// range and refreshed snippet change (spec P5: description and
// technology_name are untouched for surviving connections).
type ConnectionUpdate struct {
	ConnectionID int64
	StartLine    int
	EndLine      int
	CodeSnippet  string
}

// PendingConnection is a new Connection identified by the file it
// belongs to, resolved to a file_id inside the commit transaction,
// since an added file's own row may be created in the same commit as
// its connections.
type PendingConnection struct {
	ProjectID  int64
	FilePath   string
	Connection domain.Connection
}

// CommitPlan is everything the Run Coordinator accumulated during one
// run, applied atomically on entry to Committing (spec §4.8). The
// Reconciler, Splitter Driver, and Matcher are pure with respect to
// the store until this plan is built; nothing here is persisted
// until Commit succeeds.
type CommitPlan struct {
	// UpsertFiles are new or content-changed files (added files get
	// a fresh row; modified files get their content_hash refreshed).
	UpsertFiles []domain.File

	// DeleteFileIDs are deleted files; their connections cascade (the
	// connections' foreign key in Postgres, an explicit sweep in the
	// file backend).
	DeleteFileIDs []int64

	SurviveShiftUpdates []ConnectionUpdate
	DeleteConnectionIDs []int64
	NewConnections       []PendingConnection

	// ReplaceMappings, when true, discards every existing
	// ConnectionMapping row before inserting NewMappings. The Matcher
	// recomputes matches globally on every run (spec §4.7: "After all
	// projects are updated, compute matches" over every outgoing
	// connection in any project), so a run's mapping set always
	// replaces the previous one rather than being patched in place.
	ReplaceMappings bool
	NewMappings     []domain.ConnectionMapping

	// ProcessedCheckpointRowIDs are deleted only as part of this same
	// transaction, the correctness core of the fail-safe property
	// (spec §9).
	ProcessedCheckpointRowIDs []int64
}

// resolvePlaceholder rewrites a negative placeholder connection ID
// (assigned by the Coordinator before Matching, since new connections
// have no real ID until Commit inserts them) to its real, post-insert
// ID. IDs that are not placeholders pass through unchanged.
func resolvePlaceholder(id int64, placeholderToReal map[int64]int64) int64 {
	if id >= 0 {
		return id
	}
	if real, ok := placeholderToReal[id]; ok {
		return real
	}
	return id
}
