// Package domain holds the core entities of the connection graph
// (spec §3): projects, files, connections, mappings, and the
// checkpoint rows that drive an incremental run.
package domain

// Direction is which way a Connection's integration point faces.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Project is created once when a project is first indexed and never
// mutated by the core (spec §3).
type Project struct {
	ID          int64
	Name        string
	RootPath    string
	Description string
}

// File is unique by (ProjectID, Path).
type File struct {
	ID          int64
	ProjectID   int64
	Path        string
	Language    string
	ContentHash string
}

// Connection is a single inbound or outbound external integration
// point attributed to a line range in one file (spec §3, invariants
// I1-I3).
type Connection struct {
	ID             int64
	FileID         int64
	Direction      Direction
	StartLine      int
	EndLine        int
	CodeSnippet    string
	Description    string
	TechnologyName string
}

// ConnectionMapping links one outgoing Connection to one incoming
// Connection, with a confidence score (spec §3).
type ConnectionMapping struct {
	ID                   int64
	OutgoingConnectionID int64
	IncomingConnectionID int64
	Confidence           float64
	TechnologyName       string
	Rationale            string
}

// ChangeKind is the kind of edit recorded by a CheckpointRow.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// CheckpointRow is a single pending file-change row written by an
// external watcher/editor (spec §3, §6).
type CheckpointRow struct {
	ID          int64
	ProjectID   int64
	FilePath    string
	ChangeKind  ChangeKind
	OldContent  *string
	NewContent  *string
}
