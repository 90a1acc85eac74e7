// Package splitter implements the Splitter Driver (spec §4.6): the
// outbound interface to the external, LLM-backed code-to-connections
// service, and the driver that turns batches of SnippetJobs into
// persisted Connection rows.
package splitter

import (
	"context"

	"connectgraph/internal/domain"
)

// SnippetRequest is one unit of code sent to the Splitter, mirroring
// reconcile.SnippetJob without importing that package's batching
// concerns into the wire contract.
type SnippetRequest struct {
	SourceIndex      int
	FilePath         string
	Language         string
	StartLine        int
	EndLine          int
	Code             string
	PriorDescription *string
}

// Request is the outbound Splitter call for one batch (spec §6).
type Request struct {
	ProjectDescription string
	Snippets            []SnippetRequest
}

// DerivedConnection is one connection the Splitter extracted from a
// snippet, keyed back to the snippet it came from by SourceIndex.
type DerivedConnection struct {
	SourceIndex    int
	Direction      domain.Direction
	StartLine      int
	EndLine        int
	CodeSnippet    string
	Description    string
	TechnologyName string
}

// Response is the Splitter's reply to one batch.
type Response struct {
	Connections []DerivedConnection
}

// Splitter is the interface the core treats as a pure function up to
// retries (spec §6). Implementations are interchangeable.
type Splitter interface {
	Name() string
	Split(ctx context.Context, req Request) (Response, error)
	Close() error
}
