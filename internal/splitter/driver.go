package splitter

import (
	"context"
	"fmt"
	"strings"

	"connectgraph/internal/batch"
	"connectgraph/internal/domain"
	"connectgraph/internal/matcher"
)

// ContentLookup resolves the current content of a file within a
// project, used to validate a Splitter's returned code_snippet
// against reality before persisting (spec §4.6).
type ContentLookup func(ctx context.Context, projectID int64, filePath string) (string, error)

// MismatchError reports that a Splitter returned a code_snippet that
// does not match the file's current content at the claimed line
// range. This is fatal and aborts the run (spec §4.6).
type MismatchError struct {
	FilePath           string
	StartLine, EndLine int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("splitter: returned code_snippet does not match current content of %s at [%d,%d]", e.FilePath, e.StartLine, e.EndLine)
}

// Derived pairs a persisted-ready Connection with the file it belongs
// to, since the Connection itself carries no path (only a FileID
// resolved later by the store at commit time).
type Derived struct {
	FilePath   string
	Connection domain.Connection
}

// Drive runs one batch through s, validates every returned connection
// against the file's current content, and returns the Connection
// rows to persist. A batch is all-or-nothing: any validation or
// provider failure discards the entire batch's results.
func Drive(ctx context.Context, s Splitter, b batch.Batch, projectDescription string, lookup ContentLookup) ([]Derived, error) {
	req := Request{ProjectDescription: projectDescription}
	for i, j := range b.Jobs {
		req.Snippets = append(req.Snippets, SnippetRequest{
			SourceIndex:      i,
			FilePath:         j.FilePath,
			Language:         j.Language,
			StartLine:        j.StartLine,
			EndLine:          j.EndLine,
			Code:             j.Code,
			PriorDescription: j.PriorDescription,
		})
	}

	resp, err := s.Split(ctx, req)
	if err != nil {
		return nil, err
	}

	contentCache := make(map[string]string)
	derived := make([]Derived, 0, len(resp.Connections))
	for _, dc := range resp.Connections {
		if dc.SourceIndex < 0 || dc.SourceIndex >= len(b.Jobs) {
			return nil, fmt.Errorf("splitter: connection references out-of-range source_index %d", dc.SourceIndex)
		}
		job := b.Jobs[dc.SourceIndex]

		content, ok := contentCache[job.FilePath]
		if !ok {
			content, err = lookup(ctx, b.ProjectID, job.FilePath)
			if err != nil {
				return nil, err
			}
			contentCache[job.FilePath] = content
		}

		if !matchesContent(content, dc.StartLine, dc.EndLine, dc.CodeSnippet) {
			return nil, &MismatchError{FilePath: job.FilePath, StartLine: dc.StartLine, EndLine: dc.EndLine}
		}

		derived = append(derived, Derived{
			FilePath: job.FilePath,
			Connection: domain.Connection{
				Direction:      dc.Direction,
				StartLine:      dc.StartLine,
				EndLine:        dc.EndLine,
				CodeSnippet:    dc.CodeSnippet,
				Description:    dc.Description,
				TechnologyName: matcher.NormalizeTechnology(dc.TechnologyName),
			},
		})
	}

	return derived, nil
}

// matchesContent reports whether content's 1-indexed inclusive
// [startLine,endLine] slice equals snippet exactly (spec §4.6: a
// verbatim code_snippet the driver validates byte-exact).
func matchesContent(content string, startLine, endLine int, snippet string) bool {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if startLine < 1 || endLine > len(lines) || startLine > endLine {
		return false
	}
	return strings.Join(lines[startLine-1:endLine], "\n") == snippet
}
