package reconcile

import (
	"sort"
	"strings"

	"connectgraph/internal/diffing"
	"connectgraph/internal/domain"
)

// SurviveUpdate is a Case-4 connection whose line range shifted but
// whose content, description, and technology_name are unchanged
// (spec P5).
type SurviveUpdate struct {
	ConnectionID       int64
	NewStartLine       int
	NewEndLine         int
	RefreshedCodeSnippet string
}

// Outcome is the Reconciler's three-way output bucket (spec §9): it
// replaces the original's mutable bool flags on domain entities. The
// Reconciler itself never touches the store; the Coordinator applies
// this outcome inside the final commit.
type Outcome struct {
	SurviveShift []SurviveUpdate
	Delete       []int64
	Jobs         []SnippetJob
}

func (o *Outcome) merge(other Outcome) {
	o.SurviveShift = append(o.SurviveShift, other.SurviveShift...)
	o.Delete = append(o.Delete, other.Delete...)
	o.Jobs = append(o.Jobs, other.Jobs...)
}

// lineSlice extracts 1-indexed inclusive lines [lo,hi] from content,
// splitting the same way diffing.Compute does (no synthetic trailing
// empty line).
func lineSlice(content string, lo, hi int) string {
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if lo < 1 {
		lo = 1
	}
	if hi > len(lines) {
		hi = len(lines)
	}
	if lo > hi || lo > len(lines) {
		return ""
	}
	return strings.Join(lines[lo-1:hi], "\n")
}

// ReconcileModifiedFile applies diff to every connection anchored in
// the file and to the file's freshly-inserted lines, producing the
// three-way outcome described in §4.4. connections must belong to the
// same file and are processed in ascending connection-ID order per
// the ordering guarantee in §5.
func ReconcileModifiedFile(projectID int64, filePath, language string, oldContent, newContent string, diff diffing.Diff, connections []domain.Connection, adjacency int) Outcome {
	sorted := append([]domain.Connection(nil), connections...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	oldLines := strings.Split(oldContent, "\n")
	if len(oldLines) > 0 && oldLines[len(oldLines)-1] == "" {
		oldLines = oldLines[:len(oldLines)-1]
	}
	oldMax := len(oldLines)

	var out Outcome
	covered := make(map[int]bool) // new-side lines already accounted for by a connection or its job

	for _, conn := range sorted {
		c := classifyConnection(conn.StartLine, conn.EndLine, diff, adjacency, oldMax, conn.Description)
		switch c.kind {
		case caseGone:
			out.Delete = append(out.Delete, conn.ID)

		case caseFour:
			refreshed := lineSlice(newContent, c.newLo, c.newHi)
			if refreshed == conn.CodeSnippet {
				out.SurviveShift = append(out.SurviveShift, SurviveUpdate{
					ConnectionID:         conn.ID,
					NewStartLine:         c.newLo,
					NewEndLine:           c.newHi,
					RefreshedCodeSnippet: refreshed,
				})
				for l := c.newLo; l <= c.newHi; l++ {
					covered[l] = true
				}
			} else {
				// Promote to Case 3: byte-exact mismatch means the
				// stored snippet no longer reflects reality even
				// though no replaced range touched it directly.
				out.Delete = append(out.Delete, conn.ID)
				desc := conn.Description
				out.Jobs = append(out.Jobs, SnippetJob{
					ProjectID:        projectID,
					FilePath:         filePath,
					Language:         language,
					StartLine:        c.newLo,
					EndLine:          c.newHi,
					Code:             refreshed,
					PriorDescription: &desc,
				})
				for l := c.newLo; l <= c.newHi; l++ {
					covered[l] = true
				}
			}

		case caseOne, caseTwo, caseThree:
			out.Delete = append(out.Delete, conn.ID)
			out.Jobs = append(out.Jobs, SnippetJob{
				ProjectID:        projectID,
				FilePath:         filePath,
				Language:         language,
				StartLine:        c.newLo,
				EndLine:          c.newHi,
				Code:             lineSlice(newContent, c.newLo, c.newHi),
				PriorDescription: c.priorDescription,
			})
			for l := c.newLo; l <= c.newHi; l++ {
				covered[l] = true
			}
		}
	}

	out.Jobs = append(out.Jobs, standaloneAddedRuns(projectID, filePath, language, newContent, diff, covered, adjacency)...)
	return out
}

// standaloneAddedRuns emits one SnippetJob per maximal run of
// consecutive added lines not already covered by a connection's
// reconciled range, extended by ADJACENCY (spec §4.4 final
// paragraph).
func standaloneAddedRuns(projectID int64, filePath, language, newContent string, diff diffing.Diff, covered map[int]bool, adjacency int) []SnippetJob {
	var lines []int
	for l := range diff.Added {
		if !covered[l] {
			lines = append(lines, l)
		}
	}
	sort.Ints(lines)

	var jobs []SnippetJob
	i := 0
	for i < len(lines) {
		lo, hi := lines[i], lines[i]
		j := i + 1
		for j < len(lines) && lines[j] <= hi+1 {
			hi = lines[j]
			j++
		}
		lo, hi = extendByAdjacency(lo, hi, diff.Added, adjacency)
		jobs = append(jobs, SnippetJob{
			ProjectID: projectID,
			FilePath:  filePath,
			Language:  language,
			StartLine: lo,
			EndLine:   hi,
			Code:      lineSlice(newContent, lo, hi),
		})
		i = j
	}
	return jobs
}

// ReconcileAddedFile produces the single whole-file SnippetJob for a
// newly added file (spec §4.4: "Added files contribute one SnippetJob
// covering the entire new content.").
func ReconcileAddedFile(projectID int64, filePath, language, content string) SnippetJob {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return SnippetJob{
		ProjectID:     projectID,
		FilePath:      filePath,
		Language:      language,
		StartLine:     1,
		EndLine:       len(lines),
		Code:          content,
		FromAddedFile: true,
	}
}

// ReconcileDeletedFile returns the IDs of every connection anchored
// in a deleted file, to be deleted with cascading mappings at commit
// time. No SnippetJob is produced (spec §4.4).
func ReconcileDeletedFile(connections []domain.Connection) []int64 {
	ids := make([]int64, 0, len(connections))
	for _, c := range connections {
		ids = append(ids, c.ID)
	}
	return ids
}
