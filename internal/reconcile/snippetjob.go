// Package reconcile implements the Diff Reconciler (spec §4.4): for
// each modified file it applies a Diff to the file's existing
// Connections, classifying each one via the four-case overlap
// classifier, and emits the three-way output bucket the original's
// mutable-bool-flag connections were redesigned away from (spec §9):
// survive-shift updates, deletions, and SnippetJobs for the Splitter.
package reconcile

// SnippetJob is a unit of code handed to the Splitter: either a
// re-analysis range inside a modified file or the whole content of an
// added file (spec §4.4, §4.6).
type SnippetJob struct {
	ProjectID int64
	FilePath  string
	Language  string

	StartLine int
	EndLine   int
	Code      string

	// PriorDescription carries context into the Splitter when a
	// connection is deleted and re-derived from a range that still
	// contains its original text (Case 3 and Case-4-promoted-to-3).
	PriorDescription *string

	// FromAddedFile distinguishes a whole-file job for a newly added
	// file from a re-analysis range inside a modified file, so the
	// Batch Planner can order modified-file jobs first (spec §4.5).
	FromAddedFile bool
}
