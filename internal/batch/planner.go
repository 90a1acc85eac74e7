// Package batch implements the Batch Planner (spec §4.5): it packs
// per-project SnippetJob lists into budget-bounded batches for the
// Splitter Driver. It is a simplified descendant of the teacher's
// HeavierStartScheduler greedy bin-packer, simplified because
// SnippetJobs carry no dependency edges, so there is nothing to
// schedule around, only a capacity constraint to respect.
package batch

import (
	"sort"

	"connectgraph/internal/reconcile"
)

// Batch is an ordered group of SnippetJobs whose combined line count
// does not exceed the configured budget, except when a single job
// alone exceeds it.
type Batch struct {
	ProjectID int64
	Jobs      []reconcile.SnippetJob
}

func jobLines(j reconcile.SnippetJob) int {
	n := j.EndLine - j.StartLine + 1
	if n < 1 {
		return 1
	}
	return n
}

// Plan packs jobsByProject into batches respecting budget, following
// the ordering rule in §4.5: modified-file jobs before added-file
// jobs within a project; projects never share a batch, and the order
// across projects is unspecified.
func Plan(jobsByProject map[int64][]reconcile.SnippetJob, budget int) []Batch {
	projectIDs := make([]int64, 0, len(jobsByProject))
	for pid := range jobsByProject {
		projectIDs = append(projectIDs, pid)
	}
	sort.Slice(projectIDs, func(i, j int) bool { return projectIDs[i] < projectIDs[j] })

	var batches []Batch
	for _, pid := range projectIDs {
		jobs := orderWithinProject(jobsByProject[pid])
		batches = append(batches, packProject(pid, jobs, budget)...)
	}
	return batches
}

// orderWithinProject places modified-file jobs ahead of added-file
// jobs, preserving the relative order the reconciler produced them in
// otherwise (stable sort).
func orderWithinProject(jobs []reconcile.SnippetJob) []reconcile.SnippetJob {
	ordered := append([]reconcile.SnippetJob(nil), jobs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return !ordered[i].FromAddedFile && ordered[j].FromAddedFile
	})
	return ordered
}

// packProject greedily fills batches up to budget, opening a new
// batch whenever the next job would exceed it; a job that alone
// exceeds budget gets its own batch (spec §4.5).
func packProject(projectID int64, jobs []reconcile.SnippetJob, budget int) []Batch {
	var batches []Batch
	var current []reconcile.SnippetJob
	currentLines := 0

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, Batch{ProjectID: projectID, Jobs: current})
			current = nil
			currentLines = 0
		}
	}

	for _, j := range jobs {
		n := jobLines(j)
		if n > budget {
			flush()
			batches = append(batches, Batch{ProjectID: projectID, Jobs: []reconcile.SnippetJob{j}})
			continue
		}
		if currentLines+n > budget {
			flush()
		}
		current = append(current, j)
		currentLines += n
	}
	flush()

	return batches
}
