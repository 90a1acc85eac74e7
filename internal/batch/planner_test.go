package batch

import (
	"testing"

	"connectgraph/internal/reconcile"
)

func job(startLine, endLine int, added bool) reconcile.SnippetJob {
	return reconcile.SnippetJob{StartLine: startLine, EndLine: endLine, FromAddedFile: added}
}

func TestPlan_SingleJobOverBudgetGetsOwnBatch(t *testing.T) {
	jobs := map[int64][]reconcile.SnippetJob{
		1: {job(1, 10000, false)},
	}
	batches := Plan(jobs, 5000)
	if len(batches) != 1 || len(batches[0].Jobs) != 1 {
		t.Fatalf("expected 1 batch with the oversized job alone, got %+v", batches)
	}
}

func TestPlan_PacksUnderBudget(t *testing.T) {
	jobs := map[int64][]reconcile.SnippetJob{
		1: {job(1, 2000, false), job(1, 2000, false), job(1, 2000, false)},
	}
	batches := Plan(jobs, 5000)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches (4000 then 2000), got %d: %+v", len(batches), batches)
	}
	if len(batches[0].Jobs) != 2 || len(batches[1].Jobs) != 1 {
		t.Fatalf("unexpected packing: %+v", batches)
	}
}

func TestPlan_ModifiedBeforeAdded(t *testing.T) {
	jobs := map[int64][]reconcile.SnippetJob{
		1: {job(1, 10, true), job(1, 10, false)},
	}
	batches := Plan(jobs, 5000)
	if len(batches) != 1 || len(batches[0].Jobs) != 2 {
		t.Fatalf("expected 1 batch with both jobs, got %+v", batches)
	}
	if batches[0].Jobs[0].FromAddedFile {
		t.Fatalf("expected modified-file job first, got %+v", batches[0].Jobs)
	}
}

func TestPlan_ProjectsDoNotShareBatches(t *testing.T) {
	jobs := map[int64][]reconcile.SnippetJob{
		1: {job(1, 10, false)},
		2: {job(1, 10, false)},
	}
	batches := Plan(jobs, 5000)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches (one per project), got %d", len(batches))
	}
	if batches[0].ProjectID == batches[1].ProjectID {
		t.Fatalf("expected distinct projects, got %+v", batches)
	}
}
