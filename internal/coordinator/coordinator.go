// Package coordinator implements the Run Coordinator (spec §4.8): the
// state machine that drives one incremental indexing run end to end:
// Loading the checkpoint, Diffing and Reconciling each changed file,
// Splitting the resulting SnippetJobs in budgeted batches, Matching
// the resulting connections across projects, and Committing
// everything atomically. Nothing reaches the store until Committing;
// every earlier stage is pure with respect to persisted state.
package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"connectgraph/internal/batch"
	"connectgraph/internal/checkpoint"
	"connectgraph/internal/diffing"
	"connectgraph/internal/domain"
	"connectgraph/internal/matcher"
	"connectgraph/internal/projectdesc"
	"connectgraph/internal/reconcile"
	"connectgraph/internal/splitter"
	"connectgraph/internal/store"
)

// Config is the immutable per-run configuration (spec §6).
type Config struct {
	Store       *store.Store
	Splitter    splitter.Splitter
	ProjectDesc projectdesc.Source

	BatchLineBudget    int
	AdjacencyThreshold int
	MatcherThreshold   float64
	CPUWorkers         int
}

func (c *Config) setDefaults() {
	if c.BatchLineBudget <= 0 {
		c.BatchLineBudget = 5000
	}
	if c.AdjacencyThreshold <= 0 {
		c.AdjacencyThreshold = 3
	}
	if c.MatcherThreshold <= 0 {
		c.MatcherThreshold = 0.5
	}
}

// Coordinator runs the C8 state machine.
type Coordinator struct {
	cfg Config
}

func New(cfg Config) *Coordinator {
	cfg.setDefaults()
	return &Coordinator{cfg: cfg}
}

// fileOutcome is the per-file product of Diffing+Reconciling, fanned
// out over the worker pool and folded back sequentially.
type fileOutcome struct {
	key         domain.FileKey
	upsertFile  *domain.File
	content     string // post-change content, for the Splitter content lookup
	deleteFile  bool
	deleteFileID int64
	surviveShift []reconcile.SurviveUpdate
	deleteConns  []int64
	jobs         []reconcile.SnippetJob
}

// Run executes one end-to-end indexing run. It returns ErrNothingToDo
// when the checkpoint queue is empty, and otherwise either nil on a
// fully committed run or the first fatal error encountered (the
// pending checkpoint is left untouched, per spec §7's propagation
// policy).
func (c *Coordinator) Run(ctx context.Context) error {
	runID := uuid.New()
	log.Printf("coordinator[%s]: state=Loading", runID)
	changeSet, rowIDs, err := checkpoint.Load(ctx, c.cfg.Store)
	if err != nil {
		return err
	}
	if len(changeSet.Changes) == 0 {
		return ErrNothingToDo
	}

	keys := make([]domain.FileKey, 0, len(changeSet.Changes))
	for k := range changeSet.Changes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProjectID != keys[j].ProjectID {
			return keys[i].ProjectID < keys[j].ProjectID
		}
		return keys[i].FilePath < keys[j].FilePath
	})

	if err := checkCancelled(ctx); err != nil {
		return err
	}

	log.Printf("coordinator[%s]: state=Diffing/Reconciling files=%d", runID, len(keys))
	outcomes, err := runPool(ctx, c.cfg.CPUWorkers, keys, func(ctx context.Context, key domain.FileKey) (fileOutcome, error) {
		return c.reconcileFile(ctx, key, changeSet.Changes[key])
	})
	if err != nil {
		return err
	}

	var upsertFiles []domain.File
	var deleteFileIDs []int64
	var surviveShift []store.ConnectionUpdate
	var deleteConnIDs []int64
	jobsByProject := make(map[int64][]reconcile.SnippetJob)
	contentByFile := make(map[domain.FileKey]string)

	for _, fo := range outcomes {
		if fo.upsertFile != nil {
			upsertFiles = append(upsertFiles, *fo.upsertFile)
			contentByFile[fo.key] = fo.content
		}
		if fo.deleteFile {
			deleteFileIDs = append(deleteFileIDs, fo.deleteFileID)
		}
		for _, u := range fo.surviveShift {
			surviveShift = append(surviveShift, store.ConnectionUpdate{
				ConnectionID: u.ConnectionID,
				StartLine:    u.NewStartLine,
				EndLine:      u.NewEndLine,
				CodeSnippet:  u.RefreshedCodeSnippet,
			})
		}
		deleteConnIDs = append(deleteConnIDs, fo.deleteConns...)
		if len(fo.jobs) > 0 {
			jobsByProject[fo.key.ProjectID] = append(jobsByProject[fo.key.ProjectID], fo.jobs...)
		}
	}

	if err := checkCancelled(ctx); err != nil {
		return err
	}

	log.Printf("coordinator[%s]: state=Splitting jobs=%d", runID, countJobs(jobsByProject))
	batches := batch.Plan(jobsByProject, c.cfg.BatchLineBudget)

	lookup := func(ctx context.Context, projectID int64, filePath string) (string, error) {
		content, ok := contentByFile[domain.FileKey{ProjectID: projectID, FilePath: filePath}]
		if !ok {
			return "", fmt.Errorf("coordinator: no content recorded for %s in project %d", filePath, projectID)
		}
		return content, nil
	}

	type splitResult struct {
		projectID int64
		derived   []splitter.Derived
	}
	splitOutcomes, err := runPool(ctx, c.cfg.CPUWorkers, batches, func(ctx context.Context, b batch.Batch) (splitResult, error) {
		desc, err := c.cfg.ProjectDesc.ProjectDescription(ctx, b.ProjectID)
		if err != nil {
			return splitResult{}, err
		}
		derived, err := splitter.Drive(ctx, c.cfg.Splitter, b, desc, lookup)
		if err != nil {
			return splitResult{}, err
		}
		return splitResult{projectID: b.ProjectID, derived: derived}, nil
	})
	if err != nil {
		return err
	}

	// New connections have no real ID until Commit inserts them, but
	// the Matcher (which must run before Committing) needs something
	// to reference in the ConnectionMapping rows it produces. Assign
	// provisional negative placeholder IDs here; the store resolves
	// them to real IDs inside the same commit transaction.
	var newConnections []store.PendingConnection
	placeholder := int64(-1)
	for _, so := range splitOutcomes {
		for _, d := range so.derived {
			conn := d.Connection
			conn.ID = placeholder
			placeholder--
			newConnections = append(newConnections, store.PendingConnection{
				ProjectID: so.projectID,
				FilePath:  d.FilePath,
				Connection: conn,
			})
		}
	}

	if err := checkCancelled(ctx); err != nil {
		return err
	}

	log.Printf("coordinator[%s]: state=Matching new_connections=%d", runID, len(newConnections))
	existing, err := c.cfg.Store.AllConnections(ctx)
	if err != nil {
		return err
	}
	deleted := make(map[int64]bool, len(deleteConnIDs))
	for _, id := range deleteConnIDs {
		deleted[id] = true
	}

	var outgoing, incoming []matcher.Candidate
	for _, cp := range existing {
		if deleted[cp.Connection.ID] {
			continue
		}
		cand := matcher.Candidate{Connection: cp.Connection, ProjectID: cp.ProjectID}
		if cp.Connection.Direction == domain.DirectionOutgoing {
			outgoing = append(outgoing, cand)
		} else {
			incoming = append(incoming, cand)
		}
	}
	for _, pc := range newConnections {
		cand := matcher.Candidate{Connection: pc.Connection, ProjectID: pc.ProjectID}
		if pc.Connection.Direction == domain.DirectionOutgoing {
			outgoing = append(outgoing, cand)
		} else {
			incoming = append(incoming, cand)
		}
	}

	mappings := matcher.Match(outgoing, incoming, matcher.DefaultRegistry(), c.cfg.MatcherThreshold)

	if err := checkCancelled(ctx); err != nil {
		return err
	}

	log.Printf("coordinator[%s]: state=Committing mappings=%d", runID, len(mappings))
	plan := store.CommitPlan{
		UpsertFiles:               upsertFiles,
		DeleteFileIDs:             deleteFileIDs,
		SurviveShiftUpdates:       surviveShift,
		DeleteConnectionIDs:       deleteConnIDs,
		NewConnections:            newConnections,
		ReplaceMappings:           true,
		NewMappings:               mappings,
		ProcessedCheckpointRowIDs: rowIDs,
	}

	if err := c.commitWithRetry(ctx, plan); err != nil {
		return err
	}
	log.Printf("coordinator[%s]: state=Idle run complete", runID)
	return nil
}

// commitWithRetry retries the final commit once on failure (spec §7:
// StoreTransient is "retried once inside the final commit; else
// fatal"). The commit itself is one transaction, so a retry either
// succeeds cleanly or fails again against the same pre-run state.
func (c *Coordinator) commitWithRetry(ctx context.Context, plan store.CommitPlan) error {
	err := c.cfg.Store.Commit(ctx, plan)
	if err == nil {
		return nil
	}
	log.Printf("coordinator: commit failed, retrying once: %v", err)
	time.Sleep(100 * time.Millisecond)
	if err2 := c.cfg.Store.Commit(ctx, plan); err2 != nil {
		return &StoreTransientError{Err: err2}
	}
	return nil
}

func (c *Coordinator) reconcileFile(ctx context.Context, key domain.FileKey, change domain.Change) (fileOutcome, error) {
	out := fileOutcome{key: key}

	switch change.Kind() {
	case domain.ChangeAdded:
		language := guessLanguage(key.FilePath)
		job := reconcile.ReconcileAddedFile(key.ProjectID, key.FilePath, language, change.Added.New)
		file := domain.File{ProjectID: key.ProjectID, Path: key.FilePath, Language: language, ContentHash: hashContent(change.Added.New)}
		out.upsertFile = &file
		out.content = change.Added.New
		out.jobs = []reconcile.SnippetJob{job}

	case domain.ChangeModified:
		f, ok, err := c.cfg.Store.FileByPath(ctx, key.ProjectID, key.FilePath)
		if err != nil {
			return fileOutcome{}, err
		}
		var existingConns []domain.Connection
		if ok {
			existingConns, err = c.cfg.Store.ConnectionsForFile(ctx, f.ID)
			if err != nil {
				return fileOutcome{}, err
			}
		}
		language := f.Language
		if language == "" {
			language = guessLanguage(key.FilePath)
		}
		diff, err := diffing.Compute(change.Modified.Old, change.Modified.New)
		if err != nil {
			return fileOutcome{}, err
		}
		outcome := reconcile.ReconcileModifiedFile(key.ProjectID, key.FilePath, language, change.Modified.Old, change.Modified.New, diff, existingConns, c.cfg.AdjacencyThreshold)

		file := domain.File{ID: f.ID, ProjectID: key.ProjectID, Path: key.FilePath, Language: language, ContentHash: hashContent(change.Modified.New)}
		out.upsertFile = &file
		out.content = change.Modified.New
		out.surviveShift = outcome.SurviveShift
		out.deleteConns = outcome.Delete
		out.jobs = outcome.Jobs

	case domain.ChangeDeleted:
		f, ok, err := c.cfg.Store.FileByPath(ctx, key.ProjectID, key.FilePath)
		if err != nil {
			return fileOutcome{}, err
		}
		if !ok {
			// Already absent (e.g. never persisted); nothing to do.
			return out, nil
		}
		conns, err := c.cfg.Store.ConnectionsForFile(ctx, f.ID)
		if err != nil {
			return fileOutcome{}, err
		}
		out.deleteFile = true
		out.deleteFileID = f.ID
		out.deleteConns = reconcile.ReconcileDeletedFile(conns)
	}

	return out, nil
}

// checkCancelled reports ErrCancelled if ctx has already been
// cancelled, so Run aborts at the next phase boundary rather than
// mid-phase (spec §5: "finish the current batch, then abort cleanly").
func checkCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

func countJobs(jobsByProject map[int64][]reconcile.SnippetJob) int {
	n := 0
	for _, js := range jobsByProject {
		n += len(js)
	}
	return n
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
