// Package projectdesc implements the project description source
// (spec §6 inbound interface): a read-only lookup returning a short
// natural-language description per project, provided to the Splitter
// as context.
package projectdesc

import (
	"context"
	"time"

	"connectgraph/internal/cache/memory"
)

// Source is the read-only lookup the Splitter Driver consults for
// each batch's project_description.
type Source interface {
	ProjectDescription(ctx context.Context, projectID int64) (string, error)
}

// Static is an in-memory Source for tests and for projects without a
// stored description.
type Static map[int64]string

func (s Static) ProjectDescription(ctx context.Context, projectID int64) (string, error) {
	return s[projectID], nil
}

// Cached wraps a Source with an in-process LRU+TTL memo, so a run that
// batches many files per project (spec §5) doesn't re-hit the store
// for the same project_description on every batch.
type Cached struct {
	next  Source
	cache *memory.LRUTTL[int64, string]
}

// NewCached returns a Source that memoizes next's results for ttl,
// evicting least-recently-used projects past maxEntries.
func NewCached(next Source, maxEntries int, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: memory.NewLRUTTL[int64, string](maxEntries, 0, ttl)}
}

func (c *Cached) ProjectDescription(ctx context.Context, projectID int64) (string, error) {
	if desc, ok := c.cache.Get(projectID); ok {
		return desc, nil
	}
	desc, err := c.next.ProjectDescription(ctx, projectID)
	if err != nil {
		return "", err
	}
	c.cache.Set(projectID, desc, len(desc))
	return desc, nil
}
