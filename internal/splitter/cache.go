package splitter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"connectgraph/internal/cache/disk"
)

// ContentCache is a Middleware that persists Splitter results keyed by
// a snippet's exact content, so identical code is never sent to the
// LLM backend twice. This matters across runs, not just within one:
// connectgraphd is a batch job that exits after every run (spec §6),
// so if a later batch in the same run fails, the whole run aborts
// (spec §7, "Any write error aborts the whole run") and the checkpoint
// rows stay pending, so the next invocation reconciles the exact same
// unaffected files into the exact same SnippetJobs. Without a
// cross-process cache, every retry after a partial failure re-pays
// for Splitter calls that already succeeded the first time.
func ContentCache(store *disk.LRUTTLStore) Middleware {
	return func(next Splitter) Splitter {
		return &cachedSplitter{next: next, store: store}
	}
}

type cachedSplitter struct {
	next  Splitter
	store *disk.LRUTTLStore
}

func (c *cachedSplitter) Name() string { return c.next.Name() + "+cache" }
func (c *cachedSplitter) Close() error { return c.next.Close() }

func (c *cachedSplitter) Split(ctx context.Context, req Request) (Response, error) {
	hits := make(map[int][]DerivedConnection)

	misses := Request{ProjectDescription: req.ProjectDescription}
	missOrigIndex := make([]int, 0, len(req.Snippets))

	for i, snip := range req.Snippets {
		raw, ok, err := c.store.Get(ctx, snippetCacheKey(snip))
		if err == nil && ok {
			var conns []DerivedConnection
			if err := json.Unmarshal(raw, &conns); err == nil {
				hits[i] = conns
				continue
			}
		}
		s := snip
		s.SourceIndex = len(misses.Snippets)
		misses.Snippets = append(misses.Snippets, s)
		missOrigIndex = append(missOrigIndex, i)
	}

	var resp Response
	for origIdx, conns := range hits {
		for _, dc := range conns {
			dc.SourceIndex = origIdx
			resp.Connections = append(resp.Connections, dc)
		}
	}

	if len(misses.Snippets) == 0 {
		return resp, nil
	}

	missResp, err := c.next.Split(ctx, misses)
	if err != nil {
		return Response{}, err
	}

	byLocal := make(map[int][]DerivedConnection, len(misses.Snippets))
	for _, dc := range missResp.Connections {
		byLocal[dc.SourceIndex] = append(byLocal[dc.SourceIndex], dc)
	}
	for localIdx, origIdx := range missOrigIndex {
		conns := byLocal[localIdx]
		if raw, err := json.Marshal(conns); err == nil {
			_ = c.store.Set(ctx, snippetCacheKey(req.Snippets[origIdx]), raw, len(raw))
		}
		for _, dc := range conns {
			dc.SourceIndex = origIdx
			resp.Connections = append(resp.Connections, dc)
		}
	}

	return resp, nil
}

// snippetCacheKey hashes everything that can affect the Splitter's
// answer for one snippet: its exact text, the file and language it
// came from, its absolute line range (DerivedConnection line numbers
// are only valid for the same range), and any prior_description.
func snippetCacheKey(s SnippetRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d\x00%s", s.FilePath, s.Language, s.StartLine, s.EndLine, s.Code)
	if s.PriorDescription != nil {
		fmt.Fprintf(h, "\x00%s", *s.PriorDescription)
	}
	return hex.EncodeToString(h.Sum(nil))
}
