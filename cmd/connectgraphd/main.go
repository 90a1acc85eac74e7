// Command connectgraphd runs one incremental cross-indexing run: it
// drains the pending checkpoint queue, reconciles affected
// connections, re-derives new ones via the configured Splitter
// backend, matches across projects, and commits, then exits (spec §6).
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectgraph/internal/cache/disk"
	"connectgraph/internal/checkpoint"
	"connectgraph/internal/config"
	"connectgraph/internal/coordinator"
	"connectgraph/internal/diffing"
	"connectgraph/internal/projectdesc"
	"connectgraph/internal/splitter"
	"connectgraph/internal/store"
)

const (
	exitSuccess            = 0
	exitNothingToDo        = 2
	exitSplitterFailure    = 10
	exitStoreFailure       = 11
	exitInvariantViolation = 20
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("connectgraphd: config: %v", err)
		return exitStoreFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if cfg.DatabaseURL != "" {
		st, err = store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Printf("connectgraphd: opening postgres store: %v", err)
			return exitStoreFailure
		}
	} else {
		st = store.New("connectgraph.snapshot.json")
	}
	if err := st.EnsureLoaded(); err != nil {
		log.Printf("connectgraphd: loading store: %v", err)
		return exitStoreFailure
	}

	sp, err := buildSplitter(ctx, cfg)
	if err != nil {
		log.Printf("connectgraphd: building splitter: %v", err)
		return exitSplitterFailure
	}
	defer func() { _ = sp.Close() }()

	co := coordinator.New(coordinator.Config{
		Store:              st,
		Splitter:           sp,
		ProjectDesc:        projectdesc.NewCached(st, 256, 10*time.Minute),
		BatchLineBudget:    cfg.BatchLineBudget,
		AdjacencyThreshold: cfg.AdjacencyThreshold,
		MatcherThreshold:   cfg.MatcherThreshold,
		CPUWorkers:         cfg.CPUWorkers,
	})

	start := time.Now()
	err = co.Run(ctx)
	log.Printf("connectgraphd: run finished in %s", time.Since(start))

	return classifyExit(err)
}

func buildSplitter(ctx context.Context, cfg *config.Config) (splitter.Splitter, error) {
	var base splitter.Splitter
	var err error
	switch cfg.SplitterProvider {
	case "groq":
		base = splitter.NewGroqSplitter(cfg.GroqAPIKey, cfg.GroqModel)
	case "fixture":
		base = splitter.NewFixtureSplitter(cfg.SplitterFixtureDir)
	default:
		base, err = splitter.NewGeminiSplitter(ctx, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
	}

	// Order matters: Wrap(inner, A, B) runs as A(B(inner)), so listing
	// ContentCache first keeps a cache hit from ever touching retry or
	// the concurrency limiter.
	var middlewares []splitter.Middleware
	if cacheStore, err := disk.NewLRUTTLStore(disk.LRUTTLConfig{
		Root:       cfg.SplitterCachePath,
		MaxEntries: 100_000,
		TTL:        30 * 24 * time.Hour,
	}); err != nil {
		log.Printf("connectgraphd: splitter cache disabled: %v", err)
	} else {
		stats := cacheStore.Stats()
		log.Printf("connectgraphd: splitter cache warm with %d entries (%d bytes)", stats.Entries, stats.Bytes)
		middlewares = append(middlewares, splitter.ContentCache(cacheStore))
	}
	middlewares = append(middlewares,
		splitter.Retry(cfg.SplitterRetries, 500*time.Millisecond),
		splitter.ConcurrencyLimit(cfg.SplitterConcurrency),
		splitter.RateLimit(cfg.SplitterRPS, cfg.SplitterBurst),
	)

	return splitter.Wrap(base, middlewares...), nil
}

func classifyExit(err error) int {
	if err == nil {
		return exitSuccess
	}
	if errors.Is(err, coordinator.ErrNothingToDo) {
		return exitNothingToDo
	}
	if errors.Is(err, coordinator.ErrCancelled) {
		log.Printf("connectgraphd: run cancelled, checkpoint left pending")
		return exitSuccess
	}

	var permErr *splitter.PermanentError
	var mismatchErr *splitter.MismatchError
	if errors.As(err, &permErr) || errors.As(err, &mismatchErr) {
		return exitSplitterFailure
	}

	var storeErr *coordinator.StoreTransientError
	if errors.As(err, &storeErr) {
		return exitStoreFailure
	}

	var diffErr *diffing.InvariantViolationError
	var reconcileErr *coordinator.ReconcileInvariantViolationError
	var corruptionErr *checkpoint.InputCorruptionError
	if errors.As(err, &diffErr) || errors.As(err, &reconcileErr) || errors.As(err, &corruptionErr) {
		return exitInvariantViolation
	}

	log.Printf("connectgraphd: run aborted: %v", err)
	return exitStoreFailure
}
