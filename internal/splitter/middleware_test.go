package splitter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"connectgraph/internal/cache/disk"
)

type countingSplitter struct {
	calls    int32
	resp     Response
	err      error
	inFlight int32
	mu       sync.Mutex
	peak     int32
	delay    time.Duration
}

func (c *countingSplitter) Name() string { return "counting" }
func (c *countingSplitter) Close() error { return nil }
func (c *countingSplitter) Split(ctx context.Context, req Request) (Response, error) {
	atomic.AddInt32(&c.calls, 1)
	cur := atomic.AddInt32(&c.inFlight, 1)
	defer atomic.AddInt32(&c.inFlight, -1)
	c.mu.Lock()
	if cur > c.peak {
		c.peak = cur
	}
	c.mu.Unlock()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.resp, c.err
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	inner := &countingSplitter{err: NewPermanentError(errors.New("bad request"))}
	s := Wrap(inner, Retry(5, time.Millisecond))

	_, err := s.Split(context.Background(), Request{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly 1 attempt for a permanent error, got %d", inner.calls)
	}
}

func TestRetry_RetriesTransientErrorThenSucceeds(t *testing.T) {
	inner := &failNTimesSplitter{failures: 2}
	s := Wrap(inner, Retry(5, time.Millisecond))

	if _, err := s.Split(context.Background(), Request{}); err != nil {
		t.Fatalf("Split: %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 attempts (2 failures + 1 success), got %d", inner.calls)
	}
}

type failNTimesSplitter struct {
	calls    int
	failures int
}

func (f *failNTimesSplitter) Name() string { return "flaky" }
func (f *failNTimesSplitter) Close() error { return nil }
func (f *failNTimesSplitter) Split(ctx context.Context, req Request) (Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return Response{}, errors.New("transient backend hiccup")
	}
	return Response{}, nil
}

func TestConcurrencyLimit_BoundsInFlightCalls(t *testing.T) {
	inner := &countingSplitter{delay: 20 * time.Millisecond}
	s := Wrap(inner, ConcurrencyLimit(2))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Split(context.Background(), Request{})
		}()
	}
	wg.Wait()

	if inner.calls != 6 {
		t.Fatalf("expected all 6 calls to eventually run, got %d", inner.calls)
	}
	if inner.peak > 2 {
		t.Fatalf("expected peak in-flight calls <= 2, observed %d", inner.peak)
	}
}

func TestContentCache_SkipsIdenticalSnippetOnSecondCall(t *testing.T) {
	store, err := disk.NewLRUTTLStore(disk.LRUTTLConfig{Root: t.TempDir(), MaxEntries: 100, TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewLRUTTLStore: %v", err)
	}
	inner := &countingSplitter{resp: Response{Connections: []DerivedConnection{
		{SourceIndex: 0, StartLine: 1, EndLine: 1, CodeSnippet: "a", Description: "d", TechnologyName: "HTTP/GET"},
	}}}
	s := Wrap(inner, ContentCache(store))

	req := Request{Snippets: []SnippetRequest{{FilePath: "f.go", Language: "go", StartLine: 1, EndLine: 1, Code: "a"}}}

	if _, err := s.Split(context.Background(), req); err != nil {
		t.Fatalf("first Split: %v", err)
	}
	if _, err := s.Split(context.Background(), req); err != nil {
		t.Fatalf("second Split: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected the underlying Splitter to be called once, got %d", inner.calls)
	}
}

func TestContentCache_OutermostBypassesRetryOnHit(t *testing.T) {
	store, err := disk.NewLRUTTLStore(disk.LRUTTLConfig{Root: t.TempDir(), MaxEntries: 100, TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewLRUTTLStore: %v", err)
	}
	inner := &failAfterFirstSplitter{resp: Response{Connections: []DerivedConnection{
		{SourceIndex: 0, StartLine: 1, EndLine: 1, CodeSnippet: "a", Description: "d", TechnologyName: "HTTP/GET"},
	}}}
	s := Wrap(inner, ContentCache(store), Retry(3, time.Millisecond))

	req := Request{Snippets: []SnippetRequest{{FilePath: "f.go", Language: "go", StartLine: 1, EndLine: 1, Code: "a"}}}

	if _, err := s.Split(context.Background(), req); err != nil {
		t.Fatalf("first Split: %v", err)
	}
	// The second, identical call must be served entirely from cache: if
	// it reached the inner Splitter (through Retry), it would fail.
	if _, err := s.Split(context.Background(), req); err != nil {
		t.Fatalf("expected the cached second call to bypass the failing inner Splitter, got: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly 1 call to the inner Splitter, got %d", inner.calls)
	}
}

type failAfterFirstSplitter struct {
	calls int
	resp  Response
}

func (f *failAfterFirstSplitter) Name() string { return "fail-after-first" }
func (f *failAfterFirstSplitter) Close() error { return nil }
func (f *failAfterFirstSplitter) Split(ctx context.Context, req Request) (Response, error) {
	f.calls++
	if f.calls == 1 {
		return f.resp, nil
	}
	return Response{}, NewPermanentError(errors.New("should never be called again"))
}

func TestRateLimit_BlocksUntilBudgetAvailable(t *testing.T) {
	inner := &countingSplitter{}
	s := Wrap(inner, RateLimit(1000, 1)) // generous but not unlimited

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := s.Split(context.Background(), Request{}); err != nil {
			t.Fatalf("Split: %v", err)
		}
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("rate limiter stalled far longer than the configured budget allows")
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls to pass through, got %d", inner.calls)
	}
}

func TestRateLimit_ZeroIsUnlimited(t *testing.T) {
	inner := &countingSplitter{}
	s := Wrap(inner, RateLimit(0, 0))

	for i := 0; i < 50; i++ {
		if _, err := s.Split(context.Background(), Request{}); err != nil {
			t.Fatalf("Split: %v", err)
		}
	}
	if inner.calls != 50 {
		t.Fatalf("expected all 50 calls to pass through unthrottled, got %d", inner.calls)
	}
}
