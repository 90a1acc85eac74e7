package splitter

import "context"

// ConcurrencyLimit bounds the number of in-flight Split calls,
// independent of any rate limiting, per the concurrency model in
// spec §5 ("Splitter calls... may be issued concurrently up to a
// configurable concurrency limit"). Grounded on the token-bucket
// shape of the teacher's internal/llm.rpsLimiter, simplified to a
// plain semaphore since there is no refill rate to model here.
func ConcurrencyLimit(n int) Middleware {
	if n < 1 {
		n = 1
	}
	sem := make(chan struct{}, n)
	return func(next Splitter) Splitter {
		return &limited{next: next, sem: sem}
	}
}

type limited struct {
	next Splitter
	sem  chan struct{}
}

func (l *limited) Name() string { return l.next.Name() }
func (l *limited) Close() error { return l.next.Close() }

func (l *limited) Split(ctx context.Context, req Request) (Response, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.next.Split(ctx, req)
}
