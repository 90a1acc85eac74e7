package splitter

import (
	"context"
	"errors"
	"time"
)

// Retry retries Split up to maxAttempts with exponential backoff
// starting at baseDelay, ported from the teacher's
// internal/llm.middleware_retry.go onto the Splitter interface.
// PermanentError is never retried (spec §7, SplitterPermanent).
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Splitter) Splitter {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Splitter
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) Split(ctx context.Context, req Request) (Response, error) {
	var last error
	for i := 0; i < r.max; i++ {
		resp, err := r.next.Split(ctx, req)
		if err == nil {
			return resp, nil
		}
		var pErr *PermanentError
		if errors.As(err, &pErr) {
			return Response{}, err
		}
		last = err
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		default:
		}
		time.Sleep(r.base * time.Duration(1<<i))
	}
	return Response{}, last
}
