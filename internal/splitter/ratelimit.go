package splitter

import (
	"context"
	"time"
)

// RateLimit throttles Split calls to at most rps per second with the
// given burst capacity, independent of ConcurrencyLimit (which only
// bounds how many calls are in flight, not how fast new ones start).
// The token-bucket shape is grounded on the teacher's
// internal/llm.rpsLimiter, since most LLM providers enforce a
// requests-per-second quota on top of whatever concurrency a client
// chooses to run, but the refill goroutine's lifetime is managed with
// a context.CancelFunc rather than a manually-closed stop channel, to
// match the ctx.Done()-based idiom ConcurrencyLimit already uses
// elsewhere in this package. If rps <= 0 the middleware is a no-op.
func RateLimit(rps float64, burst int) Middleware {
	if rps <= 0 {
		return func(next Splitter) Splitter { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	return func(next Splitter) Splitter {
		return &rateLimited{next: next, bucket: newTokenBucket(rps, burst)}
	}
}

type rateLimited struct {
	next   Splitter
	bucket *tokenBucket
}

func (r *rateLimited) Name() string { return r.next.Name() }
func (r *rateLimited) Close() error {
	r.bucket.stop()
	return r.next.Close()
}

func (r *rateLimited) Split(ctx context.Context, req Request) (Response, error) {
	if err := r.bucket.acquire(ctx); err != nil {
		return Response{}, err
	}
	return r.next.Split(ctx, req)
}

// tokenBucket refills at a fixed period derived from rps and is
// pre-filled to `burst` so an idle Splitter can absorb an initial
// spike before throttling kicks in. Its refill goroutine's lifetime
// is tied to an internal context rather than a stop channel, so
// stopping it is just calling cancel, idempotent by construction.
type tokenBucket struct {
	tokens chan struct{}
	cancel context.CancelFunc
}

func newTokenBucket(rps float64, burst int) *tokenBucket {
	bucketCtx, cancel := context.WithCancel(context.Background())
	b := &tokenBucket{
		tokens: make(chan struct{}, burst),
		cancel: cancel,
	}
	for i := 0; i < burst; i++ {
		b.tokens <- struct{}{}
	}

	period := time.Duration(float64(time.Second) / rps)
	if period <= 0 {
		period = time.Millisecond
	}
	go b.refill(bucketCtx, period)
	return b
}

func (b *tokenBucket) refill(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case b.tokens <- struct{}{}:
			default:
			}
		}
	}
}

func (b *tokenBucket) acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}

func (b *tokenBucket) stop() {
	b.cancel()
}
