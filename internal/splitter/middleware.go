package splitter

// Middleware decorates a Splitter to inject cross-cutting concerns
// (retries, concurrency limiting, logging), ported from the teacher's
// internal/llm.Middleware pattern onto the Splitter interface.
type Middleware func(Splitter) Splitter

// Wrap applies middlewares in left-to-right order: Wrap(inner, A, B)
// behaves as A(B(inner)).
func Wrap(inner Splitter, mws ...Middleware) Splitter {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}
