package splitter

import "errors"

// ErrInvalidJSON is returned when a provider's response cannot be
// parsed into the expected shape.
var ErrInvalidJSON = errors.New("splitter: invalid response from provider")

// PermanentError marks a Splitter failure as non-retryable (spec §7,
// SplitterPermanent): the batch is aborted rather than retried with
// backoff. Grounded on the teacher's llmClient.PermanentError.
type PermanentError struct {
	Err error
}

func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "splitter: permanent error"
	}
	return "splitter: permanent error: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }
