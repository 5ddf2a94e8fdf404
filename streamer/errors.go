package streamer

import (
	"errors"
	"fmt"

	"github.com/IvanBrykalov/tilestream/tier"
)

var (
	// ErrCanceled is delivered to a ticket whose request was cancelled or
	// superseded before its decode began.
	ErrCanceled = errors.New("streamer: request canceled")
	// ErrFetchFailed matches (errors.Is) any *TaskError from the fetch step.
	ErrFetchFailed = errors.New("streamer: fetch failed")
	// ErrDecodeFailed matches any *TaskError from the decode step.
	ErrDecodeFailed = errors.New("streamer: decode failed")
	// ErrClosed is delivered to requests still pending at Close.
	ErrClosed = errors.New("streamer: closed")
)

// TaskError reports a failed decode task. It matches its kind sentinel with
// errors.Is and unwraps to the underlying cause.
type TaskError struct {
	Kind error // ErrFetchFailed or ErrDecodeFailed
	Key  tier.Key
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TaskError) Unwrap() error { return e.Err }

// Is reports whether target is this error's kind sentinel.
func (e *TaskError) Is(target error) bool { return target == e.Kind }

func (e *TaskError) result() DecodeResult {
	if e.Kind == ErrFetchFailed {
		return DecodeFetchFailed
	}
	return DecodeFailed
}
