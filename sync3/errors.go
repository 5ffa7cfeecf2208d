package sync3

import (
	"context"
	"errors"
	"fmt"

	"github.com/matrix-org/gomatrixserverlib/spec"
)

// HTTPError is produced when the transport got a response, but it carried a
// non-2xx HTTP status. It is emitted via Lifecycle(RequestFinished, nil, err)
// and causes the loop to back off before retrying.
type HTTPError struct {
	StatusCode int
	Matrix     *spec.MatrixError // decoded Matrix error body, if present
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e.Matrix != nil {
		return fmt.Sprintf("sliding sync request failed: %d %s: %s", e.StatusCode, e.Matrix.ErrCode, e.Matrix.Err)
	}
	return fmt.Sprintf("sliding sync request failed: %d", e.StatusCode)
}

// TransportError wraps any non-HTTP, non-abort transport failure (DNS,
// connection reset, response body decode failure, ...). It is logged and
// causes the loop to back off before retrying.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sliding sync transport error: %s", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AbortError indicates the in-flight request was cancelled by resend() or
// stop(), as opposed to failing on the wire. It always wraps
// context.Canceled so classification never relies on string matching.
type AbortError struct {
	Err error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("sliding sync request aborted: %s", e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// IsAbort reports whether err is (or wraps) an AbortError.
func IsAbort(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}

// ErrIndexOutOfBounds is returned by SetList when an index references
// neither an existing list nor the position immediately after the last one
// (a valid append), and by SetListRanges when it references no existing
// list (SetListRanges never appends).
type ErrIndexOutOfBounds struct {
	Index, Length int
}

func (e ErrIndexOutOfBounds) Error() string {
	return fmt.Sprintf("list index %d out of bounds (have %d lists, append requires index %d)", e.Index, e.Length, e.Length)
}

// newAbortError wraps ctx.Err() (expected to be context.Canceled) as an
// AbortError for propagation through the engine's error classification.
func newAbortError(ctx context.Context) *AbortError {
	return &AbortError{Err: ctx.Err()}
}
