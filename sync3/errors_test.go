package sync3

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/stretchr/testify/require"
)

func TestIsAbortDetectsWrappedAbortError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	base := newAbortError(ctx)
	wrapped := fmt.Errorf("poll failed: %w", base)
	require.True(t, IsAbort(wrapped))
	require.True(t, errors.Is(wrapped, context.Canceled))
}

func TestIsAbortFalseForOtherErrors(t *testing.T) {
	require.False(t, IsAbort(&TransportError{Err: errors.New("boom")}))
	require.False(t, IsAbort(errors.New("plain")))
}

func TestHTTPErrorMessageIncludesMatrixBody(t *testing.T) {
	err := &HTTPError{StatusCode: 429, Matrix: &spec.MatrixError{ErrCode: "M_LIMIT_EXCEEDED", Err: "too fast"}}
	require.Contains(t, err.Error(), "429")
	require.Contains(t, err.Error(), "M_LIMIT_EXCEEDED")
}

func TestErrIndexOutOfBoundsMessage(t *testing.T) {
	err := ErrIndexOutOfBounds{Index: 5, Length: 2}
	require.Contains(t, err.Error(), "5")
	require.Contains(t, err.Error(), "2")
}
