package sync3

import "context"

// Transport is the external collaborator that actually speaks HTTP to the
// sliding-sync proxy. The engine only ever depends on this contract; see
// package transport for a production net/http implementation.
type Transport interface {
	// SlidingSync issues one long-poll round trip. Cancelling ctx must
	// cause SlidingSync to return promptly with a non-nil error; the engine
	// uses this as its sole interruption mechanism and classifies the
	// failure as an abort by checking its own ctx, whatever the error type.
	SlidingSync(ctx context.Context, req Request, baseURL string) (*Response, error)
	// MakeTxnID mints a fresh, opaque, unique transaction id.
	MakeTxnID() string
}
