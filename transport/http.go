// Package transport provides a production net/http implementation of
// sync3.Transport: the single collaborator the engine uses to actually
// speak HTTP to a sliding-sync proxy.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/pkg/errors"
)

// slidingSyncPath is the unstable MSC3575 endpoint exposed by sliding-sync
// proxies and by homeservers implementing it natively.
const slidingSyncPath = "/_matrix/client/unstable/org.matrix.msc3575/sync"

// HTTPTransport implements sync3.Transport over net/http. It is safe for
// concurrent use, though the engine only ever has one request in flight at
// a time.
type HTTPTransport struct {
	Client      *http.Client
	AccessToken string
}

// NewHTTPTransport constructs a transport backed by http.DefaultClient's
// timeout conventions (none; the engine controls deadlines via ctx and the
// clientTimeout query parameter).
func NewHTTPTransport(accessToken string) *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{}, AccessToken: accessToken}
}

// MakeTxnID mints an opaque unique transaction id.
func (t *HTTPTransport) MakeTxnID() string {
	return uuid.NewString()
}

// SlidingSync issues one long-poll round trip. Cancelling ctx aborts the
// in-flight HTTP request; the engine itself decides whether that was its
// own cancellation (an abort) by checking ctx.Err(), since it owns ctx.
// This method never constructs a sync3.AbortError.
func (t *HTTPTransport) SlidingSync(ctx context.Context, req sync3.Request, baseURL string) (*sync3.Response, error) {
	span, ctx := internal.StartSpan(ctx, "Transport.SlidingSync")
	defer span.Finish()
	internal.SetTag(span, "pos", req.Pos)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &sync3.TransportError{Err: errors.Wrap(err, "marshal sliding sync request")}
	}

	u, err := url.Parse(baseURL + slidingSyncPath)
	if err != nil {
		return nil, &sync3.TransportError{Err: errors.Wrap(err, "parse sliding sync base url")}
	}
	q := u.Query()
	if req.Pos != "" {
		q.Set("pos", req.Pos)
	}
	if req.Timeout > 0 {
		q.Set("timeout", strconv.Itoa(req.Timeout))
	}
	if req.ClientTimeout > 0 {
		q.Set("clientTimeout", strconv.Itoa(req.ClientTimeout))
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, &sync3.TransportError{Err: errors.Wrap(err, "build sliding sync request")}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.AccessToken)
	}

	httpResp, err := t.Client.Do(httpReq)
	if err != nil {
		// A cancelled ctx surfaces here as a generic net/http error; the
		// engine itself classifies that case as an abort by checking
		// reqCtx.Err(), so it is wrapped uniformly rather than
		// special-cased into sync3.AbortError here.
		return nil, &sync3.TransportError{Err: errors.Wrap(err, "sliding sync round trip")}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &sync3.TransportError{Err: errors.Wrap(err, "read sliding sync response body")}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		httpErr := &sync3.HTTPError{StatusCode: httpResp.StatusCode, Body: respBody}
		var matrixErr spec.MatrixError
		if json.Unmarshal(respBody, &matrixErr) == nil && matrixErr.ErrCode != "" {
			httpErr.Matrix = &matrixErr
		}
		return nil, httpErr
	}

	var resp sync3.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &sync3.TransportError{Err: errors.Wrap(err, "decode sliding sync response body")}
	}
	return &resp, nil
}
