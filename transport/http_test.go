package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransportSlidingSyncSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string][]string(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sync3.Response{Pos: "p1"})
	}))
	defer srv.Close()

	tr := NewHTTPTransport("tok123")
	req := sync3.Request{Pos: "p0", Timeout: 10000, ClientTimeout: 20000}
	resp, err := tr.SlidingSync(context.Background(), req, srv.URL)
	require.NoError(t, err)
	require.Equal(t, "p1", resp.Pos)
	require.Equal(t, slidingSyncPath, gotPath)
	require.Equal(t, "Bearer tok123", gotAuth)
	require.Equal(t, []string{"p0"}, gotQuery["pos"])
	require.Equal(t, []string{"10000"}, gotQuery["timeout"])
	require.Equal(t, []string{"20000"}, gotQuery["clientTimeout"])
}

func TestHTTPTransportClassifiesNon2xxAsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errcode":"M_LIMIT_EXCEEDED","error":"too fast"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport("")
	_, err := tr.SlidingSync(context.Background(), sync3.Request{}, srv.URL)
	require.Error(t, err)
	var httpErr *sync3.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	require.NotNil(t, httpErr.Matrix)
	require.Equal(t, "M_LIMIT_EXCEEDED", httpErr.Matrix.ErrCode)
}

func TestHTTPTransportCancelledContextReturnsTransportError(t *testing.T) {
	// HTTPTransport never constructs a sync3.AbortError itself: abort
	// classification is the engine's responsibility (it knows whether it
	// was the one that cancelled reqCtx). A cancelled context simply
	// surfaces here as a wrapped net/http round trip failure.
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	tr := NewHTTPTransport("")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.SlidingSync(ctx, sync3.Request{}, srv.URL)
	require.Error(t, err)
	var transportErr *sync3.TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestHTTPTransportMakeTxnIDIsUnique(t *testing.T) {
	tr := NewHTTPTransport("")
	a := tr.MakeTxnID()
	b := tr.MakeTxnID()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}
