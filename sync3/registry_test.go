package sync3

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeExtension struct {
	name     string
	phase    Phase
	request  json.RawMessage
	received json.RawMessage
	err      error
}

func (f *fakeExtension) Name() string { return f.name }
func (f *fakeExtension) When() Phase  { return f.phase }
func (f *fakeExtension) OnRequest(isInitial bool) (json.RawMessage, error) {
	return f.request, nil
}
func (f *fakeExtension) OnResponse(data json.RawMessage) error {
	f.received = data
	return f.err
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeExtension{name: "to_device"}))
	err := r.Register(&fakeExtension{name: "to_device"})
	require.Error(t, err)
	require.IsType(t, ErrDuplicateExtension{}, err)
}

func TestRegistryComposeRequestOmitsNilPayloads(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeExtension{name: "a", request: json.RawMessage(`{"enabled":true}`)}))
	require.NoError(t, r.Register(&fakeExtension{name: "b", request: nil}))

	body := r.ComposeRequest(true)
	require.Contains(t, body, "a")
	require.NotContains(t, body, "b")
}

func TestRegistryDispatchOnlyCallsMatchingPhase(t *testing.T) {
	r := NewRegistry()
	pre := &fakeExtension{name: "pre", phase: PreProcess}
	post := &fakeExtension{name: "post", phase: PostProcess}
	require.NoError(t, r.Register(pre))
	require.NoError(t, r.Register(post))

	data := map[string]json.RawMessage{
		"pre":  json.RawMessage(`{"x":1}`),
		"post": json.RawMessage(`{"y":2}`),
	}
	r.Dispatch(PreProcess, data)
	require.Equal(t, json.RawMessage(`{"x":1}`), pre.received)
	require.Nil(t, post.received)

	r.Dispatch(PostProcess, data)
	require.Equal(t, json.RawMessage(`{"y":2}`), post.received)
}
