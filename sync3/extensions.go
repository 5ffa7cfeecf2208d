package sync3

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Phase controls when an extension's response is dispatched relative to
// room-data emission.
type Phase int

const (
	// PreProcess extensions are dispatched before room data, so a consumer
	// can pre-process payloads (e.g. to-device messages) that the
	// corresponding room events depend on.
	PreProcess Phase = iota
	// PostProcess extensions are dispatched after room data but before the
	// final List event, so a consumer can decorate rooms it has already
	// ingested.
	PostProcess
)

// Extension is a named, phased request/response side-channel carried within
// the sync envelope under "extensions".
type Extension interface {
	// Name is the unique key placed under "extensions" in requests and read
	// from the same key in responses.
	Name() string
	// OnRequest contributes this extension's per-request JSON payload.
	// isInitial is true exactly on the engine's first request (no sync
	// position yet). A nil return omits the extension from the request.
	OnRequest(isInitial bool) (json.RawMessage, error)
	// OnResponse consumes this extension's per-response JSON, if present.
	OnResponse(data json.RawMessage) error
	// When declares the dispatch phase.
	When() Phase
}

// ErrDuplicateExtension is returned by Registry.Register when an extension
// with the same name is already registered.
type ErrDuplicateExtension struct {
	Name string
}

func (e ErrDuplicateExtension) Error() string {
	return fmt.Sprintf("extension %q is already registered", e.Name)
}

// Registry holds the named extensions dispatched at each phase.
type Registry struct {
	byName map[string]Extension
	order  []string // registration order, for deterministic request composition
}

// NewRegistry constructs an empty extension registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Extension)}
}

// Register adds ext, failing if its name is already taken.
func (r *Registry) Register(ext Extension) error {
	name := ext.Name()
	if _, exists := r.byName[name]; exists {
		return ErrDuplicateExtension{Name: name}
	}
	r.byName[name] = ext
	r.order = append(r.order, name)
	return nil
}

// ComposeRequest gathers every extension's request payload.
func (r *Registry) ComposeRequest(isInitial bool) map[string]json.RawMessage {
	if len(r.order) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(r.order))
	for _, name := range r.order {
		ext := r.byName[name]
		payload, err := ext.OnRequest(isInitial)
		if err != nil {
			logrus.WithError(err).WithField("extension", name).Warn(
				"[SYNC_ENGINE] extension failed to build request payload, omitting")
			continue
		}
		if payload == nil {
			continue
		}
		out[name] = payload
	}
	return out
}

// Dispatch hands each extension in phase its response payload, if the
// response carried one under its name. Errors from individual extensions
// are logged, never propagated: one misbehaving extension must not abort
// the response pipeline for the rest.
func (r *Registry) Dispatch(phase Phase, data map[string]json.RawMessage) {
	for _, name := range r.order {
		ext := r.byName[name]
		if ext.When() != phase {
			continue
		}
		payload, ok := data[name]
		if !ok {
			continue
		}
		if err := ext.OnResponse(payload); err != nil {
			logrus.WithError(err).WithField("extension", name).Warn(
				"[SYNC_ENGINE] extension failed to process response payload")
		}
	}
}
