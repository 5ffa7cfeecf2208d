// Package extensions ships the built-in sync3.Extension implementations the
// sliding-sync wire format reserves under "extensions": to-device messaging,
// global and per-room account data, typing notifications and end-to-end
// encryption device bookkeeping. Each is a pure request/response shuttle: it
// knows how to build its own request fragment and how to keep any stateful
// token current, but never parses its response payload's semantics beyond
// that. Consumers that want the payload read it off Engine.ExtensionCh as
// json.RawMessage.
package extensions

import (
	"encoding/json"
	"sync"

	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type Phase = sync3.Phase

const (
	PreProcess  = sync3.PreProcess
	PostProcess = sync3.PostProcess
)

// ToDevice is the "to_device" extension. It tracks the stateful next_batch
// token returned by the server so the following request's "since" advances,
// independent of the sliding sync "pos".
type ToDevice struct {
	Enabled bool
	// Limit caps the number of to-device messages returned per response.
	// Zero omits the field, leaving the server default in effect.
	Limit int

	mu    sync.Mutex
	since string
}

func (e *ToDevice) Name() string { return "to_device" }

func (e *ToDevice) When() Phase { return PreProcess }

func (e *ToDevice) OnRequest(isInitial bool) (json.RawMessage, error) {
	if !e.Enabled {
		return nil, nil
	}
	payload := []byte(`{}`)
	payload, err := sjson.SetBytes(payload, "enabled", true)
	if err != nil {
		return nil, err
	}
	if e.Limit > 0 {
		payload, err = sjson.SetBytes(payload, "limit", e.Limit)
		if err != nil {
			return nil, err
		}
	}
	e.mu.Lock()
	since := e.since
	e.mu.Unlock()
	if since != "" {
		payload, err = sjson.SetBytes(payload, "since", since)
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func (e *ToDevice) OnResponse(data json.RawMessage) error {
	next := gjson.GetBytes(data, "next_batch")
	if !next.Exists() {
		return nil
	}
	e.mu.Lock()
	e.since = next.String()
	e.mu.Unlock()
	return nil
}

// roomTargeting renders the reserved "lists"/"rooms" targeting keys per the
// nil/empty/wildcard/explicit-list convention: a nil slice omits the key
// (server default: process everything), a non-nil slice (possibly empty, or
// containing "*") is always written explicitly.
func roomTargeting(payload []byte, key string, values []string) ([]byte, error) {
	if values == nil {
		return payload, nil
	}
	return sjson.SetBytes(payload, key, values)
}

// AccountData is the "account_data" extension: global plus per-room account
// data events, forwarded opaquely. Lists and Rooms are nil by default
// (wildcard); set them to a non-nil slice ([] included) to restrict or
// exclude targeting per the reserved extension keys.
type AccountData struct {
	Enabled bool
	Lists   []string
	Rooms   []string
}

func (e *AccountData) Name() string { return "account_data" }

func (e *AccountData) When() Phase { return PostProcess }

func (e *AccountData) OnRequest(isInitial bool) (json.RawMessage, error) {
	if !e.Enabled {
		return nil, nil
	}
	payload, err := sjson.SetBytes([]byte(`{}`), "enabled", true)
	if err != nil {
		return nil, err
	}
	if payload, err = roomTargeting(payload, "lists", e.Lists); err != nil {
		return nil, err
	}
	if payload, err = roomTargeting(payload, "rooms", e.Rooms); err != nil {
		return nil, err
	}
	return payload, nil
}

func (e *AccountData) OnResponse(data json.RawMessage) error {
	// Global and per-room account data contents are opaque to the engine;
	// consumers read them off ExtensionEvent.Data.
	return nil
}

// Typing is the "typing" extension: per-room typing-user lists, forwarded
// opaquely.
type Typing struct {
	Enabled bool
}

func (e *Typing) Name() string { return "typing" }

func (e *Typing) When() Phase { return PostProcess }

func (e *Typing) OnRequest(isInitial bool) (json.RawMessage, error) {
	if !e.Enabled {
		return nil, nil
	}
	return sjson.SetBytes([]byte(`{}`), "enabled", true)
}

func (e *Typing) OnResponse(data json.RawMessage) error {
	return nil
}

// E2EE is the "e2ee" extension: device list changes and one-time-key
// counts, forwarded opaquely.
type E2EE struct {
	Enabled bool
}

func (e *E2EE) Name() string { return "e2ee" }

func (e *E2EE) When() Phase { return PreProcess }

func (e *E2EE) OnRequest(isInitial bool) (json.RawMessage, error) {
	if !e.Enabled {
		return nil, nil
	}
	return sjson.SetBytes([]byte(`{}`), "enabled", true)
}

func (e *E2EE) OnResponse(data json.RawMessage) error {
	return nil
}
