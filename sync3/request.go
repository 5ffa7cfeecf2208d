// Package sync3 implements the sliding-sync client protocol driver: the
// stateful engine that keeps local index->room-id views of a server-side
// room list synchronized over a single, continuously re-opened long-poll
// request. The wire shape mirrors MSC3575 (plural "ranges", array "lists",
// top-level "txn_id") as implemented by sliding-sync proxies.
package sync3

import "encoding/json"

// Operation kinds recognized in a ListResponse.Ops sequence.
const (
	OpDelete     = "DELETE"
	OpInsert     = "INSERT"
	OpInvalidate = "INVALIDATE"
	OpSync       = "SYNC"
)

// Range is an inclusive [lo, hi] interval over a server-side ordered room list.
type Range [2]int

// Filters holds the recognized filter fields for a sliding list. All fields
// are optional; a nil value omits the field from the wire request entirely.
type Filters struct {
	IsDM          *bool    `json:"is_dm,omitempty"`
	IsEncrypted   *bool    `json:"is_encrypted,omitempty"`
	IsInvite      *bool    `json:"is_invite,omitempty"`
	IsTombstoned  *bool    `json:"is_tombstoned,omitempty"`
	RoomNameLike  *string  `json:"room_name_like,omitempty"`
	RoomTypes     []string `json:"room_types,omitempty"`
	NotRoomTypes  []string `json:"not_room_types,omitempty"`
	Spaces        []string `json:"spaces,omitempty"`
}

// Clone returns a deep copy so a handed-out snapshot can never alias the
// canonical copy held by the list.
func (f *Filters) Clone() *Filters {
	if f == nil {
		return nil
	}
	cp := *f
	if f.RoomTypes != nil {
		cp.RoomTypes = append([]string(nil), f.RoomTypes...)
	}
	if f.NotRoomTypes != nil {
		cp.NotRoomTypes = append([]string(nil), f.NotRoomTypes...)
	}
	if f.Spaces != nil {
		cp.Spaces = append([]string(nil), f.Spaces...)
	}
	return &cp
}

// StateKeyTuple is a [event_type, state_key] pair used in required_state.
type StateKeyTuple [2]string

// ListParams is the canonical, user-controlled configuration of a list.
// Ranges is non-sticky (resent every request); the rest are sticky (only
// resent when changed, since the server retains them between polls).
type ListParams struct {
	Ranges          []Range         `json:"ranges"`
	Sort            []string        `json:"sort,omitempty"`
	Filters         *Filters        `json:"filters,omitempty"`
	TimelineLimit   *int            `json:"timeline_limit,omitempty"`
	RequiredState   []StateKeyTuple `json:"required_state,omitempty"`
	SlowGetAllRooms *bool           `json:"slow_get_all_rooms,omitempty"`
}

// Clone returns a deep copy of the params, including slices the caller might
// otherwise mutate.
func (p ListParams) Clone() ListParams {
	cp := p
	if p.Ranges != nil {
		cp.Ranges = append([]Range(nil), p.Ranges...)
	}
	if p.Sort != nil {
		cp.Sort = append([]string(nil), p.Sort...)
	}
	cp.Filters = p.Filters.Clone()
	if p.TimelineLimit != nil {
		v := *p.TimelineLimit
		cp.TimelineLimit = &v
	}
	if p.RequiredState != nil {
		cp.RequiredState = append([]StateKeyTuple(nil), p.RequiredState...)
	}
	if p.SlowGetAllRooms != nil {
		v := *p.SlowGetAllRooms
		cp.SlowGetAllRooms = &v
	}
	return cp
}

// ListFragment is what actually gets marshalled into a request for one list:
// the full sticky param set when modified or initial, else ranges alone.
type ListFragment struct {
	Ranges          []Range         `json:"ranges"`
	Sort            []string        `json:"sort,omitempty"`
	Filters         *Filters        `json:"filters,omitempty"`
	TimelineLimit   *int            `json:"timeline_limit,omitempty"`
	RequiredState   []StateKeyTuple `json:"required_state,omitempty"`
	SlowGetAllRooms *bool           `json:"slow_get_all_rooms,omitempty"`
}

// SubscriptionParams is the sticky configuration template applied to every
// room a client subscribes to directly (outside of any list).
type SubscriptionParams struct {
	RequiredState []StateKeyTuple `json:"required_state,omitempty"`
	TimelineLimit *int            `json:"timeline_limit,omitempty"`
}

// Clone deep-copies the subscription params template.
func (s SubscriptionParams) Clone() SubscriptionParams {
	cp := s
	if s.RequiredState != nil {
		cp.RequiredState = append([]StateKeyTuple(nil), s.RequiredState...)
	}
	if s.TimelineLimit != nil {
		v := *s.TimelineLimit
		cp.TimelineLimit = &v
	}
	return cp
}

// Request is the JSON body of a sliding-sync long-poll request. Pos, Timeout
// and ClientTimeout are carried out of band (query-style) by the transport,
// not marshalled into the body.
type Request struct {
	Lists             []ListFragment                 `json:"lists"`
	UnsubscribeRooms  []string                        `json:"unsubscribe_rooms,omitempty"`
	RoomSubscriptions map[string]SubscriptionParams   `json:"room_subscriptions,omitempty"`
	Extensions        map[string]json.RawMessage      `json:"extensions,omitempty"`
	TxnID             string                           `json:"txn_id,omitempty"`

	Pos           string `json:"-"`
	Timeout       int    `json:"-"`
	ClientTimeout int    `json:"-"`
}

// Response is the JSON body of a sliding-sync long-poll response.
type Response struct {
	Pos        string                      `json:"pos"`
	TxnID      string                      `json:"txn_id,omitempty"`
	Lists      []ListResponse              `json:"lists"`
	Rooms      map[string]RoomData         `json:"rooms"`
	Extensions map[string]json.RawMessage  `json:"extensions,omitempty"`
}

// ListResponse is the per-list payload of a Response: the server-reported
// joined count plus the sequence of operations to replay into the local
// index map.
type ListResponse struct {
	Count int         `json:"count"`
	Ops   []Operation `json:"ops"`
}

// Operation is one of DELETE|INSERT|INVALIDATE|SYNC (see OpReplayer).
type Operation struct {
	Op      string   `json:"op"`
	Index   *int     `json:"index,omitempty"`
	Range   *Range   `json:"range,omitempty"`
	RoomID  string   `json:"room_id,omitempty"`
	RoomIDs []string `json:"room_ids,omitempty"`
}

// RoomData is the per-room payload of a Response.
type RoomData struct {
	Name              string            `json:"name,omitempty"`
	RequiredState     []json.RawMessage `json:"required_state,omitempty"`
	Timeline          []json.RawMessage `json:"timeline,omitempty"`
	NotificationCount *int              `json:"notification_count,omitempty"`
	HighlightCount    *int              `json:"highlight_count,omitempty"`
	InviteState       []json.RawMessage `json:"invite_state,omitempty"`
	Initial           *bool             `json:"initial,omitempty"`
	Limited           *bool             `json:"limited,omitempty"`
	IsDM              *bool             `json:"is_dm,omitempty"`
	PrevBatch         string            `json:"prev_batch,omitempty"`
}
