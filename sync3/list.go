package sync3

// List is per-list client state: the user-controlled parameters plus the
// server-derived index->room-id mapping. It is owned exclusively by the
// Engine; external callers only ever see clones.
type List struct {
	params            ListParams
	modified          bool
	roomIndexToRoomID map[int]string
	joinedCount       int
}

// NewList constructs a list already carrying params, as if freshly added
// via set_list. It starts modified so the first transmission sends the
// full sticky fragment.
func NewList(params ListParams) *List {
	return &List{
		params:            params.Clone(),
		modified:          true,
		roomIndexToRoomID: make(map[int]string),
	}
}

// Replace sets params, clears the derived index map and joined count, and
// marks the list modified so the next request resends every sticky field.
func (l *List) Replace(params ListParams) {
	l.params = params.Clone()
	l.roomIndexToRoomID = make(map[int]string)
	l.joinedCount = 0
	l.modified = true
}

// UpdateRanges updates only the ranges. Ranges are non-sticky (they change
// on every scroll), so this never touches modified.
func (l *List) UpdateRanges(ranges []Range) {
	l.params.Ranges = append([]Range(nil), ranges...)
}

// ClearModified is called after a list's sticky fragment has been
// successfully transmitted.
func (l *List) ClearModified() {
	l.modified = false
}

// Modified reports whether any sticky field has changed since the last
// successful transmission.
func (l *List) Modified() bool {
	return l.modified
}

// IndexInRange reports whether i falls inside any of the list's ranges.
func (l *List) IndexInRange(i int) bool {
	for _, r := range l.params.Ranges {
		if i >= r[0] && i <= r[1] {
			return true
		}
	}
	return false
}

// Snapshot returns the wire fragment for this list: the full sticky param
// set when the list is modified or includeSticky is forced, otherwise only
// the non-sticky ranges. The engine always passes false; a new list's first
// request carries the full set because NewList starts it modified.
func (l *List) Snapshot(includeSticky bool) ListFragment {
	if l.modified || includeSticky {
		return ListFragment{
			Ranges:          append([]Range(nil), l.params.Ranges...),
			Sort:            append([]string(nil), l.params.Sort...),
			Filters:         l.params.Filters.Clone(),
			TimelineLimit:   cloneIntPtr(l.params.TimelineLimit),
			RequiredState:   append([]StateKeyTuple(nil), l.params.RequiredState...),
			SlowGetAllRooms: cloneBoolPtr(l.params.SlowGetAllRooms),
		}
	}
	return ListFragment{Ranges: append([]Range(nil), l.params.Ranges...)}
}

// JoinedCount returns the server-reported total joined count for this list.
func (l *List) JoinedCount() int {
	return l.joinedCount
}

// SetJoinedCount records the server-reported joined count. The OpReplayer
// invariant (joined_count >= len(room_index_to_room_id)) is the server's
// responsibility to uphold; the client only stores what it is told.
func (l *List) SetJoinedCount(n int) {
	l.joinedCount = n
}

// CloneParams returns a deep copy of the list's params, safe for external
// callers to hold onto.
func (l *List) CloneParams() ListParams {
	return l.params.Clone()
}

// CloneIndexMap returns a deep copy of the sparse index->room-id mapping.
func (l *List) CloneIndexMap() map[int]string {
	cp := make(map[int]string, len(l.roomIndexToRoomID))
	for k, v := range l.roomIndexToRoomID {
		cp[k] = v
	}
	return cp
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBoolPtr(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
