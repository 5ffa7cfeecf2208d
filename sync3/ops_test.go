package sync3

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seededList(t *testing.T, ranges []Range, seed map[int]string) *List {
	t.Helper()
	l := NewList(ListParams{Ranges: ranges})
	for k, v := range seed {
		l.roomIndexToRoomID[k] = v
	}
	return l
}

func TestReplayOpsInsertAfterDeleteShiftsRightward(t *testing.T) {
	l := seededList(t, []Range{{0, 3}}, map[int]string{0: "A", 1: "B", 2: "C", 3: "D"})
	applyOps(l, []Operation{
		{Op: OpDelete, Index: intPtr(3)},
		{Op: OpInsert, Index: intPtr(0), RoomID: "E"},
	})
	require.Equal(t, map[int]string{0: "E", 1: "A", 2: "B", 3: "C"}, l.CloneIndexMap())
}

func TestReplayOpsInsertAfterDeleteShiftsLeftward(t *testing.T) {
	l := seededList(t, []Range{{0, 3}}, map[int]string{0: "A", 1: "B", 2: "C", 3: "D"})
	applyOps(l, []Operation{
		{Op: OpDelete, Index: intPtr(0)},
		{Op: OpInsert, Index: intPtr(3), RoomID: "E"},
	})
	require.Equal(t, map[int]string{0: "B", 1: "C", 2: "D", 3: "E"}, l.CloneIndexMap())
}

func TestReplayOpsSyncPastEnd(t *testing.T) {
	l := seededList(t, []Range{{0, 4}}, nil)
	applyOps(l, []Operation{
		{Op: OpSync, Range: &Range{0, 4}, RoomIDs: []string{"R1", "R2", "R3"}},
	})
	got := l.CloneIndexMap()
	require.Equal(t, map[int]string{0: "R1", 1: "R2", 2: "R3"}, got)
	_, has3 := got[3]
	_, has4 := got[4]
	require.False(t, has3)
	require.False(t, has4)
}

func TestReplayOpsInvalidateFollowedBySync(t *testing.T) {
	l := seededList(t, []Range{{0, 2}}, map[int]string{0: "A", 1: "B", 2: "C"})
	applyOps(l, []Operation{
		{Op: OpInvalidate, Range: &Range{0, 1}},
		{Op: OpSync, Range: &Range{0, 2}, RoomIDs: []string{"X", "Y", "Z"}},
	})
	require.Equal(t, map[int]string{0: "X", 1: "Y", 2: "Z"}, l.CloneIndexMap())
}

func TestReplayOpsSetsJoinedCount(t *testing.T) {
	l := seededList(t, []Range{{0, 2}}, nil)
	ReplayOps(l, ListResponse{Count: 42, Ops: []Operation{
		{Op: OpSync, Range: &Range{0, 2}, RoomIDs: []string{"A", "B", "C"}},
	}})
	require.Equal(t, 42, l.JoinedCount())
}

func TestReplayOpsInsertIntoOccupiedSlotWithoutPriorDeleteDrops(t *testing.T) {
	l := seededList(t, []Range{{0, 1}}, map[int]string{0: "A", 1: "B"})
	applyOps(l, []Operation{
		{Op: OpInsert, Index: intPtr(0), RoomID: "Z"},
	})
	require.Equal(t, map[int]string{0: "A", 1: "B"}, l.CloneIndexMap())
}

func intPtr(i int) *int { return &i }
