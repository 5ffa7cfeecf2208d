package sync3

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListSnapshotStickyParamsOnlySentOnceModified(t *testing.T) {
	limit := 20
	l := NewList(ListParams{Ranges: []Range{{0, 9}}, Sort: []string{"by_recency"}, TimelineLimit: &limit})

	first := l.Snapshot(false)
	require.Equal(t, []string{"by_recency"}, first.Sort)
	require.NotNil(t, first.TimelineLimit)
	require.Equal(t, 20, *first.TimelineLimit)

	l.ClearModified()
	require.False(t, l.Modified())

	l.UpdateRanges([]Range{{0, 19}})
	require.False(t, l.Modified(), "update_ranges alone must never set modified")

	second := l.Snapshot(false)
	require.Equal(t, []Range{{0, 19}}, second.Ranges)
	require.Nil(t, second.Sort)
	require.Nil(t, second.TimelineLimit)
}

func TestListReplaceClearsIndexMapAndJoinedCount(t *testing.T) {
	l := NewList(ListParams{Ranges: []Range{{0, 2}}})
	l.roomIndexToRoomID[0] = "A"
	l.SetJoinedCount(5)
	l.ClearModified()

	l.Replace(ListParams{Ranges: []Range{{0, 2}}, Sort: []string{"by_name"}})

	require.True(t, l.Modified())
	require.Equal(t, 0, l.JoinedCount())
	require.Empty(t, l.CloneIndexMap())
}

func TestListIndexInRange(t *testing.T) {
	l := NewList(ListParams{Ranges: []Range{{0, 2}, {5, 7}}})
	require.True(t, l.IndexInRange(0))
	require.True(t, l.IndexInRange(2))
	require.True(t, l.IndexInRange(6))
	require.False(t, l.IndexInRange(3))
	require.False(t, l.IndexInRange(8))
}

func TestListCloneParamsIsIndependent(t *testing.T) {
	l := NewList(ListParams{Ranges: []Range{{0, 2}}, Sort: []string{"by_recency"}})
	clone := l.CloneParams()
	clone.Sort[0] = "mutated"
	require.Equal(t, "by_recency", l.params.Sort[0])
}
