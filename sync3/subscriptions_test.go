package sync3

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscriptionsDiffAndApplyConfirmed(t *testing.T) {
	s := NewSubscriptions()
	s.confirmed = sliceToSet([]string{"b", "c"})
	s.SetDesired([]string{"a", "b"})

	newSubs, goneSubs := s.Diff()
	sort.Strings(newSubs)
	sort.Strings(goneSubs)
	require.Equal(t, []string{"a"}, newSubs)
	require.Equal(t, []string{"c"}, goneSubs)

	s.ApplyConfirmed(newSubs, goneSubs)
	confirmed := setToSlice(s.confirmed)
	sort.Strings(confirmed)
	require.Equal(t, []string{"a", "b"}, confirmed)
}

func TestSubscriptionsSetParamsClearsConfirmed(t *testing.T) {
	s := NewSubscriptions()
	s.SetDesired([]string{"a"})
	s.ApplyConfirmed([]string{"a"}, nil)
	require.Len(t, setToSlice(s.confirmed), 1)

	limit := 10
	s.SetParams(SubscriptionParams{TimelineLimit: &limit})
	require.Empty(t, setToSlice(s.confirmed))

	newSubs, _ := s.Diff()
	require.Equal(t, []string{"a"}, newSubs)
}

func TestSubscriptionsParamsClone(t *testing.T) {
	s := NewSubscriptions()
	limit := 5
	s.SetParams(SubscriptionParams{TimelineLimit: &limit})
	got := s.Params()
	*got.TimelineLimit = 99
	require.Equal(t, 5, *s.params.TimelineLimit)
}
