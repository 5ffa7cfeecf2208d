package sync3

// Subscriptions tracks the desired vs confirmed room-subscription sets, plus
// the sticky params template applied to every subscribed room.
type Subscriptions struct {
	desired   map[string]struct{}
	confirmed map[string]struct{}
	params    SubscriptionParams
}

// NewSubscriptions constructs an empty subscription set.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		desired:   make(map[string]struct{}),
		confirmed: make(map[string]struct{}),
	}
}

// Desired returns a clone of the desired set.
func (s *Subscriptions) Desired() []string {
	return setToSlice(s.desired)
}

// SetDesired replaces the desired set wholesale.
func (s *Subscriptions) SetDesired(roomIDs []string) {
	s.desired = sliceToSet(roomIDs)
}

// SetParams replaces the subscription params template. Per spec this clears
// confirmed entirely so every desired room is resubscribed with the new
// template on the next request.
func (s *Subscriptions) SetParams(params SubscriptionParams) {
	s.params = params.Clone()
	s.confirmed = make(map[string]struct{})
}

// Params returns a clone of the current subscription params template.
func (s *Subscriptions) Params() SubscriptionParams {
	return s.params.Clone()
}

// Diff computes new = desired \ confirmed and gone = confirmed \ desired.
func (s *Subscriptions) Diff() (newSubs, goneSubs []string) {
	for id := range s.desired {
		if _, ok := s.confirmed[id]; !ok {
			newSubs = append(newSubs, id)
		}
	}
	for id := range s.confirmed {
		if _, ok := s.desired[id]; !ok {
			goneSubs = append(goneSubs, id)
		}
	}
	return
}

// ApplyConfirmed folds a successfully-transmitted diff into confirmed:
// confirmed = (confirmed ∪ newSubs) \ goneSubs.
func (s *Subscriptions) ApplyConfirmed(newSubs, goneSubs []string) {
	for _, id := range newSubs {
		s.confirmed[id] = struct{}{}
	}
	for _, id := range goneSubs {
		delete(s.confirmed, id)
	}
}

func sliceToSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func setToSlice(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}
