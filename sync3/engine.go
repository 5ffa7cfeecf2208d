package sync3

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matrix-org/sliding-sync-client/internal"
)

// BufferPeriod is added to the poll timeout to derive ClientTimeout, so the
// client always times out strictly after the server is expected to.
const BufferPeriod = 10 * time.Second

// DefaultBackoff is how long the loop sleeps after a non-abort error before
// retrying.
const DefaultBackoff = 3 * time.Second

type engineState int

const (
	stateIdle engineState = iota
	stateInFlight
	stateBackoff
	stateTerminated
)

func (s engineState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateInFlight:
		return "in_flight"
	case stateBackoff:
		return "backoff"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Engine is the outer sync loop: it composes requests from list and
// subscription state, invokes a Transport, serializes responses through
// OpReplayer and the event channels, and handles interruption, backoff, and
// shutdown. One Engine drives exactly one long-poll connection.
type Engine struct {
	mu sync.Mutex

	transport   Transport
	baseURL     string
	pollTimeout time.Duration
	backoff     time.Duration

	lists             []*List
	listModifiedCount int
	subs              *Subscriptions
	extReg            *Registry
	ledger            *Ledger

	pos           string
	pendingTxnID  string
	needsResend   bool
	state         engineState
	terminated    bool
	inFlightCancel context.CancelFunc
	wakeCh        chan struct{}
	stopCh        chan struct{}

	// RoomDataCh, LifecycleCh and ListCh carry the three core event
	// families. Emission order within one response is contractual:
	// RequestFinished -> RoomData* -> Complete -> List* (at most once per
	// list index). ExtensionCh carries raw payloads from built-in
	// extensions outside that core ordering contract.
	RoomDataCh  chan RoomDataEvent
	LifecycleCh chan LifecycleEvent
	ListCh      chan ListEvent
	ExtensionCh chan ExtensionEvent
}

// EngineConfig bundles the construction-time parameters for an Engine.
type EngineConfig struct {
	Transport   Transport
	BaseURL     string
	PollTimeout time.Duration
	Backoff     time.Duration // zero means DefaultBackoff
	Lists       []ListParams
}

// NewEngine constructs an Engine. It does not start the loop; call Start.
func NewEngine(cfg EngineConfig) *Engine {
	registerMetrics()
	backoff := cfg.Backoff
	if backoff == 0 {
		backoff = DefaultBackoff
	}
	e := &Engine{
		transport:   cfg.Transport,
		baseURL:     cfg.BaseURL,
		pollTimeout: cfg.PollTimeout,
		backoff:     backoff,
		subs:        NewSubscriptions(),
		extReg:      NewRegistry(),
		wakeCh:      make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		RoomDataCh:  make(chan RoomDataEvent, 64),
		LifecycleCh: make(chan LifecycleEvent, 16),
		ListCh:      make(chan ListEvent, 64),
		ExtensionCh: make(chan ExtensionEvent, 16),
	}
	e.ledger = NewLedger(cfg.Transport.MakeTxnID)
	for _, p := range cfg.Lists {
		e.lists = append(e.lists, NewList(p))
	}
	return e
}

// State reports the engine's current loop phase (idle, in_flight, backoff or
// terminated), mostly useful for tests and diagnostics.
func (e *Engine) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.String()
}

// ListLength returns the number of lists.
func (e *Engine) ListLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lists)
}

// ListData is the clone returned by GetListData.
type ListData struct {
	JoinedCount       int
	RoomIndexToRoomID map[int]string
}

// GetListData returns a clone of list i's derived state, or ok=false if i is
// out of range.
func (e *Engine) GetListData(i int) (data ListData, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.lists) {
		return ListData{}, false
	}
	l := e.lists[i]
	return ListData{JoinedCount: l.JoinedCount(), RoomIndexToRoomID: l.CloneIndexMap()}, true
}

// GetList returns a clone of list i's params, or ok=false if i is out of
// range.
func (e *Engine) GetList(i int) (params ListParams, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.lists) {
		return ListParams{}, false
	}
	return e.lists[i].CloneParams(), true
}

// SetListRanges updates only list i's ranges and triggers a resend.
func (e *Engine) SetListRanges(i int, ranges []Range) (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.lists) {
		return nil, ErrIndexOutOfBounds{Index: i, Length: len(e.lists)}
	}
	e.lists[i].UpdateRanges(ranges)
	return e.issueResendLocked(), nil
}

// SetList replaces list i's params (or appends a new list when i ==
// len(lists)) and triggers a resend.
func (e *Engine) SetList(i int, params ListParams) (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case i == len(e.lists):
		e.lists = append(e.lists, NewList(params))
	case i >= 0 && i < len(e.lists):
		e.lists[i].Replace(params)
	default:
		return nil, ErrIndexOutOfBounds{Index: i, Length: len(e.lists)}
	}
	e.listModifiedCount++
	return e.issueResendLocked(), nil
}

// GetRoomSubscriptions returns a clone of the desired subscription set.
func (e *Engine) GetRoomSubscriptions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subs.Desired()
}

// ModifyRoomSubscriptions replaces the desired subscription set and
// triggers a resend.
func (e *Engine) ModifyRoomSubscriptions(roomIDs []string) *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs.SetDesired(roomIDs)
	return e.issueResendLocked()
}

// ModifyRoomSubscriptionInfo replaces the subscription params template,
// clears confirmed (so every desired room re-subscribes with the new
// template), and triggers a resend.
func (e *Engine) ModifyRoomSubscriptionInfo(params SubscriptionParams) *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs.SetParams(params)
	return e.issueResendLocked()
}

// RegisterExtension registers ext, failing with ErrDuplicateExtension if its
// name is already taken.
func (e *Engine) RegisterExtension(ext Extension) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.extReg.Register(ext)
}

// Resend interrupts the current long-poll (if any) and returns a completion
// handle resolved or rejected once a subsequent response acknowledges the
// associated txn_id.
func (e *Engine) Resend() *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.issueResendLocked()
}

func (e *Engine) issueResendLocked() *Handle {
	resendTotal.Inc()
	txnID, handle := e.ledger.Issue()
	e.pendingTxnID = txnID
	e.needsResend = true
	if e.inFlightCancel != nil {
		e.inFlightCancel()
	}
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
	return handle
}

// Stop terminates the loop, aborts any in-flight request, and detaches all
// listeners. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return
	}
	e.terminated = true
	e.state = stateTerminated
	if e.inFlightCancel != nil {
		e.inFlightCancel()
	}
	close(e.stopCh)
	e.mu.Unlock()
}

// requestContext is the per-iteration bookkeeping composeRequest needs to
// hand back to the response-processing half of the loop.
type requestContext struct {
	newSubs, goneSubs []string
	isInitial         bool
}

// Start runs the main loop until Stop() is observed or ctx is cancelled. It
// is intended to run in its own goroutine.
func (e *Engine) Start(ctx context.Context) {
	defer func() {
		close(e.RoomDataCh)
		close(e.LifecycleCh)
		close(e.ListCh)
		close(e.ExtensionCh)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		e.mu.Lock()
		if e.terminated {
			e.mu.Unlock()
			return
		}
		e.needsResend = false
		e.state = stateIdle
		listModSnapshot := e.listModifiedCount
		reqCtx, cancel := context.WithCancel(ctx)
		e.inFlightCancel = cancel
		e.state = stateInFlight
		req, rc := e.composeRequestLocked()
		e.mu.Unlock()

		span, reqCtx2 := internal.StartSpan(reqCtx, "Engine.Poll")
		internal.SetTag(span, "is_initial", rc.isInitial)
		start := time.Now()
		resp, err := e.transport.SlidingSync(reqCtx2, req, e.baseURL)
		aborted := err != nil && reqCtx2.Err() != nil
		span.Finish()
		cancel()

		e.mu.Lock()
		e.inFlightCancel = nil
		e.mu.Unlock()

		if err != nil {
			if aborted {
				// The request was cancelled by resend() or Stop(), not a
				// wire failure: classify it as an AbortError, skip backoff
				// and loop immediately. The Transport never constructs
				// AbortError itself; only the engine's own cancel path does.
				logrus.WithError(newAbortError(reqCtx2)).Debug("[SYNC_ENGINE] poll aborted, resending immediately")
				pollTotal.WithLabelValues("abort").Inc()
				pollDuration.WithLabelValues("abort").Observe(time.Since(start).Seconds())
				continue
			}
			e.handlePollError(err, start)
			e.mu.Lock()
			e.state = stateBackoff
			e.mu.Unlock()
			select {
			case <-time.After(e.backoff):
			case <-e.wakeCh:
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			}
			continue
		}

		pollTotal.WithLabelValues("success").Inc()
		pollDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
		if !e.processResponse(resp, rc, listModSnapshot) {
			return
		}
	}
}

func (e *Engine) handlePollError(err error, start time.Time) {
	var httpErr *HTTPError
	outcome := "transport_error"
	if errors.As(err, &httpErr) {
		outcome = "http_error"
	} else {
		logrus.WithError(err).Warn("[SYNC_ENGINE] transport error, backing off")
	}
	pollTotal.WithLabelValues(outcome).Inc()
	pollDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	e.emitLifecycle(LifecycleEvent{State: RequestFinished, Err: err})
}

// composeRequestLocked builds the next request body from current state. Must
// be called with e.mu held.
func (e *Engine) composeRequestLocked() (Request, requestContext) {
	isInitial := e.pos == ""
	req := Request{
		Pos:           e.pos,
		Timeout:       int(e.pollTimeout / time.Millisecond),
		ClientTimeout: int((e.pollTimeout + BufferPeriod) / time.Millisecond),
	}
	for _, l := range e.lists {
		req.Lists = append(req.Lists, l.Snapshot(false))
	}
	newSubs, goneSubs := e.subs.Diff()
	if len(goneSubs) > 0 {
		req.UnsubscribeRooms = append([]string(nil), goneSubs...)
	}
	if len(newSubs) > 0 {
		params := e.subs.Params()
		req.RoomSubscriptions = make(map[string]SubscriptionParams, len(newSubs))
		for _, id := range newSubs {
			req.RoomSubscriptions[id] = params
		}
	}
	req.Extensions = e.extReg.ComposeRequest(isInitial)
	if e.pendingTxnID != "" {
		req.TxnID = e.pendingTxnID
		e.pendingTxnID = ""
	}
	return req, requestContext{newSubs: newSubs, goneSubs: goneSubs, isInitial: isInitial}
}

// processResponse applies a successful response, in the contractual event
// order. Returns false if Stop() raced the processing (so Start should
// return without looping again).
func (e *Engine) processResponse(resp *Response, rc requestContext, listModSnapshot int) bool {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return false
	}
	e.pos = resp.Pos
	e.subs.ApplyConfirmed(rc.newSubs, rc.goneSubs)
	doNotUpdateList := e.listModifiedCount != listModSnapshot
	for _, l := range e.lists {
		l.ClearModified()
	}
	e.mu.Unlock()

	e.emitLifecycle(LifecycleEvent{State: RequestFinished, Response: resp})

	e.mu.Lock()
	e.extReg.Dispatch(PreProcess, resp.Extensions)
	e.mu.Unlock()
	e.dispatchExtensionEvents(resp.Extensions)

	for _, roomID := range sortedRoomIDs(resp.Rooms) {
		e.emitRoomData(RoomDataEvent{RoomID: roomID, Data: normalizeRoomData(resp.Rooms[roomID])})
	}

	var recorded []int
	e.mu.Lock()
	for i, lr := range resp.Lists {
		if i >= len(e.lists) {
			continue
		}
		if doNotUpdateList {
			e.lists[i].SetJoinedCount(lr.Count)
			continue
		}
		if len(lr.Ops) > 0 {
			ReplayOps(e.lists[i], lr)
			recorded = append(recorded, i)
		} else {
			e.lists[i].SetJoinedCount(lr.Count)
		}
	}
	e.mu.Unlock()

	e.emitLifecycle(LifecycleEvent{State: Complete, Response: resp})
	e.mu.Lock()
	e.extReg.Dispatch(PostProcess, resp.Extensions)
	e.mu.Unlock()

	for _, i := range recorded {
		e.mu.Lock()
		ev := ListEvent{Index: i, JoinedCount: e.lists[i].JoinedCount(), IndexMap: e.lists[i].CloneIndexMap()}
		e.mu.Unlock()
		e.emitList(ev)
	}

	if resp.TxnID != "" {
		e.mu.Lock()
		e.ledger.Acknowledge(resp.TxnID)
		e.mu.Unlock()
	}
	return true
}

// normalizeRoomData defaults RequiredState/Timeline to empty sequences
// rather than nil, per the engine's emission contract.
func normalizeRoomData(d RoomData) RoomData {
	if d.RequiredState == nil {
		d.RequiredState = emptyRawMessages
	}
	if d.Timeline == nil {
		d.Timeline = emptyRawMessages
	}
	return d
}

var emptyRawMessages = []json.RawMessage{}

func sortedRoomIDs(rooms map[string]RoomData) []string {
	ids := make([]string, 0, len(rooms))
	for id := range rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) emitLifecycle(ev LifecycleEvent) {
	select {
	case e.LifecycleCh <- ev:
	case <-e.stopCh:
	}
}

func (e *Engine) emitRoomData(ev RoomDataEvent) {
	select {
	case e.RoomDataCh <- ev:
	case <-e.stopCh:
	}
}

func (e *Engine) emitList(ev ListEvent) {
	select {
	case e.ListCh <- ev:
	case <-e.stopCh:
	}
}

func (e *Engine) dispatchExtensionEvents(data map[string]json.RawMessage) {
	for name, payload := range data {
		select {
		case e.ExtensionCh <- ExtensionEvent{Name: name, Data: payload}:
		case <-e.stopCh:
			return
		}
	}
}
