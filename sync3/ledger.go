package sync3

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ErrSuperseded is the rejection reason given to a ledger entry's handle
// when the server acknowledges a later transaction, implying this one was
// superseded without being individually applied.
var ErrSuperseded = errSuperseded{}

type errSuperseded struct{}

func (errSuperseded) Error() string { return "transaction superseded by a later acknowledgement" }

// Result is what a Handle resolves to: the txn_id the caller issued, and a
// non-nil Err if it was superseded rather than individually acknowledged.
type Result struct {
	TxnID string
	Err   error
}

// Handle is a single-fire completion handle returned by Ledger.Issue. It is
// safe to Wait on from any goroutine; it fires exactly once.
type Handle struct {
	txnID    string
	resultCh chan Result
	fired    bool
}

func newHandle(txnID string) *Handle {
	return &Handle{txnID: txnID, resultCh: make(chan Result, 1)}
}

func (h *Handle) resolve() {
	if h.fired {
		return
	}
	h.fired = true
	h.resultCh <- Result{TxnID: h.txnID}
}

func (h *Handle) reject() {
	if h.fired {
		return
	}
	h.fired = true
	h.resultCh <- Result{TxnID: h.txnID, Err: ErrSuperseded}
}

// Wait blocks until the handle fires or ctx is cancelled.
func (h *Handle) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-h.resultCh:
		return r.TxnID, r.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type ledgerEntry struct {
	txnID  string
	handle *Handle
}

// Ledger is the ordered collection of outstanding client transactions. It is
// owned by the Engine: Issue is called from resend(), Acknowledge from the
// main loop after a successful response.
type Ledger struct {
	entries []ledgerEntry
	mintID  func() string
}

// NewLedger constructs a ledger that mints txn ids via mintID (normally
// Transport.MakeTxnID).
func NewLedger(mintID func() string) *Ledger {
	return &Ledger{mintID: mintID}
}

// Issue mints a fresh txn id, appends a ledger entry, and returns both the
// id and its completion handle.
func (l *Ledger) Issue() (string, *Handle) {
	txnID := l.mintID()
	h := newHandle(txnID)
	l.entries = append(l.entries, ledgerEntry{txnID: txnID, handle: h})
	return txnID, h
}

// Acknowledge locates the entry for txnID. If found: every entry strictly
// earlier in the ledger is rejected with its own txn_id (it was superseded),
// the matching entry is resolved with txnID, and all entries up to and
// including it are removed. If not found, the ack is logged and ignored.
func (l *Ledger) Acknowledge(txnID string) {
	idx := -1
	for i, e := range l.entries {
		if e.txnID == txnID {
			idx = i
			break
		}
	}
	if idx == -1 {
		logrus.WithField("txn_id", txnID).Debug(
			"[SYNC_ENGINE] acknowledgement for unknown txn_id, ignoring")
		return
	}
	for i := 0; i < idx; i++ {
		l.entries[i].handle.reject()
		txnAcknowledgedTotal.WithLabelValues("superseded").Inc()
	}
	l.entries[idx].handle.resolve()
	txnAcknowledgedTotal.WithLabelValues("resolved").Inc()
	l.entries = l.entries[idx+1:]
}

// Len returns the number of outstanding entries, mostly useful for tests.
func (l *Ledger) Len() int {
	return len(l.entries)
}
