package readsplit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

type txn struct {
	id      uuid.UUID
	kind    TxnKind
	started time.Time
}

// txnLock pins a router to its primary. mutex is held from begin until the
// matching exec or discard, so transactions of one router never interleave.
type txnLock struct {
	mutex sync.Mutex
	state state
	// meta guards cur.
	meta sync.Mutex
	cur  *txn
}

func (l *txnLock) pinned() bool {
	return l.state.get() == lockedState
}

func (l *txnLock) acquire(kind TxnKind) *txn {
	l.mutex.Lock()

	t := &txn{id: uuid.New(), kind: kind, started: time.Now()}

	l.meta.Lock()
	l.cur = t
	l.state.set(lockedState)
	l.meta.Unlock()

	return t
}

func (l *txnLock) current() *txn {
	l.meta.Lock()
	defer l.meta.Unlock()

	return l.cur
}

func (l *txnLock) owns(t *txn) bool {
	return t != nil && l.current() == t
}

// release unpins the router if t is still the active transaction. It
// reports false if t was already released.
func (l *txnLock) release(t *txn) bool {
	l.meta.Lock()
	if t == nil || l.cur != t {
		l.meta.Unlock()
		return false
	}
	l.cur = nil
	l.state.set(idleState)
	l.meta.Unlock()

	l.mutex.Unlock()
	return true
}

// BeginMulti pins the router to the primary and starts a transaction on it.
// It blocks while another transaction of the router is in progress. The
// caller must end the transaction with Exec or Discard, on error paths too.
// Transactions do not nest: a BeginMulti, BeginPipeline, Multi or Pipelined
// call made before the current transaction ends blocks forever.
func (r *Router) BeginMulti() error {
	_, err := r.begin(TxnMulti)
	return err
}

// BeginPipeline pins the router to the primary and starts a pipeline on it.
// It blocks while another transaction of the router is in progress. The
// caller must end the pipeline with Exec or Discard, on error paths too.
// Like BeginMulti it must not be nested.
func (r *Router) BeginPipeline() error {
	_, err := r.begin(TxnPipeline)
	return err
}

// Exec delegates to the primary's Exec and unpins the router. It must be
// called by the goroutine that began the transaction. Without an active
// transaction the call is passed to the primary as is; the pass-through holds
// the transaction lock, so it waits for a transaction begun concurrently by
// another goroutine instead of ending it.
func (r *Router) Exec() (interface{}, error) {
	return r.finish(TxnExec)
}

// Discard delegates to the primary's Discard and unpins the router. The
// ownership and pass-through rules of Exec apply.
func (r *Router) Discard() (interface{}, error) {
	return r.finish(TxnDiscard)
}

// Multi runs fn inside a transaction on the primary. Every operation issued
// through the router while fn runs goes to the primary. The transaction is
// executed if fn returns nil and discarded otherwise; the fn error is
// returned in the latter case. The router is unpinned on every exit path,
// including a panic in fn.
//
// fn may end the transaction itself by calling Exec or Discard, then Multi
// does not end it again and returns a nil reply. fn must not begin another
// transaction through the same router: nested Multi or Pipelined calls
// deadlock.
func (r *Router) Multi(fn func() error) (interface{}, error) {
	return r.block(TxnMulti, fn)
}

// Pipelined runs fn inside a pipeline on the primary with the same rules as
// Multi. The reply is the primary's Exec reply, usually the replies of all
// buffered operations.
func (r *Router) Pipelined(fn func() error) (interface{}, error) {
	return r.block(TxnPipeline, fn)
}

//
// private
//

func (r *Router) transactor() (Transactor, error) {
	t, ok := r.primary.(Transactor)
	if !ok {
		return nil, ErrTransactionsUnsupported
	}
	return t, nil
}

func (r *Router) begin(kind TxnKind) (*txn, error) {
	tr, err := r.transactor()
	if err != nil {
		return nil, err
	}

	t := r.txn.acquire(kind)

	switch kind {
	case TxnPipeline:
		err = tr.BeginPipeline()
	default:
		err = tr.BeginMulti()
	}
	if err != nil {
		r.txn.release(t)
		return nil, err
	}

	r.report(TransactionBeganEvent{
		baseEvent: newBaseEvent(r.id),
		TxnID:     t.id,
		Kind:      t.kind,
	})
	return t, nil
}

func (r *Router) finish(outcome TxnOutcome) (interface{}, error) {
	if t := r.txn.current(); t != nil {
		return r.end(t, outcome)
	}
	return r.passThrough(outcome)
}

func (r *Router) passThrough(outcome TxnOutcome) (interface{}, error) {
	tr, err := r.transactor()
	if err != nil {
		return nil, err
	}

	r.txn.mutex.Lock()
	defer r.txn.mutex.Unlock()

	if outcome == TxnDiscard {
		return tr.Discard()
	}
	return tr.Exec()
}

func (r *Router) end(t *txn, outcome TxnOutcome) (reply interface{}, err error) {
	tr, err := r.transactor()
	if err != nil {
		return nil, err
	}

	defer func() {
		if !r.txn.release(t) {
			return
		}
		elapsed := time.Since(t.started)
		r.observer.ObserveTransaction(t.kind, outcome, elapsed, err)
		r.report(TransactionEndedEvent{
			baseEvent: newBaseEvent(r.id),
			TxnID:     t.id,
			Kind:      t.kind,
			Outcome:   outcome,
			Duration:  elapsed,
			Error:     err,
		})
	}()

	if outcome == TxnDiscard {
		return tr.Discard()
	}
	return tr.Exec()
}

func (r *Router) block(kind TxnKind, fn func() error) (interface{}, error) {
	t, err := r.begin(kind)
	if err != nil {
		return nil, err
	}

	finished := false
	defer func() {
		// fn panicked.
		if !finished && r.txn.owns(t) {
			_, _ = r.end(t, TxnDiscard)
		}
	}()

	var fnErr error
	if fn != nil {
		fnErr = fn()
	}
	finished = true

	if !r.txn.owns(t) {
		return nil, fnErr
	}

	if fnErr != nil {
		if _, err := r.end(t, TxnDiscard); err != nil {
			return nil, multierror.Append(fnErr, err)
		}
		return nil, fnErr
	}

	return r.end(t, TxnExec)
}
