// Package readsplit routes store operations between a primary node and its
// read replicas.
//
// Main features:
//
// - Read-only operations are balanced over the read pool according to
// round-robin strategy.
//
// - Writes and unknown operations go to the primary.
//
// - Transactional sequences (Multi, Pipelined) pin every operation to the
// primary until Exec or Discard.
package readsplit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ice-blockchain/go-readsplit/affinity"
)

// Opts describes the nodes behind a Router and how it routes to them.
type Opts struct {
	// Primary is the write-authoritative node. Required.
	Primary Node
	// Replicas are read-only nodes in the order they are balanced.
	Replicas []Node
	// ReadMaster controls whether the primary serves reads together with
	// the replicas. It is placed last in the read pool. nil means true.
	ReadMaster *bool
	// Commands are registered on top of affinity.DefaultGroups.
	Commands affinity.Groups
	// Logger receives router events. A SlogLogger over slog.Default() is
	// used if nil.
	Logger Logger
	// Observer is notified about routing decisions, e.g. a
	// *metrics.RouterMetrics.
	Observer Observer
}

/*
RouterInfo structure for information about a router:

- ReadPool is the number of nodes balanced for read-only operations.

- Affinities contains registered and already resolved operations.
*/
type RouterInfo struct {
	ID            string
	Replicas      int
	ReadPool      int
	ReadMaster    bool
	InTransaction bool
	Affinities    map[string]affinity.Affinity
}

// Router is a single entry point for operations on a primary and its
// replicas. It is safe for concurrent use.
type Router struct {
	id         uuid.UUID
	primary    Node
	replicas   []Node
	all        []Node
	readPool   []Node
	readMaster bool

	table    *affinity.Table
	rr       *roundRobinStrategy
	txn      txnLock
	logger   Logger
	observer Observer
}

// New creates a router. The read pool consists of the replicas followed by
// the primary if opts.ReadMaster is not false; broadcast operations are sent
// to the replicas in order and then to the primary.
func New(opts Opts) (*Router, error) {
	if opts.Primary == nil {
		return nil, &ConfigurationError{Err: ErrMissingPrimary}
	}
	for i, replica := range opts.Replicas {
		if replica == nil {
			return nil, &ConfigurationError{Err: fmt.Errorf("replica %d is nil", i)}
		}
	}

	table, err := affinity.NewTable(opts.Commands)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	readMaster := opts.ReadMaster == nil || *opts.ReadMaster

	replicas := make([]Node, len(opts.Replicas))
	copy(replicas, opts.Replicas)

	all := make([]Node, 0, len(replicas)+1)
	all = append(all, replicas...)
	all = append(all, opts.Primary)

	readPool := make([]Node, 0, len(replicas)+1)
	readPool = append(readPool, replicas...)
	primaryIndex := -1
	if readMaster {
		primaryIndex = len(readPool)
		readPool = append(readPool, opts.Primary)
	}

	r := &Router{
		id:         uuid.New(),
		primary:    opts.Primary,
		replicas:   replicas,
		all:        all,
		readPool:   readPool,
		readMaster: readMaster,
		table:      table,
		logger:     opts.Logger,
		observer:   opts.Observer,
	}
	r.rr = newRoundRobinStrategy(readPool, opts.Primary, primaryIndex, &r.txn)

	if r.logger == nil {
		r.logger = NewSlogLogger(nil)
	}
	if r.observer == nil {
		r.observer = noopObserver{}
	}

	r.report(RouterCreatedEvent{
		baseEvent:  newBaseEvent(r.id),
		Replicas:   len(replicas),
		ReadPool:   len(readPool),
		ReadMaster: readMaster,
	})

	return r, nil
}

// Execute performs the named operation on the node chosen by its affinity
// and returns the node's reply and error unchanged.
//
// An operation that was not registered is classified on its first call: it
// fails with an *UnsupportedError if the primary does not support it,
// otherwise it is cached as Replica if it is a known read-only command and
// as Primary in any other case.
func (r *Router) Execute(name string, args ...interface{}) (interface{}, error) {
	a, err := r.classify(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, target, err := r.dispatch(name, a, args)
	r.observer.ObserveDispatch(name, a, target, time.Since(start), err)

	return reply, err
}

// ExecuteTyped performs the named operation like Execute and decodes the
// reply into result.
func (r *Router) ExecuteTyped(name string, result interface{}, args ...interface{}) error {
	reply, err := r.Execute(name, args...)
	if err != nil {
		return err
	}
	return decodeReply(reply, result)
}

// Affinity returns the affinity of a registered or already resolved
// operation. It never probes the primary.
func (r *Router) Affinity(name string) (affinity.Affinity, bool) {
	return r.table.Lookup(name)
}

// Primary returns the primary node.
func (r *Router) Primary() Node {
	return r.primary
}

// Replicas returns a copy of the replica list.
func (r *Router) Replicas() []Node {
	ret := make([]Node, len(r.replicas))
	copy(ret, r.replicas)
	return ret
}

// ReadPool returns a copy of the nodes balanced for read-only operations.
func (r *Router) ReadPool() []Node {
	return r.rr.GetNodes()
}

// InTransaction reports whether operations are pinned to the primary.
func (r *Router) InTransaction() bool {
	return r.txn.pinned()
}

// Info returns information about the router.
func (r *Router) Info() RouterInfo {
	return RouterInfo{
		ID:            r.id.String(),
		Replicas:      len(r.replicas),
		ReadPool:      len(r.readPool),
		ReadMaster:    r.readMaster,
		InTransaction: r.txn.pinned(),
		Affinities:    r.table.Snapshot(),
	}
}

//
// private
//

func (r *Router) classify(name string) (affinity.Affinity, error) {
	// The table calls the probe in this goroutine or not at all.
	probed := false
	a, err := r.table.Classify(name, func(op string) bool {
		probed = true
		return r.primary.Supports(op)
	})
	if err != nil {
		if errors.Is(err, ErrUnsupportedOperation) {
			r.report(UnsupportedOperationEvent{
				baseEvent: newBaseEvent(r.id),
				Op:        name,
				Error:     err,
			})
		}
		return a, err
	}

	if probed {
		r.observer.ObserveResolution(name, a)
		r.report(AffinityResolvedEvent{
			baseEvent: newBaseEvent(r.id),
			Op:        name,
			Affinity:  a,
		})
	}
	return a, nil
}

func (r *Router) dispatch(name string, a affinity.Affinity,
	args []interface{}) (interface{}, Target, error) {
	if r.txn.pinned() {
		reply, err := r.primary.Execute(name, args...)
		return reply, TargetPinned, err
	}

	switch a {
	case affinity.Replica:
		node, isPrimary := r.rr.GetNextNode()
		target := TargetReplica
		if isPrimary {
			target = TargetPrimary
		}
		reply, err := node.Execute(name, args...)
		return reply, target, err
	case affinity.Broadcast:
		reply, err := r.broadcast(name, args)
		return reply, TargetBroadcast, err
	default:
		reply, err := r.primary.Execute(name, args...)
		return reply, TargetPrimary, err
	}
}

// broadcast sends the operation to every node, replicas first and the primary
// last, and stops on the first failure. The primary's reply is returned.
func (r *Router) broadcast(name string, args []interface{}) (interface{}, error) {
	var reply interface{}
	for i, node := range r.all {
		res, err := node.Execute(name, args...)
		if err != nil {
			r.report(BroadcastFailedEvent{
				baseEvent: newBaseEvent(r.id),
				Op:        name,
				Index:     i,
				Applied:   i,
				Error:     err,
			})
			return nil, &BroadcastError{
				Op:      name,
				Index:   i,
				Applied: i,
				Nodes:   len(r.all),
				Primary: i == len(r.all)-1,
				Err:     err,
			}
		}
		reply = res
	}
	return reply, nil
}

func (r *Router) report(event LogEvent) {
	r.logger.Report(event, r)
}

func decodeReply(reply interface{}, result interface{}) error {
	data, err := msgpack.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}
	if err := msgpack.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}
