// Package tarantoolnode adapts a Tarantool connection to readsplit.Node.
//
// Operations are stored procedures called with IPROTO_CALL. A primary node
// also implements readsplit.Transactor: BeginMulti opens an interactive
// transaction in a new stream, BeginPipeline sends the following calls
// without waiting for replies until Exec.
package tarantoolnode

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/tarantool/go-tarantool/v2"

	"github.com/ice-blockchain/go-readsplit"
)

var (
	ErrNoTransaction     = errors.New("no active transaction")
	ErrTransactionActive = errors.New("transaction is already active")
)

// supportsExpr reports whether a stored procedure or a global Lua function
// with the given dotted name exists on the instance.
const supportsExpr = `
local name = ...
if box.schema.func.exists(name) then
    return true
end
local obj = _G
for part in string.gmatch(name, '[^.]+') do
    if type(obj) ~= 'table' then
        return false
    end
    obj = obj[part]
end
return type(obj) == 'function'
`

type mode uint32

const (
	modeNone mode = iota
	modeMulti
	modePipeline
)

// Node is a readsplit.Node and readsplit.Transactor over a single Tarantool
// connection. It is safe for concurrent use, but only one transaction may be
// active at a time.
type Node struct {
	conn    *tarantool.Connection
	base    session
	streams func() (session, error)

	mutex  sync.Mutex
	mode   mode
	stream session
	queued []pending
}

var (
	_ readsplit.Node       = (*Node)(nil)
	_ readsplit.Transactor = (*Node)(nil)
)

// New wraps an established connection. The connection is owned by the
// caller.
func New(conn *tarantool.Connection) *Node {
	return newNode(doerSession{doer: conn}, func() (session, error) {
		stream, err := conn.NewStream()
		if err != nil {
			return nil, err
		}
		return doerSession{doer: stream}, nil
	}, conn)
}

// Connect establishes a connection with the dialer and wraps it. The node
// owns the connection, see Close.
func Connect(ctx context.Context, dialer tarantool.Dialer, opts tarantool.Opts) (*Node, error) {
	conn, err := tarantool.Connect(ctx, dialer, opts)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

func newNode(base session, streams func() (session, error), conn *tarantool.Connection) *Node {
	return &Node{
		conn:    conn,
		base:    base,
		streams: streams,
	}
}

// Execute calls the stored procedure and returns its results. In pipeline
// mode the request is sent without waiting and a nil reply is returned, the
// results are returned by Exec.
func (n *Node) Execute(name string, args ...interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}

	n.mutex.Lock()
	switch n.mode {
	case modePipeline:
		n.queued = append(n.queued, n.base.call(name, args))
		n.mutex.Unlock()
		return nil, nil
	case modeMulti:
		s := n.stream
		n.mutex.Unlock()
		return s.call(name, args).Get()
	default:
		n.mutex.Unlock()
		return n.base.call(name, args).Get()
	}
}

// Supports reports whether the instance knows the named function. Any error
// is reported as false.
func (n *Node) Supports(name string) bool {
	data, err := n.base.eval(supportsExpr, []interface{}{name}).Get()
	if err != nil || len(data) == 0 {
		return false
	}
	ok, _ := data[0].(bool)
	return ok
}

// BeginMulti opens a stream and begins an interactive transaction in it.
func (n *Node) BeginMulti() error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.mode != modeNone {
		return ErrTransactionActive
	}

	stream, err := n.streams()
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.begin(); err != nil {
		return err
	}

	n.mode = modeMulti
	n.stream = stream
	return nil
}

// BeginPipeline makes Execute send requests without waiting for replies.
func (n *Node) BeginPipeline() error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.mode != modeNone {
		return ErrTransactionActive
	}

	n.mode = modePipeline
	n.queued = nil
	return nil
}

// Exec commits the transaction or waits for all pipelined replies. The
// pipeline reply is a slice with results of every call in order; a failed
// call has a nil result and its error is reported.
func (n *Node) Exec() (interface{}, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	switch n.mode {
	case modeMulti:
		err := n.stream.commit()
		n.reset()
		return nil, err
	case modePipeline:
		queued := n.queued
		n.reset()

		var errs *multierror.Error
		results := make([]interface{}, len(queued))
		for i, p := range queued {
			data, err := p.Get()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("pipelined call %d: %w", i, err))
				continue
			}
			results[i] = data
		}
		return results, errs.ErrorOrNil()
	default:
		return nil, ErrNoTransaction
	}
}

// Discard rolls back the transaction or drops pipelined replies. Pipelined
// requests have already been sent and are not undone.
func (n *Node) Discard() (interface{}, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	switch n.mode {
	case modeMulti:
		err := n.stream.rollback()
		n.reset()
		return nil, err
	case modePipeline:
		n.reset()
		return nil, nil
	default:
		return nil, ErrNoTransaction
	}
}

// Close closes the underlying connection.
func (n *Node) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

func (n *Node) reset() {
	n.mode = modeNone
	n.stream = nil
	n.queued = nil
}
