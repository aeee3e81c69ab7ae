// Helpers for testing code built on top of the router.
//
// Package introduces mock nodes that record every received operation. Nodes
// sharing a Recorder expose the global order of calls, so tests may check
// where each operation was routed and in what order.
package test_helpers

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrNestedTransaction = errors.New("transaction is already active")

// Call is an operation received by a mock node.
type Call struct {
	Node string
	Op   string
	Args []interface{}
}

func (c Call) String() string {
	return fmt.Sprintf("%s:%s", c.Node, c.Op)
}

// Recorder collects calls of several nodes in the order they happened.
type Recorder struct {
	mutex sync.Mutex
	calls []Call
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(call Call) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.calls = append(r.calls, call)
}

// Calls returns a copy of recorded calls.
func (r *Recorder) Calls() []Call {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ret := make([]Call, len(r.calls))
	copy(ret, r.calls)
	return ret
}

// Trace returns recorded calls in the "node:op" form.
func (r *Recorder) Trace() []string {
	calls := r.Calls()
	ret := make([]string, 0, len(calls))
	for _, call := range calls {
		ret = append(ret, call.String())
	}
	return ret
}

// Reset drops recorded calls.
func (r *Recorder) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.calls = nil
}

// MockNode is an implementation of the readsplit.Node interface used for
// testing purposes. It supports every operation unless told otherwise and
// replies with its name.
type MockNode struct {
	Name     string
	recorder *Recorder

	mutex       sync.Mutex
	calls       []Call
	unsupported map[string]bool
	errs        map[string]error
	replies     map[string]interface{}
	probes      map[string]int
	hook        func(op string)
}

// NewMockNode creates a node. recorder may be nil.
func NewMockNode(name string, recorder *Recorder) *MockNode {
	return &MockNode{
		Name:        name,
		recorder:    recorder,
		unsupported: map[string]bool{},
		errs:        map[string]error{},
		replies:     map[string]interface{}{},
		probes:      map[string]int{},
	}
}

// Execute records the operation and returns the configured reply or error.
func (n *MockNode) Execute(name string, args ...interface{}) (interface{}, error) {
	op := strings.ToLower(name)
	call := Call{Node: n.Name, Op: op, Args: args}

	n.mutex.Lock()
	n.calls = append(n.calls, call)
	err := n.errs[op]
	reply, ok := n.replies[op]
	hook := n.hook
	n.mutex.Unlock()

	n.record(call)
	if hook != nil {
		hook(op)
	}

	if err != nil {
		return nil, err
	}
	if !ok {
		reply = n.Name
	}
	return reply, nil
}

// Supports counts the probe and reports whether the operation was not
// marked as unsupported.
func (n *MockNode) Supports(name string) bool {
	op := strings.ToLower(name)

	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.probes[op]++
	return !n.unsupported[op]
}

// SetUnsupported marks operations as unknown to the node.
func (n *MockNode) SetUnsupported(ops ...string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	for _, op := range ops {
		n.unsupported[strings.ToLower(op)] = true
	}
}

// SetSupported removes the unsupported mark of an operation.
func (n *MockNode) SetSupported(op string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	delete(n.unsupported, strings.ToLower(op))
}

// SetError makes the operation fail with err. A nil err removes the failure.
func (n *MockNode) SetError(op string, err error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if err == nil {
		delete(n.errs, strings.ToLower(op))
		return
	}
	n.errs[strings.ToLower(op)] = err
}

// SetReply sets the reply of the operation.
func (n *MockNode) SetReply(op string, reply interface{}) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.replies[strings.ToLower(op)] = reply
}

// OnExecute sets a hook called after every recorded operation.
func (n *MockNode) OnExecute(hook func(op string)) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.hook = hook
}

// Calls returns a copy of operations received by the node.
func (n *MockNode) Calls() []Call {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	ret := make([]Call, len(n.calls))
	copy(ret, n.calls)
	return ret
}

// Ops returns names of operations received by the node.
func (n *MockNode) Ops() []string {
	calls := n.Calls()
	ret := make([]string, 0, len(calls))
	for _, call := range calls {
		ret = append(ret, call.Op)
	}
	return ret
}

// Count returns how many times the node received the operation.
func (n *MockNode) Count(op string) int {
	cnt := 0
	for _, call := range n.Calls() {
		if call.Op == strings.ToLower(op) {
			cnt++
		}
	}
	return cnt
}

// Probes returns how many times Supports was called for the operation.
func (n *MockNode) Probes(op string) int {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	return n.probes[strings.ToLower(op)]
}

// add stores a call made outside Execute, such as a transaction marker.
func (n *MockNode) add(call Call) {
	n.mutex.Lock()
	n.calls = append(n.calls, call)
	n.mutex.Unlock()

	n.record(call)
}

func (n *MockNode) record(call Call) {
	if n.recorder != nil {
		n.recorder.record(call)
	}
}

// MockPrimary is a MockNode that supports transactional sequences. The
// transaction markers are recorded as "multi", "pipeline", "exec" and
// "discard" operations.
type MockPrimary struct {
	*MockNode

	txMutex    sync.Mutex
	active     bool
	buffered   []interface{}
	beginErr   error
	execErr    error
	discardErr error
	nested     int
}

// NewMockPrimary creates a primary node. recorder may be nil.
func NewMockPrimary(name string, recorder *Recorder) *MockPrimary {
	return &MockPrimary{MockNode: NewMockNode(name, recorder)}
}

// Execute records the operation. Replies of operations made inside a
// transaction are returned by Exec.
func (p *MockPrimary) Execute(name string, args ...interface{}) (interface{}, error) {
	reply, err := p.MockNode.Execute(name, args...)

	p.txMutex.Lock()
	defer p.txMutex.Unlock()

	if p.active && err == nil {
		p.buffered = append(p.buffered, reply)
	}
	return reply, err
}

// BeginMulti starts a transaction.
func (p *MockPrimary) BeginMulti() error {
	return p.begin("multi")
}

// BeginPipeline starts a pipeline.
func (p *MockPrimary) BeginPipeline() error {
	return p.begin("pipeline")
}

// Exec ends the transaction and returns replies of its operations.
func (p *MockPrimary) Exec() (interface{}, error) {
	p.MockNode.add(Call{Node: p.Name, Op: "exec"})

	p.txMutex.Lock()
	defer p.txMutex.Unlock()

	replies := p.buffered
	p.active = false
	p.buffered = nil
	if p.execErr != nil {
		return nil, p.execErr
	}
	if replies == nil {
		replies = []interface{}{}
	}
	return replies, nil
}

// Discard ends the transaction and drops replies of its operations.
func (p *MockPrimary) Discard() (interface{}, error) {
	p.MockNode.add(Call{Node: p.Name, Op: "discard"})

	p.txMutex.Lock()
	defer p.txMutex.Unlock()

	p.active = false
	p.buffered = nil
	if p.discardErr != nil {
		return nil, p.discardErr
	}
	return "OK", nil
}

// SetBeginError makes BeginMulti and BeginPipeline fail.
func (p *MockPrimary) SetBeginError(err error) {
	p.txMutex.Lock()
	defer p.txMutex.Unlock()

	p.beginErr = err
}

// SetExecError makes Exec fail.
func (p *MockPrimary) SetExecError(err error) {
	p.txMutex.Lock()
	defer p.txMutex.Unlock()

	p.execErr = err
}

// SetDiscardError makes Discard fail.
func (p *MockPrimary) SetDiscardError(err error) {
	p.txMutex.Lock()
	defer p.txMutex.Unlock()

	p.discardErr = err
}

// Active reports whether a transaction is in progress.
func (p *MockPrimary) Active() bool {
	p.txMutex.Lock()
	defer p.txMutex.Unlock()

	return p.active
}

// Nested returns how many times a transaction was started while another
// one was active.
func (p *MockPrimary) Nested() int {
	p.txMutex.Lock()
	defer p.txMutex.Unlock()

	return p.nested
}

func (p *MockPrimary) begin(kind string) error {
	p.MockNode.add(Call{Node: p.Name, Op: kind})

	p.txMutex.Lock()
	defer p.txMutex.Unlock()

	if p.beginErr != nil {
		return p.beginErr
	}
	if p.active {
		p.nested++
		return ErrNestedTransaction
	}
	p.active = true
	p.buffered = nil
	return nil
}
