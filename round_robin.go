package readsplit

import (
	"math/rand"
	"sync"
)

// roundRobinStrategy selects nodes of the read pool in circular order.
type roundRobinStrategy struct {
	nodes   []Node
	primary Node
	// primaryIndex is the position of the primary in nodes or -1.
	primaryIndex int
	txn          *txnLock
	mutex        sync.Mutex
	current      int
}

// newRoundRobinStrategy creates a strategy over nodes with the cursor placed
// at a random position, so independently created routers do not start with
// the same node.
func newRoundRobinStrategy(nodes []Node, primary Node, primaryIndex int, txn *txnLock) *roundRobinStrategy {
	r := &roundRobinStrategy{
		nodes:        nodes,
		primary:      primary,
		primaryIndex: primaryIndex,
		txn:          txn,
	}
	if len(nodes) > 0 {
		r.current = rand.Intn(len(nodes))
	}
	return r
}

// GetNextNode returns the next node of the pool and reports whether it is the
// primary. While a transaction is pinned, or if the pool is empty, it returns
// the primary without moving the cursor.
func (r *roundRobinStrategy) GetNextNode() (Node, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.txn.pinned() || len(r.nodes) == 0 {
		return r.primary, true
	}

	r.current = (r.current + 1) % len(r.nodes)
	return r.nodes[r.current], r.current == r.primaryIndex
}

// GetNodes returns a copy of the pool.
func (r *roundRobinStrategy) GetNodes() []Node {
	ret := make([]Node, len(r.nodes))
	copy(ret, r.nodes)
	return ret
}

// setFirst places the cursor so that the next call returns nodes[idx].
func (r *roundRobinStrategy) setFirst(idx int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.nodes) == 0 {
		return
	}
	r.current = (idx - 1 + len(r.nodes)) % len(r.nodes)
}

func (r *roundRobinStrategy) cursor() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.current
}
