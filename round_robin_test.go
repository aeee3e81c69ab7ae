package readsplit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ice-blockchain/go-readsplit/test_helpers"
)

func newTestStrategy(replicas int, readMaster bool) (*roundRobinStrategy, []Node, *txnLock) {
	nodes := make([]Node, 0, replicas+1)
	for i := 0; i < replicas; i++ {
		nodes = append(nodes, test_helpers.NewMockNode(string(rune('a'+i)), nil))
	}
	primary := test_helpers.NewMockPrimary("primary", nil)
	primaryIndex := -1
	if readMaster {
		primaryIndex = len(nodes)
		nodes = append(nodes, primary)
	}
	txn := &txnLock{}
	return newRoundRobinStrategy(nodes, primary, primaryIndex, txn), nodes, txn
}

func TestRoundRobinStartsInsidePool(t *testing.T) {
	for i := 0; i < 20; i++ {
		rr, nodes, _ := newTestStrategy(3, true)
		require.GreaterOrEqual(t, rr.cursor(), 0)
		require.Less(t, rr.cursor(), len(nodes))
	}
}

func TestRoundRobinCycle(t *testing.T) {
	rr, nodes, _ := newTestStrategy(3, true)
	rr.setFirst(0)

	for round := 0; round < 2; round++ {
		for i, expected := range nodes {
			node, isPrimary := rr.GetNextNode()
			require.Same(t, expected, node)
			require.Equal(t, i == len(nodes)-1, isPrimary)
		}
	}
}

func TestRoundRobinSetFirstWraps(t *testing.T) {
	rr, nodes, _ := newTestStrategy(2, true)

	rr.setFirst(2)
	node, isPrimary := rr.GetNextNode()
	require.Same(t, nodes[2], node)
	require.True(t, isPrimary)

	node, isPrimary = rr.GetNextNode()
	require.Same(t, nodes[0], node)
	require.False(t, isPrimary)
}

func TestRoundRobinWithoutPrimary(t *testing.T) {
	rr, nodes, _ := newTestStrategy(2, false)
	require.Len(t, nodes, 2)

	for i := 0; i < 4; i++ {
		_, isPrimary := rr.GetNextNode()
		require.False(t, isPrimary)
	}
}

func TestRoundRobinEmptyPool(t *testing.T) {
	rr, nodes, _ := newTestStrategy(0, false)
	require.Empty(t, nodes)

	node, isPrimary := rr.GetNextNode()
	require.Same(t, rr.primary, node)
	require.True(t, isPrimary)
}

func TestRoundRobinPinned(t *testing.T) {
	rr, _, txn := newTestStrategy(2, true)
	rr.setFirst(0)
	before := rr.cursor()

	tx := txn.acquire(TxnMulti)
	for i := 0; i < 3; i++ {
		node, isPrimary := rr.GetNextNode()
		require.Same(t, rr.primary, node)
		require.True(t, isPrimary)
	}
	require.Equal(t, before, rr.cursor())

	require.True(t, txn.release(tx))
	require.False(t, txn.release(tx))

	node, _ := rr.GetNextNode()
	require.Same(t, rr.nodes[0], node)
}

func TestRoundRobinGetNodesIsCopy(t *testing.T) {
	rr, nodes, _ := newTestStrategy(2, true)

	got := rr.GetNodes()
	require.Equal(t, nodes, got)

	got[0] = nil
	require.NotNil(t, rr.GetNodes()[0])
}

func TestStateString(t *testing.T) {
	var s state
	require.Equal(t, "idle", s.get().String())
	s.set(lockedState)
	require.Equal(t, "locked", s.get().String())
	require.Equal(t, "unknown", state(7).String())
}
