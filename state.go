package readsplit

import (
	"sync/atomic"
)

// transaction pinning state
type state uint32

const (
	idleState state = iota
	lockedState
)

func (s *state) set(news state) {
	atomic.StoreUint32((*uint32)(s), uint32(news))
}

func (s *state) get() state {
	return state(atomic.LoadUint32((*uint32)(s)))
}

func (s state) String() string {
	switch s {
	case idleState:
		return "idle"
	case lockedState:
		return "locked"
	default:
		return "unknown"
	}
}
