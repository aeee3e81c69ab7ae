package readsplit

import (
	"time"

	"github.com/ice-blockchain/go-readsplit/affinity"
)

// Observer is notified about routing decisions. Implementations must be safe
// for concurrent use and must not block. See the metrics package for a
// Prometheus implementation.
type Observer interface {
	// ObserveDispatch is called after an operation returned.
	ObserveDispatch(op string, a affinity.Affinity, target Target, elapsed time.Duration, err error)
	// ObserveResolution is called when an unregistered operation was
	// classified for the first time.
	ObserveResolution(op string, a affinity.Affinity)
	// ObserveTransaction is called when a transactional sequence ended.
	ObserveTransaction(kind TxnKind, outcome TxnOutcome, elapsed time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveDispatch(string, affinity.Affinity, Target, time.Duration, error) {}
func (noopObserver) ObserveResolution(string, affinity.Affinity)                             {}
func (noopObserver) ObserveTransaction(TxnKind, TxnOutcome, time.Duration, error)            {}
