package readsplit

/*
Dispatch targets reported to an Observer:

	  Target      Node that served the operation
	----------- ----------------------------------------------
	| primary   | the primary, directly or from the read pool  |
	| replica   | a replica picked from the read pool          |
	| broadcast | every node, replicas first                   |
	| pinned    | the primary, because a transaction is active |
*/
type Target uint32

const (
	TargetPrimary Target = iota
	TargetReplica
	TargetBroadcast
	TargetPinned
)

func (t Target) String() string {
	switch t {
	case TargetPrimary:
		return "primary"
	case TargetReplica:
		return "replica"
	case TargetBroadcast:
		return "broadcast"
	case TargetPinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// TxnKind is a kind of transactional sequence.
type TxnKind uint32

const (
	TxnMulti    TxnKind = iota // An atomic transaction.
	TxnPipeline                // A batch of buffered operations.
)

func (k TxnKind) String() string {
	switch k {
	case TxnMulti:
		return "multi"
	case TxnPipeline:
		return "pipeline"
	default:
		return "unknown"
	}
}

// TxnOutcome is the terminal call of a transactional sequence.
type TxnOutcome uint32

const (
	TxnExec TxnOutcome = iota
	TxnDiscard
)

func (o TxnOutcome) String() string {
	switch o {
	case TxnExec:
		return "exec"
	case TxnDiscard:
		return "discard"
	default:
		return "unknown"
	}
}
