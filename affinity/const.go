package affinity

/*
Routing class for each operation:

	  Affinity    Dispatched to
	----------- ------------------------------------------
	| Primary   | the primary only                        |
	| Replica   | next node of the read pool (round robin) |
	| Broadcast | every replica in order, then the primary |

While a transaction is in progress every operation goes to the primary
regardless of its affinity.
*/
type Affinity uint32

const (
	Primary   Affinity = iota // The operation writes or must see the latest state.
	Replica                   // The operation is read-only and may be served by a replica.
	Broadcast                 // The operation changes connection state on every node.
)

// String returns a lower-case name of the affinity.
func (a Affinity) String() string {
	switch a {
	case Primary:
		return "primary"
	case Replica:
		return "replica"
	case Broadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}
