package readsplit

// Node is a handle to a single store instance. The router only invokes a
// node, it never changes a node's configuration, so the same handle may be
// shared with other users.
type Node interface {
	// Execute performs the named operation and returns the store's reply.
	Execute(name string, args ...interface{}) (interface{}, error)
	// Supports reports whether the node knows the named operation.
	Supports(name string) bool
}

// Transactor is implemented by a primary node that supports transactional
// sequences. Operations issued between a Begin call and the matching Exec or
// Discard belong to the sequence.
type Transactor interface {
	// BeginPipeline starts buffering operations until Exec or Discard.
	BeginPipeline() error
	// BeginMulti starts an atomic transaction.
	BeginMulti() error
	// Exec commits the transaction or flushes the pipeline.
	Exec() (interface{}, error)
	// Discard aborts the transaction or drops the pipeline.
	Discard() (interface{}, error)
}
