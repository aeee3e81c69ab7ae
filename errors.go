package readsplit

import (
	"errors"
	"fmt"

	"github.com/ice-blockchain/go-readsplit/affinity"
)

var (
	ErrMissingPrimary          = errors.New("missing primary")
	ErrUnsupportedOperation    = affinity.ErrUnsupported
	ErrTransactionsUnsupported = errors.New("primary does not support transactions")
)

// UnsupportedError is returned when an operation is unknown to the primary.
type UnsupportedError = affinity.UnsupportedError

// ConfigurationError is returned by New when the router can not be built
// from the given options.
type ConfigurationError struct {
	Err error
}

// Error converts a ConfigurationError to a string.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// BroadcastError reports a broadcast that failed partway. Nodes before Index
// have already applied the operation; nothing is rolled back.
type BroadcastError struct {
	Op string
	// Index of the failed node in broadcast order: replicas first, then
	// the primary.
	Index int
	// Applied is the number of nodes that executed the operation
	// successfully before the failure.
	Applied int
	// Nodes is the total number of nodes the operation was sent to.
	Nodes int
	// Primary is true if the failed node is the primary.
	Primary bool
	Err     error
}

// Error converts a BroadcastError to a string.
func (e *BroadcastError) Error() string {
	role := "replica"
	if e.Primary {
		role = "primary"
	}
	return fmt.Sprintf("broadcast %q failed on node %d/%d (%s), %d node(s) already applied: %s",
		e.Op, e.Index+1, e.Nodes, role, e.Applied, e.Err)
}

// Unwrap returns the error reported by the failed node.
func (e *BroadcastError) Unwrap() error {
	return e.Err
}
