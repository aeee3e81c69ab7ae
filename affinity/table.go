// Package affinity classifies store operations by the node they have to be
// dispatched to.
//
// Main features:
//
// - Explicit registration of operation groups at configuration time.
//
// - Lazy resolution of unregistered operations against the primary's
// capabilities, computed once and cached for the table's lifetime.
package affinity

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUnsupported = errors.New("unsupported operation")
	ErrEmptyName   = errors.New("operation name should not be empty")
)

// UnsupportedError is returned when an unregistered operation can not be
// resolved against the primary.
type UnsupportedError struct {
	Op string
	// Cause is set when the capability probe failed instead of reporting
	// the operation as unsupported.
	Cause error
}

// Error converts an UnsupportedError to a string.
func (e *UnsupportedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %q: %s", ErrUnsupported, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: %q", ErrUnsupported, e.Op)
}

// Is reports ErrUnsupported as the sentinel of the error.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// Unwrap returns the probe failure, if any.
func (e *UnsupportedError) Unwrap() error {
	return e.Cause
}

// ConflictError reports an operation registered in two different groups.
type ConflictError struct {
	Op     string
	First  Affinity
	Second Affinity
}

// Error converts a ConflictError to a string.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("operation %q registered as both %s and %s", e.Op, e.First, e.Second)
}

// Probe reports whether the primary supports an operation.
type Probe func(name string) bool

// Table maps operation names to affinities. It is safe for concurrent use.
type Table struct {
	entries  map[string]Affinity
	readOnly map[string]struct{}
	mutex    sync.RWMutex
	inflight singleflight.Group
}

// NewTable creates a table from DefaultGroups overlaid with groups. A name
// given in groups overrides its default registration. The same name given in
// two different groups is an error; all conflicts are reported at once.
func NewTable(groups Groups) (*Table, error) {
	t := &Table{
		entries:  make(map[string]Affinity),
		readOnly: make(map[string]struct{}, len(ReadOnlyCommands)),
	}

	for _, name := range ReadOnlyCommands {
		t.readOnly[normalize(name)] = struct{}{}
	}

	defaults := DefaultGroups()
	defaults.each(func(name string, a Affinity) {
		t.entries[normalize(name)] = a
	})

	var errs *multierror.Error
	registered := make(map[string]Affinity)
	groups.each(func(name string, a Affinity) {
		key := normalize(name)
		if key == "" {
			errs = multierror.Append(errs, ErrEmptyName)
			return
		}
		if prev, ok := registered[key]; ok && prev != a {
			errs = multierror.Append(errs, &ConflictError{Op: key, First: prev, Second: a})
			return
		}
		registered[key] = a
		t.entries[key] = a
	})
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	return t, nil
}

// Lookup returns a registered or already resolved affinity. It never probes.
func (t *Table) Lookup(name string) (Affinity, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	a, ok := t.entries[normalize(name)]
	return a, ok
}

// Classify returns the affinity of the operation. An unknown name is resolved
// with probe: unsupported names fail with an *UnsupportedError and are not
// cached, supported names are classified by ReadOnlyCommands and cached.
// Concurrent first calls for the same name share one probe, and probe is
// never called with the table lock held.
func (t *Table) Classify(name string, probe Probe) (Affinity, error) {
	key := normalize(name)
	if key == "" {
		return Primary, ErrEmptyName
	}

	if a, ok := t.Lookup(key); ok {
		return a, nil
	}

	v, err, _ := t.inflight.Do(key, func() (interface{}, error) {
		// A previous flight may have finished between Lookup and Do.
		if a, ok := t.Lookup(key); ok {
			return a, nil
		}

		if err := runProbe(probe, name); err != nil {
			return nil, err
		}

		a := Primary
		if _, ok := t.readOnly[key]; ok {
			a = Replica
		}

		t.mutex.Lock()
		defer t.mutex.Unlock()
		if cached, ok := t.entries[key]; ok {
			return cached, nil
		}
		t.entries[key] = a
		return a, nil
	})
	if err != nil {
		return Primary, err
	}
	return v.(Affinity), nil
}

// Snapshot returns a copy of all registered and resolved entries.
func (t *Table) Snapshot() map[string]Affinity {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	ret := make(map[string]Affinity, len(t.entries))
	for k, v := range t.entries {
		ret[k] = v
	}
	return ret
}

func runProbe(probe Probe, name string) (err error) {
	if probe == nil {
		return &UnsupportedError{Op: name, Cause: errors.New("no capability probe")}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &UnsupportedError{Op: name, Cause: fmt.Errorf("capability probe panicked: %v", r)}
		}
	}()

	if !probe(name) {
		return &UnsupportedError{Op: name}
	}
	return nil
}

func (g Groups) each(call func(name string, a Affinity)) {
	for _, name := range g.Replica {
		call(name, Replica)
	}
	for _, name := range g.Primary {
		call(name, Primary)
	}
	for _, name := range g.Broadcast {
		call(name, Broadcast)
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
