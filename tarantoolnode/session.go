package tarantoolnode

import (
	"github.com/tarantool/go-tarantool/v2"
)

// doer is implemented by *tarantool.Connection and *tarantool.Stream.
type doer interface {
	Do(req tarantool.Request) *tarantool.Future
}

// pending is a reply that may not have arrived yet.
type pending interface {
	Get() ([]interface{}, error)
}

// session sends requests either over a connection or inside a stream.
type session interface {
	call(fn string, args []interface{}) pending
	eval(expr string, args []interface{}) pending
	begin() error
	commit() error
	rollback() error
}

type doerSession struct {
	doer doer
}

func (s doerSession) call(fn string, args []interface{}) pending {
	return s.doer.Do(tarantool.NewCall17Request(fn).Args(args))
}

func (s doerSession) eval(expr string, args []interface{}) pending {
	return s.doer.Do(tarantool.NewEvalRequest(expr).Args(args))
}

func (s doerSession) begin() error {
	_, err := s.doer.Do(tarantool.NewBeginRequest()).Get()
	return err
}

func (s doerSession) commit() error {
	_, err := s.doer.Do(tarantool.NewCommitRequest()).Get()
	return err
}

func (s doerSession) rollback() error {
	_, err := s.doer.Do(tarantool.NewRollbackRequest()).Get()
	return err
}
