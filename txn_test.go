package readsplit_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/ice-blockchain/go-readsplit"
	"github.com/ice-blockchain/go-readsplit/test_helpers"
)

func TestMultiOverridesAndReverts(t *testing.T) {
	c := newCluster(t, 2)
	SetFirstRead(c.router, 0)

	_, err := c.router.Multi(func() error {
		require.True(t, c.router.InTransaction())
		require.True(t, c.router.Info().InTransaction)
		for i := 0; i < 3; i++ {
			if _, err := c.router.Execute("get", "key"); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.False(t, c.router.InTransaction())

	for _, replica := range c.replicas {
		require.Equal(t, 0, replica.Count("get"))
	}
	require.Equal(t, 3, c.primary.Count("get"))

	_, err = c.router.Execute("get", "key")
	require.NoError(t, err)
	require.Equal(t, 1, c.replicas[0].Count("get"))
}

func TestManualMulti(t *testing.T) {
	c := newCluster(t, 2)
	SetFirstRead(c.router, 0)
	cursor := ReadCursor(c.router)

	require.NoError(t, c.router.BeginMulti())
	require.True(t, c.router.InTransaction())

	_, err := c.router.Execute("get", "a")
	require.NoError(t, err)
	_, err = c.router.Execute("select", 1)
	require.NoError(t, err)

	reply, err := c.router.Exec()
	require.NoError(t, err)
	require.Equal(t, []interface{}{"M", "M"}, reply)
	require.False(t, c.router.InTransaction())
	require.Equal(t, cursor, ReadCursor(c.router))

	require.Equal(t, []string{"M:multi", "M:get", "M:select", "M:exec"}, c.recorder.Trace())
}

func TestManualPipelineDiscard(t *testing.T) {
	c := newCluster(t, 1)

	require.NoError(t, c.router.BeginPipeline())
	_, err := c.router.Execute("set", "a", 1)
	require.NoError(t, err)

	reply, err := c.router.Discard()
	require.NoError(t, err)
	require.Equal(t, "OK", reply)
	require.False(t, c.router.InTransaction())
	require.False(t, c.primary.Active())

	require.Equal(t, []string{"M:pipeline", "M:set", "M:discard"}, c.recorder.Trace())
}

func TestPipelined(t *testing.T) {
	c := newCluster(t, 2)

	reply, err := c.router.Pipelined(func() error {
		for i := 0; i < 3; i++ {
			if _, err := c.router.Execute("get", fmt.Sprintf("key%d", i)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"M", "M", "M"}, reply)
	require.Equal(t, []string{
		"M:pipeline", "M:get", "M:get", "M:get", "M:exec",
	}, c.recorder.Trace())
}

func TestMultiNilBlock(t *testing.T) {
	c := newCluster(t, 1)

	reply, err := c.router.Multi(nil)
	require.NoError(t, err)
	require.Equal(t, []interface{}{}, reply)
	require.Equal(t, []string{"M:multi", "M:exec"}, c.recorder.Trace())
}

func TestMultiBlockErrorDiscards(t *testing.T) {
	c := newCluster(t, 2)
	fnErr := errors.New("validation failed")

	reply, err := c.router.Multi(func() error {
		if _, err := c.router.Execute("set", "a", 1); err != nil {
			return err
		}
		return fnErr
	})
	require.Nil(t, reply)
	require.True(t, err == fnErr)
	require.False(t, c.router.InTransaction())
	require.Equal(t, []string{"M:multi", "M:set", "M:discard"}, c.recorder.Trace())
}

func TestMultiBlockErrorAndDiscardError(t *testing.T) {
	c := newCluster(t, 1)
	fnErr := errors.New("validation failed")
	discardErr := errors.New("connection closed")
	c.primary.SetDiscardError(discardErr)

	_, err := c.router.Multi(func() error {
		return fnErr
	})
	require.ErrorIs(t, err, fnErr)
	require.ErrorIs(t, err, discardErr)
	require.False(t, c.router.InTransaction())
}

func TestMultiNodeErrorInsideBlock(t *testing.T) {
	c := newCluster(t, 1)
	nodeErr := errors.New("WRONGTYPE")
	c.primary.SetError("incr", nodeErr)

	_, err := c.router.Multi(func() error {
		_, err := c.router.Execute("incr", "key")
		return err
	})
	require.True(t, err == nodeErr)
	require.Equal(t, 1, c.primary.Count("discard"))
	require.Equal(t, 0, c.primary.Count("exec"))
}

func TestMultiExecError(t *testing.T) {
	observer := &recordingObserver{}
	c := newCluster(t, 1, func(opts *Opts) {
		opts.Observer = observer
	})
	execErr := errors.New("EXECABORT")
	c.primary.SetExecError(execErr)

	_, err := c.router.Multi(func() error {
		_, err := c.router.Execute("set", "a", 1)
		return err
	})
	require.True(t, err == execErr)
	require.False(t, c.router.InTransaction())
	require.Equal(t, []observedTxn{{TxnMulti, TxnExec, execErr}}, observer.txns)
}

func TestMultiPanicReleases(t *testing.T) {
	c := newCluster(t, 1)

	require.PanicsWithValue(t, "boom", func() {
		_, _ = c.router.Multi(func() error {
			_, _ = c.router.Execute("set", "a", 1)
			panic("boom")
		})
	})
	require.False(t, c.router.InTransaction())
	require.False(t, c.primary.Active())
	require.Equal(t, []string{"M:multi", "M:set", "M:discard"}, c.recorder.Trace())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.router.Multi(nil)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("transaction lock was not released after panic")
	}
}

func TestMultiBlockEndsItself(t *testing.T) {
	c := newCluster(t, 1)

	var inner interface{}
	reply, err := c.router.Multi(func() error {
		if _, err := c.router.Execute("set", "a", 1); err != nil {
			return err
		}
		var err error
		inner, err = c.router.Exec()
		return err
	})
	require.NoError(t, err)
	require.Nil(t, reply)
	require.Equal(t, []interface{}{"M"}, inner)
	require.Equal(t, 1, c.primary.Count("exec"))
	require.Equal(t, 0, c.primary.Count("discard"))
	require.False(t, c.router.InTransaction())
}

func TestExecWithoutTransaction(t *testing.T) {
	c := newCluster(t, 1)

	reply, err := c.router.Exec()
	require.NoError(t, err)
	require.Equal(t, []interface{}{}, reply)

	_, err = c.router.Discard()
	require.NoError(t, err)

	require.Equal(t, []string{"M:exec", "M:discard"}, c.recorder.Trace())
	require.False(t, c.router.InTransaction())

	_, err = c.router.Multi(nil)
	require.NoError(t, err)
}

func TestBeginError(t *testing.T) {
	c := newCluster(t, 1)
	beginErr := errors.New("stream is not supported")
	c.primary.SetBeginError(beginErr)

	err := c.router.BeginMulti()
	require.True(t, err == beginErr)
	require.False(t, c.router.InTransaction())

	_, err = c.router.Pipelined(func() error {
		t.Fatal("block should not run")
		return nil
	})
	require.True(t, err == beginErr)

	c.primary.SetBeginError(nil)
	_, err = c.router.Multi(nil)
	require.NoError(t, err)
}

func TestTransactionsUnsupported(t *testing.T) {
	primary := test_helpers.NewMockNode("M", nil)
	router, err := New(Opts{Primary: primary, Logger: discardLogger()})
	require.NoError(t, err)

	require.ErrorIs(t, router.BeginMulti(), ErrTransactionsUnsupported)
	require.ErrorIs(t, router.BeginPipeline(), ErrTransactionsUnsupported)

	_, err = router.Multi(func() error {
		t.Fatal("block should not run")
		return nil
	})
	require.ErrorIs(t, err, ErrTransactionsUnsupported)

	_, err = router.Exec()
	require.ErrorIs(t, err, ErrTransactionsUnsupported)
	_, err = router.Discard()
	require.ErrorIs(t, err, ErrTransactionsUnsupported)

	require.Empty(t, primary.Calls())
}

func TestTransactionBlocksConcurrentBegin(t *testing.T) {
	c := newCluster(t, 1)

	require.NoError(t, c.router.BeginMulti())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.router.Multi(func() error {
			_, err := c.router.Execute("set", "b", 2)
			return err
		})
	}()

	select {
	case <-done:
		t.Fatal("second transaction should wait for the first one")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := c.router.Execute("set", "a", 1)
	require.NoError(t, err)
	_, err = c.router.Exec()
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second transaction was not started")
	}

	require.Equal(t, []string{
		"M:multi", "M:set", "M:exec",
		"M:multi", "M:set", "M:exec",
	}, c.recorder.Trace())
	require.Equal(t, 0, c.primary.Nested())
}

func TestConcurrentTransactionsSerialized(t *testing.T) {
	c := newCluster(t, 2)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.router.Multi(func() error {
				if _, err := c.router.Execute("set", i); err != nil {
					return err
				}
				_, err := c.router.Execute("get", i)
				return err
			})
			if err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 0, c.primary.Nested())
	for _, replica := range c.replicas {
		require.Empty(t, replica.Calls())
	}

	calls := c.recorder.Calls()
	require.Len(t, calls, workers*4)
	seen := map[interface{}]bool{}
	for i := 0; i < len(calls); i += 4 {
		group := calls[i : i+4]
		require.Equal(t, "multi", group[0].Op)
		require.Equal(t, "set", group[1].Op)
		require.Equal(t, "get", group[2].Op)
		require.Equal(t, "exec", group[3].Op)
		require.Equal(t, group[1].Args, group[2].Args)
		seen[group[1].Args[0]] = true
	}
	require.Len(t, seen, workers)
	require.False(t, c.router.InTransaction())
}

func TestExecPassThroughWaitsForTransactionLock(t *testing.T) {
	c := newCluster(t, 1)

	unlock := HoldTransactionLock(c.router)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.router.Exec()
	}()

	select {
	case <-done:
		t.Fatal("pass-through exec should wait for the transaction lock")
	case <-time.After(50 * time.Millisecond):
	}
	require.Empty(t, c.recorder.Trace())

	unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pass-through exec was not sent")
	}
	require.Equal(t, []string{"M:exec"}, c.recorder.Trace())

	_, err := c.router.Multi(nil)
	require.NoError(t, err)
	require.False(t, c.router.InTransaction())
}

func TestNestedMultiWaitsForOuter(t *testing.T) {
	c := newCluster(t, 1)

	started := make(chan struct{})
	done := make(chan struct{})
	var innerErr error
	go func() {
		defer close(done)
		_, _ = c.router.Multi(func() error {
			close(started)
			_, innerErr = c.router.Multi(nil)
			return innerErr
		})
	}()

	<-started
	select {
	case <-done:
		t.Fatal("nested transaction should wait for the outer one")
	case <-time.After(50 * time.Millisecond):
	}

	_, err := c.router.Exec()
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested transaction did not run after the outer one ended")
	}
	require.NoError(t, innerErr)
	require.Equal(t, []string{"M:multi", "M:exec", "M:multi", "M:exec"}, c.recorder.Trace())
	require.Equal(t, 0, c.primary.Nested())
	require.False(t, c.router.InTransaction())
}
