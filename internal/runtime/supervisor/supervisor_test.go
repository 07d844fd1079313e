package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGoRecordsFirstError(t *testing.T) {
	s := NewSupervisor(context.Background())
	s.Go("boom", func(context.Context) error { return errors.New("bad") })
	err := s.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom: bad")
}

func TestGoCanceledIsClean(t *testing.T) {
	s := NewSupervisor(context.Background())
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, s.Stop(waitCtx(t)))
}

func TestGoRecoversPanic(t *testing.T) {
	s := NewSupervisor(context.Background(), WithCancelOnError(true))
	s.Go0("panicky", func(context.Context) { panic("oops") })
	err := s.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Error(t, s.Context().Err(), "cancel-on-error should cancel the context")

	snap := s.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, uint64(1), snap.Tasks[0].Panics)
	assert.Equal(t, 0, snap.Active)
}

func TestGoRestartRetriesUntilMax(t *testing.T) {
	var runs atomic.Int32
	s := NewSupervisor(context.Background())
	s.GoRestart("flaky", func(context.Context) error {
		runs.Add(1)
		return errors.New("fail")
	}, WithRestartBackoff(time.Millisecond, 2*time.Millisecond), WithMaxRestarts(2))

	err := s.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Equal(t, int32(3), runs.Load())
	assert.Equal(t, uint64(2), s.Snapshot().Tasks[0].Restarts)
}

func TestGoRestartStopsOnCleanExit(t *testing.T) {
	var runs atomic.Int32
	s := NewSupervisor(context.Background())
	s.GoRestart("once", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, s.Wait(waitCtx(t)))
	assert.Equal(t, int32(1), runs.Load())
}
