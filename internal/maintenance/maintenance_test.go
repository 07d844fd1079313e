package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "notifymanager/pkg/logx"
)

type fakeTarget struct {
	mu      sync.Mutex
	ttls    []time.Duration
	flushes int
	err     error
}

func (f *fakeTarget) PrunePending(ttl time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls = append(f.ttls, ttl)
	return 1
}

func (f *fakeTarget) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return f.err
}

func (f *fakeTarget) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushes
}

func TestRunOnceUsesDefaultTTL(t *testing.T) {
	f := &fakeTarget{err: errors.New("disk full")}
	New(Config{}, f, logx.Nop()).RunOnce(context.Background())

	assert.Equal(t, []time.Duration{DefaultPendingTTL}, f.ttls)
	assert.Equal(t, 1, f.flushes)
}

func TestScheduleRuns(t *testing.T) {
	f := &fakeTarget{}
	s := New(Config{Schedule: "@every 1s", PendingTTL: time.Minute}, f, logx.Nop())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return f.runs() >= 1 }, 3*time.Second, 50*time.Millisecond)
	f.mu.Lock()
	assert.Equal(t, time.Minute, f.ttls[0])
	f.mu.Unlock()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(Config{Schedule: "every now and then"}, &fakeTarget{}, logx.Nop())
	assert.Error(t, s.Start(context.Background()))
	assert.Error(t, Validate("61 * * * *"))
	assert.NoError(t, Validate(""))
	assert.NoError(t, Validate("*/5 * * * *"))
}
