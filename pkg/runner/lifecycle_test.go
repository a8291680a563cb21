package runner

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	BannerOutput = nil
	goleak.VerifyTestMain(m)
}

func runAsync(t *testing.T, r *LifecycleRunner, ctx context.Context) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	require.Eventually(t, func() bool { return r.State() == StateRunning }, time.Second, 5*time.Millisecond)
	return errCh
}

func TestLifecycleRunnerDrainsOnCancel(t *testing.T) {
	var started, stopped, drained atomic.Bool
	r := NewLifecycleRunner(DrainerFunc(func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		drained.Store(ok)
		return nil
	}), Hooks{
		OnStart: func(context.Context) error { started.Store(true); return nil },
		OnStop:  func(context.Context) error { stopped.Store(true); return nil },
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runAsync(t, r, ctx)
	assert.True(t, started.Load())
	cancel()

	require.NoError(t, <-errCh)
	assert.True(t, drained.Load(), "drain sees the shutdown deadline")
	assert.True(t, stopped.Load())
	assert.Equal(t, StateStopped, r.State())
	assert.ErrorIs(t, r.Run(context.Background()), ErrAlreadyStarted)
}

func TestLifecycleRunnerJoinsShutdownErrors(t *testing.T) {
	drainErr := errors.New("listener stuck")
	closeErr := errors.New("genlog close")
	r := NewLifecycleRunner(DrainerFunc(func(context.Context) error { return drainErr }), Hooks{
		OnStop: func(context.Context) error { return closeErr },
	}, time.Second)
	errCh := runAsync(t, r, context.Background())

	err := r.Stop()
	assert.ErrorIs(t, err, drainErr)
	assert.ErrorIs(t, err, closeErr)
	assert.ErrorIs(t, <-errCh, drainErr)
}

func TestLifecycleRunnerDrainTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	var stopped atomic.Bool
	r := NewLifecycleRunner(DrainerFunc(func(context.Context) error {
		<-release
		return nil
	}), Hooks{OnStop: func(context.Context) error { stopped.Store(true); return nil }}, 20*time.Millisecond)
	errCh := runAsync(t, r, context.Background())

	assert.ErrorIs(t, r.Stop(), ErrDrainTimeout)
	assert.True(t, stopped.Load(), "stop hook runs after a drain timeout")
	<-errCh
}

func TestLifecycleRunnerStartFailure(t *testing.T) {
	var stopped atomic.Bool
	r := NewLifecycleRunner(nil, Hooks{
		OnStart: func(context.Context) error { return errors.New("cache unreachable") },
		OnStop:  func(context.Context) error { stopped.Store(true); return nil },
	}, time.Second)

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start: cache unreachable")
	assert.True(t, stopped.Load())
	assert.Equal(t, StateStopped, r.State())
}

func TestStopBeforeRun(t *testing.T) {
	r := NewLifecycleRunner(nil, Hooks{}, 0)
	require.NoError(t, r.Stop())
	assert.Equal(t, StateStopped, r.State())
	assert.Equal(t, "stopped", r.State().String())
	assert.ErrorIs(t, r.Run(context.Background()), ErrAlreadyStarted)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	BannerOutput = &buf
	t.Cleanup(func() { BannerOutput = nil })
	PrintBanner()
	assert.Contains(t, buf.String(), "Version: dev")
}
