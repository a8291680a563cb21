package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrAlreadyStarted = errors.New("runner already started")
	ErrDrainTimeout   = errors.New("drain timeout")
)

// LifecycleRunner blocks until its context ends, then drains and runs the
// stop hook exactly once. Drain and OnStop share one shutdown deadline.
type LifecycleRunner struct {
	state   atomic.Int32
	hooks   Hooks
	drainer Drainer
	timeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc

	onceStop sync.Once
	stopErr  error
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LifecycleRunner{hooks: hooks, drainer: drainer, timeout: timeout}
}

func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return fmt.Errorf("%w: state %s", ErrAlreadyStarted, r.State())
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	PrintBanner()
	if r.hooks.OnStart != nil {
		if err := r.hooks.OnStart(ctx); err != nil {
			cancel()
			return errors.Join(fmt.Errorf("start: %w", err), r.stop())
		}
	}
	r.state.Store(int32(StateRunning))
	<-ctx.Done()
	return r.stop()
}

// Stop cancels a running runner and waits for shutdown. A runner that never
// ran moves straight to stopped.
func (r *LifecycleRunner) Stop() error {
	if r.state.CompareAndSwap(int32(StateNew), int32(StateStopped)) {
		return nil
	}
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(r.state.Load())
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		r.state.Store(int32(StateDraining))
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		var errs []error
		if r.drainer != nil {
			errs = append(errs, r.drain(ctx))
		}
		if r.hooks.OnStop != nil {
			errs = append(errs, r.hooks.OnStop(ctx))
		}
		r.stopErr = errors.Join(errs...)
		r.state.Store(int32(StateStopped))
	})
	return r.stopErr
}

func (r *LifecycleRunner) drain(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- r.drainer.Drain(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %s", ErrDrainTimeout, r.timeout)
	}
}
