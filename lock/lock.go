// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package lock provides the advisory, exclusive, OS-level lock that
// serializes download walks on one dataset. The lock is a flock on a
// sentinel file inside the dataset directory, wrapped in a guard type
// so every exit path of the holder releases it.
//
// No fairness is guaranteed between competing acquirers; the wake
// order is whatever the OS delivers.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
)

var logger = loggo.GetLogger("materialize.lock")

const defaultDelay = 100 * time.Millisecond

// errHeld is the poll-again signal inside the acquisition loop.
var errHeld = errors.New("lock is held")

// Spec describes a lock to acquire.
type Spec struct {
	// Path is the sentinel file, e.g. <dataset root>/.state.lock. The
	// parent directory must exist.
	Path string

	// Clock times the acquisition polling. Defaults to the wall clock.
	Clock clock.Clock

	// Delay is the poll interval while the lock is held elsewhere.
	// Defaults to 100ms.
	Delay time.Duration

	// Timeout bounds the total wait. Zero means wait indefinitely.
	Timeout time.Duration
}

// Releaser releases a held lock. Releasing more than once is a no-op.
type Releaser interface {
	Release()
}

// Acquire blocks until the lock described by spec is held, the context
// is cancelled, or the timeout elapses. Timeout errors satisfy
// errors.Is(err, errors.Timeout).
func Acquire(ctx context.Context, spec Spec) (Releaser, error) {
	if spec.Path == "" {
		return nil, errors.NotValidf("lock spec without path")
	}
	if spec.Clock == nil {
		spec.Clock = clock.WallClock
	}
	if spec.Delay <= 0 {
		spec.Delay = defaultDelay
	}

	fl := flock.New(spec.Path)
	args := retry.CallArgs{
		Func: func() error {
			locked, err := fl.TryLock()
			if err != nil {
				return errors.Trace(err)
			}
			if !locked {
				return errHeld
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, errHeld)
		},
		Attempts: retry.UnlimitedAttempts,
		Delay:    spec.Delay,
		Clock:    spec.Clock,
		Stop:     ctx.Done(),
	}
	if spec.Timeout > 0 {
		args.MaxDuration = spec.Timeout
	}

	err := retry.Call(args)
	switch {
	case err == nil:
		return &releaser{fl: fl}, nil
	case retry.IsRetryStopped(err):
		return nil, errors.Annotatef(ctx.Err(), "acquiring lock %q", spec.Path)
	case retry.IsDurationExceeded(err) || retry.IsAttemptsExceeded(err):
		return nil, errors.Timeoutf("acquiring lock %q", spec.Path)
	}
	return nil, errors.Annotatef(err, "acquiring lock %q", spec.Path)
}

type releaser struct {
	mu       sync.Mutex
	fl       *flock.Flock
	released bool
}

// Release is part of the Releaser interface.
func (r *releaser) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	if err := r.fl.Unlock(); err != nil {
		logger.Errorf("cannot release lock %q: %v", r.fl.Path(), err)
	}
}
