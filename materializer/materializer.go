// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package materializer runs dataset downloads in the background: a
// worker drains a queue of requests, running one orchestrator walk per
// dataset. Per-dataset locking makes concurrent workers safe; this one
// processes requests serially.
package materializer

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gopkg.in/tomb.v2"

	"github.com/juju/materialize/dataset"
)

var logger = loggo.GetLogger("materialize.materializer")

// Worker materializes datasets from a queue until killed.
type Worker struct {
	tomb     tomb.Tomb
	requests chan request
}

type request struct {
	dataset *dataset.Dataset
	force   bool
	done    chan error
}

// NewWorker starts a worker with room for queueSize pending requests.
func NewWorker(queueSize int) *Worker {
	w := &Worker{
		requests: make(chan request, queueSize),
	}
	w.tomb.Go(w.loop)
	return w
}

// Kill asks the worker to stop. Pending requests fail with the worker's
// death reason.
func (w *Worker) Kill() {
	w.tomb.Kill(nil)
}

// Wait blocks until the worker has stopped.
func (w *Worker) Wait() error {
	return w.tomb.Wait()
}

// Materialize queues a download of the dataset and waits for its
// result. It returns early if the context is cancelled or the worker
// dies; the walk itself then still observes cancellation through the
// worker's context.
func (w *Worker) Materialize(ctx context.Context, d *dataset.Dataset, force bool) error {
	req := request{dataset: d, force: force, done: make(chan error, 1)}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case <-w.tomb.Dying():
		return errors.New("materializer worker is stopping")
	}
	select {
	case err := <-req.done:
		return errors.Trace(err)
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case <-w.tomb.Dying():
		return errors.New("materializer worker is stopping")
	}
}

func (w *Worker) loop() error {
	ctx := w.tomb.Context(context.Background())
	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying
		case req := <-w.requests:
			logger.Infof("materializing dataset %q", req.dataset.Name())
			err := req.dataset.Download(ctx, req.force)
			if err != nil {
				logger.Errorf("dataset %q: %v", req.dataset.Name(), err)
			}
			req.done <- err
		}
	}
}
