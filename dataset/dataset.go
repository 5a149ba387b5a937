// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package dataset holds the per-dataset resource table and the
// orchestrator that materializes it: resources are walked in
// dependency order under an exclusive lock, fetched into a staging
// area, promoted into place, and their states persisted so a crashed
// or repeated run resumes correctly.
package dataset

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/materialize/resource"
)

var logger = loggo.GetLogger("materialize.dataset")

// Dataset owns a name→resource table, a root storage directory, the
// state file recording each resource's progress, and the lock file
// serializing downloads. The table is assembled once by an external
// binder through Register and is fixed before Download runs.
type Dataset struct {
	name    string
	path    string
	env     *resource.Env
	clock   clock.Clock
	delay   time.Duration
	timeout time.Duration

	resources map[string]resource.Resource
	ordered   []resource.Resource
	states    *resource.StateFile
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithEnv supplies the collaborators propagated to every resource
// fetch during a walk.
func WithEnv(env *resource.Env) Option {
	return func(d *Dataset) {
		d.env = env
	}
}

// WithClock substitutes the clock used for lock acquisition polling.
func WithClock(c clock.Clock) Option {
	return func(d *Dataset) {
		d.clock = c
	}
}

// WithLockTimeout bounds how long Download waits for the dataset lock.
// The default is to wait indefinitely.
func WithLockTimeout(timeout time.Duration) Option {
	return func(d *Dataset) {
		d.timeout = timeout
	}
}

// New returns a dataset rooted at path. The name is only used in
// messages; the path determines where artifacts, state and lock live.
func New(name, path string, options ...Option) *Dataset {
	d := &Dataset{
		name:      name,
		path:      path,
		env:       &resource.Env{},
		clock:     clock.WallClock,
		resources: make(map[string]resource.Resource),
		states:    resource.NewStateFile(path),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Name is part of the resource.Dataset interface.
func (d *Dataset) Name() string {
	return d.name
}

// Path is part of the resource.Dataset interface.
func (d *Dataset) Path() string {
	return d.path
}

// States is part of the resource.Dataset interface.
func (d *Dataset) States() *resource.StateFile {
	return d.states
}

// Register binds a resource into the dataset's table. An empty name
// keeps the name the resource derived at construction. Registering a
// duplicate name, or a resource bound elsewhere, is a
// *resource.BindError.
func (d *Dataset) Register(name string, r resource.Resource) error {
	if name == "" {
		name = r.Name()
	}
	if name == "" {
		return &resource.BindError{Message: "no name given"}
	}
	if _, ok := d.resources[name]; ok {
		return &resource.BindError{
			Name:    name,
			Message: "name already declared in dataset " + d.name,
		}
	}
	if err := resource.Bind(r, name, d); err != nil {
		return errors.Trace(err)
	}
	d.resources[name] = r
	d.ordered = append(d.ordered, r)
	return nil
}

// Resource looks up a registered resource by name.
func (d *Dataset) Resource(name string) (resource.Resource, bool) {
	r, ok := d.resources[name]
	return r, ok
}

// Resources returns the registered resources in declaration order.
func (d *Dataset) Resources() []resource.Resource {
	return append([]resource.Resource(nil), d.ordered...)
}

// HasFiles reports whether any resource in the dataset produces files
// on disk.
func (d *Dataset) HasFiles() bool {
	for _, r := range d.ordered {
		if r.HasFiles() {
			return true
		}
	}
	return false
}

// Prepare materializes the dataset if needed and returns each
// resource's prepared handle keyed by name.
func (d *Dataset) Prepare(ctx context.Context) (map[string]any, error) {
	if err := d.Download(ctx, false); err != nil {
		return nil, errors.Trace(err)
	}
	prepared := make(map[string]any, len(d.ordered))
	for _, r := range d.ordered {
		value, err := r.Prepare()
		if err != nil {
			return nil, errors.Annotatef(err, "preparing resource %q", r.Name())
		}
		prepared[r.Name()] = value
	}
	return prepared, nil
}
