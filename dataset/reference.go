// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dataset

import (
	"context"

	"github.com/juju/errors"

	"github.com/juju/materialize/resource"
)

// Reference is a resource that stands for another dataset. Fetching it
// delegates to the referenced dataset's own engine instance (its own
// lock, state file and walk); it produces no files of its own.
type Reference struct {
	resource.ValueBase
	target *Dataset
}

// NewReference returns a resource named name referring to target.
func NewReference(name string, target *Dataset) *Reference {
	return &Reference{
		ValueBase: resource.NewValueBase(name),
		target:    target,
	}
}

// Target returns the referenced dataset.
func (r *Reference) Target() *Dataset {
	return r.target
}

// Fetch is part of the resource.Resource interface. It materializes
// the referenced dataset, propagating a forced walk.
func (r *Reference) Fetch(ctx context.Context, env *resource.Env, _ string) error {
	if r.target == nil {
		return errors.Errorf("reference %q has no target dataset", r.Name())
	}
	return errors.Trace(r.target.Download(ctx, env != nil && env.Force))
}

// Prepare is part of the resource.Resource interface. The prepared
// handle of a reference is the referenced dataset itself.
func (r *Reference) Prepare() (any, error) {
	if r.target == nil {
		return nil, errors.Errorf("reference %q has no target dataset", r.Name())
	}
	return r.target, nil
}
