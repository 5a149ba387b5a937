// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package download

import (
	"context"

	"github.com/juju/errors"

	"github.com/juju/materialize/resource"
)

// Value is a pure in-memory resource: no files on disk, state tracking
// only. The value is produced by a supplied function the first time
// the resource is fetched.
type Value struct {
	resource.ValueBase
	fn    func(ctx context.Context) (any, error)
	value any
}

// NewValue returns a value resource computing its handle with fn.
func NewValue(name string, fn func(ctx context.Context) (any, error)) *Value {
	return &Value{
		ValueBase: resource.NewValueBase(name),
		fn:        fn,
	}
}

// Fetch is part of the resource.Resource interface.
func (v *Value) Fetch(ctx context.Context, _ *resource.Env, _ string) error {
	if v.fn == nil {
		return errors.Errorf("resource %q has no value function", v.Name())
	}
	value, err := v.fn(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	v.value = value
	return nil
}

// Prepare is part of the resource.Resource interface.
func (v *Value) Prepare() (any, error) {
	return v.value, nil
}
