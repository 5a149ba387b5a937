// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package download

import (
	"context"

	"github.com/juju/errors"

	"github.com/juju/materialize/resource"
)

// Func is a user-supplied download routine. It receives the dataset
// root directory and writes whatever it produces under it.
type Func func(ctx context.Context, root string, force bool) error

// Custom delegates materialization to a user function. It reports no
// files of its own, so the engine tracks only its recorded state and
// leaves the function's output alone.
type Custom struct {
	resource.Base
	fn Func
}

// NewCustom returns a resource running fn to materialize name.
func NewCustom(name string, fn Func) *Custom {
	return &Custom{
		Base: resource.NewBase(name, false),
		fn:   fn,
	}
}

// HasFiles is part of the resource.Resource interface.
func (c *Custom) HasFiles() bool {
	return false
}

// Prepare is part of the resource.Resource interface. The prepared
// handle is the dataset root the function wrote into.
func (c *Custom) Prepare() (any, error) {
	return c.Dataset().Path(), nil
}

// Fetch is part of the resource.Resource interface.
func (c *Custom) Fetch(ctx context.Context, env *resource.Env, _ string) error {
	if c.fn == nil {
		return errors.Errorf("resource %q has no download function", c.Name())
	}
	return errors.Trace(c.fn(ctx, c.Dataset().Path(), env != nil && env.Force))
}
