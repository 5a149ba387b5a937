// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package resource defines the unit of dataset materialization: a
// named resource with declared dependencies, a persisted state, and a
// two-path (staging, final) layout under the owning dataset's
// directory. Concrete resource kinds embed one of the base types here
// and supply a Fetch routine; the dataset package drives them in
// dependency order.
package resource

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("materialize.resource")

// downloadsDir is the reserved staging subtree of a dataset directory.
// Nothing under it is ever a final artifact.
const downloadsDir = ".downloads"

// Dataset is the owner-side contract a resource needs from the dataset
// it is bound to. The concrete implementation lives in the dataset
// package.
type Dataset interface {
	// Name identifies the dataset in messages.
	Name() string

	// Path is the dataset's root storage directory.
	Path() string

	// States is the dataset's durable state record.
	States() *StateFile
}

// Resource is the capability interface implemented by every resource
// kind. Implementations embed Base (or FileBase, FolderBase,
// ValueBase) and provide Fetch; the unexported methods keep binding
// and graph bookkeeping inside this package.
type Resource interface {
	// Name is the resource's unique name within its dataset.
	Name() string

	// Dataset returns the owning dataset, or nil before binding.
	Dataset() Dataset

	// Dependencies are the resources that must be Complete before this
	// one is fetched, in declaration order.
	Dependencies() []Resource

	// Dependents are the resources that declared this one as a
	// dependency. They are computed by ComputeDependents, not declared.
	Dependents() []Resource

	// Transient reports whether the materialized footprint is an
	// intermediate, eligible for eager deletion once every dependent
	// is Complete.
	Transient() bool

	// CanRecover reports whether a failed fetch's partial staging
	// output should be preserved for a later attempt.
	CanRecover() bool

	// HasFiles reports whether the resource produces files on disk.
	// False only for pure value and link-style resources.
	HasFiles() bool

	// Path is the final location of the materialized artifact.
	Path() string

	// TransientPath is the staging location, always under the
	// dataset's .downloads subtree.
	TransientPath() string

	// State reads the persisted state from the dataset's state file.
	State() (State, error)

	// SetState persists a state change immediately. Callers must hold
	// the dataset lock; during a walk only the orchestrator calls this.
	SetState(State) error

	// Fetch populates dest (the transient path) with the resource's
	// content. It must not write to Path directly; the orchestrator
	// owns promotion. Resources without files may ignore dest.
	Fetch(ctx context.Context, env *Env, dest string) error

	// Prepare returns the externally usable handle once the resource
	// is Complete: a path for file and folder kinds, an opaque value
	// otherwise.
	Prepare() (any, error)

	// Cleanup removes the final and staging artifacts and resets the
	// state to None. The resource definition itself stays usable and
	// can be materialized again.
	Cleanup() error

	bind(name string, ds Dataset, outer Resource) error
	clearDependents()
	addDependent(Resource)
}

// Bind attaches a resource to a dataset under the given name. An empty
// name keeps the name the resource was constructed with. Binding is a
// one-shot operation: binding an already bound resource is a
// *BindError, never a no-op.
func Bind(r Resource, name string, ds Dataset) error {
	return r.bind(name, ds, r)
}

// Base supplies the bookkeeping shared by every resource kind.
type Base struct {
	name       string
	dataset    Dataset
	transient  bool
	deps       []Resource
	dependents []Resource

	// outer is the complete resource value embedding this base, so
	// shared helpers dispatch through overridden methods.
	outer Resource
}

// NewBase returns a Base for a resource with the given name and
// declared dependencies.
func NewBase(name string, transient bool, deps ...Resource) Base {
	return Base{name: name, transient: transient, deps: deps}
}

// Name is part of the Resource interface.
func (b *Base) Name() string {
	return b.name
}

// Dataset is part of the Resource interface.
func (b *Base) Dataset() Dataset {
	return b.dataset
}

// Dependencies is part of the Resource interface.
func (b *Base) Dependencies() []Resource {
	return b.deps
}

// Dependents is part of the Resource interface.
func (b *Base) Dependents() []Resource {
	return b.dependents
}

// Transient is part of the Resource interface.
func (b *Base) Transient() bool {
	return b.transient
}

// CanRecover is part of the Resource interface. Kinds that can resume
// from partial staging output shadow this.
func (b *Base) CanRecover() bool {
	return false
}

// HasFiles is part of the Resource interface.
func (b *Base) HasFiles() bool {
	return true
}

// Path is part of the Resource interface.
func (b *Base) Path() string {
	return filepath.Join(b.dataset.Path(), b.name)
}

// TransientPath is part of the Resource interface.
func (b *Base) TransientPath() string {
	return filepath.Join(b.dataset.Path(), downloadsDir, b.name)
}

// State is part of the Resource interface. An unbound resource
// reports None.
func (b *Base) State() (State, error) {
	if b.dataset == nil {
		return None, nil
	}
	state, err := b.dataset.States().Read(b.name)
	if err != nil {
		return "", errors.Trace(err)
	}
	return state, nil
}

// SetState is part of the Resource interface.
func (b *Base) SetState(state State) error {
	if b.dataset == nil {
		return errors.Errorf("resource %q is not bound to a dataset", b.name)
	}
	return errors.Trace(b.dataset.States().Write(b.name, state))
}

// Prepare is part of the Resource interface. The default handle is the
// final path; value kinds shadow this.
func (b *Base) Prepare() (any, error) {
	if b.outer == nil {
		return nil, errors.Errorf("resource %q is not bound to a dataset", b.name)
	}
	return b.outer.Path(), nil
}

// Cleanup is part of the Resource interface. Paths are taken from the
// outermost resource so kinds that shadow Path or TransientPath clean
// the right locations.
func (b *Base) Cleanup() error {
	if b.outer == nil {
		return errors.Errorf("resource %q is not bound to a dataset", b.name)
	}
	for _, path := range []string{b.outer.Path(), b.outer.TransientPath()} {
		if path == "" {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return errors.Annotatef(err, "cleaning up resource %q", b.name)
		}
	}
	logger.Debugf("cleaned up resource %q", b.name)
	return errors.Trace(b.SetState(None))
}

func (b *Base) bind(name string, ds Dataset, outer Resource) error {
	if b.dataset != nil {
		return &BindError{
			Name:    b.name,
			Message: "already bound to dataset " + b.dataset.Name(),
		}
	}
	if name != "" {
		b.name = name
	}
	if b.name == "" {
		return &BindError{Message: "no name given"}
	}
	b.dataset = ds
	b.outer = outer
	return nil
}

func (b *Base) clearDependents() {
	b.dependents = nil
}

func (b *Base) addDependent(r Resource) {
	for _, d := range b.dependents {
		if d == r {
			return
		}
	}
	b.dependents = append(b.dependents, r)
}
