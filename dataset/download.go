// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dataset

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/juju/materialize/lock"
	"github.com/juju/materialize/resource"
)

const (
	lockFileName = ".state.lock"
	downloadsDir = ".downloads"
)

// Download materializes every resource in the dataset, in dependency
// order, under the dataset's exclusive lock. It is idempotent: state
// already recorded as complete (and present on disk) is skipped, so a
// second call after success fetches nothing. force re-fetches
// everything regardless of recorded state.
//
// A fetch failure stops the walk and is returned as a
// *resource.DownloadError naming the failing resource; resources
// completed before the failure keep their artifacts. Structural
// problems (dependency cycles, corrupt state) are returned before any
// fetch begins.
func (d *Dataset) Download(ctx context.Context, force bool) error {
	resource.ComputeDependents(d.ordered)
	ordered, err := resource.TopologicalSort(d.ordered)
	if err != nil {
		return errors.Trace(err)
	}
	// The sort follows dependency edges wherever they lead, so a
	// dependency that was never registered surfaces here.
	for _, r := range ordered {
		if r.Dataset() != resource.Dataset(d) {
			return &resource.BindError{
				Name:    r.Name(),
				Message: "not registered in dataset " + d.name,
			}
		}
	}

	logger.Infof("materializing %d resources of dataset %q", len(ordered), d.name)
	if err := os.MkdirAll(d.path, 0755); err != nil {
		return errors.Trace(err)
	}

	releaser, err := lock.Acquire(ctx, lock.Spec{
		Path:    filepath.Join(d.path, lockFileName),
		Clock:   d.clock,
		Delay:   d.delay,
		Timeout: d.timeout,
	})
	if err != nil {
		return errors.Trace(err)
	}
	defer releaser.Release()

	env := *d.env
	env.Force = force
	return d.downloadLocked(ctx, &env, ordered, force)
}

// downloadLocked runs the materialization walk. The dataset lock is
// held for the whole walk, so persisted state observed here is
// consistent and writes never interleave with another caller's.
func (d *Dataset) downloadLocked(ctx context.Context, env *resource.Env, ordered []resource.Resource, force bool) error {
	for _, r := range ordered {
		state, err := r.State()
		if err != nil {
			return errors.Trace(err)
		}

		if state == resource.Complete && !force {
			if r.HasFiles() && !pathExists(r.Path()) {
				// Repair: the record says complete but the artifact is
				// gone. Reset and fall through to a re-download.
				logger.Warningf("resource %q marked complete but missing at %s; re-downloading",
					r.Name(), r.Path())
				if err := r.SetState(resource.None); err != nil {
					return errors.Trace(err)
				}
				state = resource.None
			} else {
				continue
			}
		}

		// Adoption: data placed by an engine version without persisted
		// state, or externally, counts as complete as it stands.
		if state == resource.None && !force && r.HasFiles() && pathExists(r.Path()) {
			logger.Infof("resource %q already present at %s; adopting", r.Name(), r.Path())
			if err := r.SetState(resource.Complete); err != nil {
				return errors.Trace(err)
			}
			if err := d.cleanupTransients(r); err != nil {
				return errors.Trace(err)
			}
			continue
		}

		// Partial output from a non-recoverable resource cannot be
		// trusted; start that fetch from scratch.
		if state == resource.Partial && !r.CanRecover() {
			if err := os.RemoveAll(r.TransientPath()); err != nil {
				return errors.Trace(err)
			}
			if err := r.SetState(resource.None); err != nil {
				return errors.Trace(err)
			}
		}

		for _, dep := range r.Dependencies() {
			depState, err := dep.State()
			if err != nil {
				return errors.Trace(err)
			}
			if depState != resource.Complete {
				return &resource.DownloadError{
					Name:  r.Name(),
					Cause: errors.Errorf("dependency %q is not complete", dep.Name()),
				}
			}
		}

		if err := r.Fetch(ctx, env, r.TransientPath()); err != nil {
			logger.Errorf("cannot download resource %q: %v", r.Name(), err)
			if r.CanRecover() {
				if serr := r.SetState(resource.Partial); serr != nil {
					return errors.Trace(serr)
				}
			} else {
				if rerr := os.RemoveAll(r.TransientPath()); rerr != nil {
					return errors.Trace(rerr)
				}
				if serr := r.SetState(resource.None); serr != nil {
					return errors.Trace(serr)
				}
			}
			return &resource.DownloadError{Name: r.Name(), Cause: err}
		}

		if r.HasFiles() {
			if err := promote(r.TransientPath(), r.Path()); err != nil {
				return errors.Annotatef(err, "promoting resource %q", r.Name())
			}
		}
		if err := r.SetState(resource.Complete); err != nil {
			return errors.Trace(err)
		}
		if err := d.cleanupTransients(r); err != nil {
			return errors.Trace(err)
		}
	}

	return errors.Trace(d.removeEmptyDownloads())
}

// cleanupTransients eagerly reclaims any transient dependency of r
// whose dependents are now all complete. It runs after every
// completion because dependents may complete in any order relative to
// each other.
func (d *Dataset) cleanupTransients(r resource.Resource) error {
	for _, dep := range r.Dependencies() {
		if !dep.Transient() {
			continue
		}
		allComplete := true
		for _, dependent := range dep.Dependents() {
			state, err := dependent.State()
			if err != nil {
				return errors.Trace(err)
			}
			if state != resource.Complete {
				allComplete = false
				break
			}
		}
		if allComplete {
			if err := dep.Cleanup(); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return nil
}

// removeEmptyDownloads drops the staging directory after a fully
// successful walk, when nothing was left behind in it.
func (d *Dataset) removeEmptyDownloads() error {
	dir := filepath.Join(d.path, downloadsDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	if len(entries) == 0 {
		return errors.Trace(os.Remove(dir))
	}
	return nil
}

// promote moves staged content into its final location. A fetch that
// wrote nothing to the staging path (link-style resources write in
// place) promotes as a no-op.
func promote(src, dst string) error {
	if !pathExists(src) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Trace(err)
	}
	if pathExists(dst) {
		if err := os.RemoveAll(dst); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(os.Rename(src, dst))
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
