// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package download

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/juju/materialize/dataset"
	"github.com/juju/materialize/resource"
)

// Link names one symlink created by a Links resource: either to
// another dataset's root (materializing it first) or to a fixed path.
type Link struct {
	// Name is the symlink name under the dataset root.
	Name string
	// Dataset, when set, is materialized and linked to.
	Dataset *dataset.Dataset
	// Path is linked to directly when Dataset is nil.
	Path string
}

// Links materializes a set of symlinks directly under the dataset
// root, pointing at other datasets or fixed paths. It produces no
// files of its own, so the two-path protocol does not apply; dangling
// links are replaced on each walk.
type Links struct {
	resource.Base
	links []Link
}

// NewLinks returns a links resource creating the given symlinks.
func NewLinks(name string, links ...Link) *Links {
	return &Links{
		Base:  resource.NewBase(name, false),
		links: links,
	}
}

// HasFiles is part of the resource.Resource interface.
func (l *Links) HasFiles() bool {
	return false
}

// Path is part of the resource.Resource interface. The links live
// directly under the dataset root.
func (l *Links) Path() string {
	return l.Dataset().Path()
}

// Prepare is part of the resource.Resource interface.
func (l *Links) Prepare() (any, error) {
	return l.Path(), nil
}

// Cleanup is part of the resource.Resource interface. Path is the
// dataset root, which must survive cleanup; only the named symlinks
// are removed.
func (l *Links) Cleanup() error {
	for _, link := range l.links {
		dest := filepath.Join(l.Path(), link.Name)
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return errors.Annotatef(err, "removing symlink %q", dest)
		}
	}
	return errors.Trace(l.SetState(resource.None))
}

// Fetch is part of the resource.Resource interface.
func (l *Links) Fetch(ctx context.Context, env *resource.Env, _ string) error {
	if err := os.MkdirAll(l.Path(), 0755); err != nil {
		return errors.Trace(err)
	}
	for _, link := range l.links {
		target := link.Path
		if link.Dataset != nil {
			force := env != nil && env.Force
			if err := link.Dataset.Download(ctx, force); err != nil {
				return errors.Trace(err)
			}
			target = link.Dataset.Path()
		}
		dest := filepath.Join(l.Path(), link.Name)
		if dangling(dest) {
			logger.Infof("removing dangling symlink %s", dest)
			if err := os.Remove(dest); err != nil {
				return errors.Trace(err)
			}
		}
		if _, err := os.Lstat(dest); os.IsNotExist(err) {
			if err := os.Symlink(target, dest); err != nil {
				return errors.Trace(err)
			}
		} else if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// LinkPath symlinks the resource path to the first acceptable
// candidate among its proposals. When none checks out, the walk's
// resolver callback is consulted; without one the resource fails
// rather than guessing.
type LinkPath struct {
	resource.Base
	proposals []string
	check     func(os.FileInfo) bool
}

// NewLinkFile returns a resource linking to an existing file found
// among the proposed paths.
func NewLinkFile(name string, proposals ...string) *LinkPath {
	return &LinkPath{
		Base:      resource.NewBase(name, false),
		proposals: proposals,
		check:     func(info os.FileInfo) bool { return info.Mode().IsRegular() },
	}
}

// NewLinkFolder returns a resource linking to an existing directory
// found among the proposed paths.
func NewLinkFolder(name string, proposals ...string) *LinkPath {
	return &LinkPath{
		Base:      resource.NewBase(name, false),
		proposals: proposals,
		check:     func(info os.FileInfo) bool { return info.IsDir() },
	}
}

// HasFiles is part of the resource.Resource interface. The symlink is
// managed by Fetch itself, which knows how to tell a live link from a
// dangling one; the adoption and promotion machinery does not.
func (l *LinkPath) HasFiles() bool {
	return false
}

// Fetch is part of the resource.Resource interface. The symlink is
// created at the final path directly; promotion is a no-op for it.
func (l *LinkPath) Fetch(ctx context.Context, env *resource.Env, _ string) error {
	if l.accepts(l.Path()) {
		return nil
	}
	if dangling(l.Path()) {
		logger.Warningf("removing dangling symlink %s", l.Path())
		if err := os.Remove(l.Path()); err != nil {
			return errors.Trace(err)
		}
	}

	target := ""
	for _, proposal := range l.proposals {
		logger.Infof("trying path %s", proposal)
		if l.accepts(proposal) {
			target = proposal
			break
		}
	}
	if target == "" {
		if env == nil || env.Resolve == nil {
			return errors.NotFoundf("usable path for resource %q", l.Name())
		}
		resolved, err := env.Resolve(l.Name())
		if err != nil {
			return errors.Annotatef(err, "resolving path for resource %q", l.Name())
		}
		if !l.accepts(resolved) {
			return errors.NotFoundf("usable path %q for resource %q", resolved, l.Name())
		}
		target = resolved
	}

	logger.Debugf("linking %s to %s", target, l.Path())
	if err := os.MkdirAll(filepath.Dir(l.Path()), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Symlink(target, l.Path()))
}

func (l *LinkPath) accepts(path string) bool {
	info, err := os.Stat(path)
	return err == nil && l.check(info)
}

// dangling reports a symlink whose target no longer exists.
func dangling(path string) bool {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return false
	}
	_, err = os.Stat(path)
	return err != nil
}
