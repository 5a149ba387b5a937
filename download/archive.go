// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package download

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/materialize/resource"
)

// Archive downloads an archive and extracts it into a folder,
// optionally restricted to a subpath or an explicit file set. An
// archive whose content is a single top-level directory is unwrapped
// so the folder holds that directory's content directly.
type Archive struct {
	resource.FolderBase
	url     string
	subpath string
	files   set.Strings
	sha256  string
	extract func(a *Archive, from, dest string) error
}

// ArchiveOption configures an Archive resource.
type ArchiveOption func(*Archive)

// WithSubpath extracts only entries under the given archive subpath,
// stripping the prefix from the extracted layout.
func WithSubpath(subpath string) ArchiveOption {
	return func(a *Archive) {
		if subpath != "" && !strings.HasSuffix(subpath, "/") {
			subpath += "/"
		}
		a.subpath = subpath
	}
}

// WithFiles extracts only the named archive entries.
func WithFiles(files ...string) ArchiveOption {
	return func(a *Archive) {
		a.files = set.NewStrings(files...)
	}
}

// WithArchiveChecksum verifies the downloaded archive against a hex
// sha256 digest before extraction.
func WithArchiveChecksum(hexDigest string) ArchiveOption {
	return func(a *Archive) {
		a.sha256 = hexDigest
	}
}

// ArchiveTransient marks the extracted folder as an intermediate,
// reclaimed once all dependents are complete.
func ArchiveTransient() ArchiveOption {
	return func(a *Archive) {
		a.FolderBase = resource.NewFolderBase(a.Name(), true)
	}
}

var (
	zipSuffix = regexp.MustCompile(`\.zip$`)
	tarSuffix = regexp.MustCompile(`\.tar(\.gz|\.bz2)?$|\.tgz$`)
)

// NewZip returns a folder resource extracting a ZIP archive from url.
// An empty name derives one from the archive file name.
func NewZip(name, archiveURL string, options ...ArchiveOption) *Archive {
	return newArchive(name, archiveURL, zipSuffix, (*Archive).unzip, options)
}

// NewTar returns a folder resource extracting a TAR archive (plain,
// gzip or bzip2 compressed) from url. An empty name derives one from
// the archive file name.
func NewTar(name, archiveURL string, options ...ArchiveOption) *Archive {
	return newArchive(name, archiveURL, tarSuffix, (*Archive).untar, options)
}

func newArchive(name, archiveURL string, suffix *regexp.Regexp, extract func(a *Archive, from, dest string) error, options []ArchiveOption) *Archive {
	if name == "" {
		source := archiveURL
		if u, err := url.Parse(archiveURL); err == nil {
			source = u.Path
		}
		name = suffix.ReplaceAllString(path.Base(source), "")
	}
	a := &Archive{
		FolderBase: resource.NewFolderBase(name, false),
		url:        archiveURL,
		extract:    extract,
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// URL returns the source location.
func (a *Archive) URL() string {
	return a.url
}

// Fetch is part of the resource.Resource interface.
func (a *Archive) Fetch(ctx context.Context, env *resource.Env, dest string) error {
	if env == nil || env.Client == nil {
		return errors.Errorf("resource %q has no fetch client", a.Name())
	}
	logger.Infof("downloading %s into %s", a.url, dest)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return errors.Trace(err)
	}

	cached, err := env.Client.Fetch(ctx, a.url)
	if err != nil {
		return errors.Trace(err)
	}
	defer cached.Close()

	if a.sha256 != "" {
		if err := verifySHA256(cached.Path, a.sha256); err != nil {
			return errors.Annotatef(err, "verifying %q", a.url)
		}
	}
	if err := a.extract(a, cached.Path, dest); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(unwrapSingleDir(dest))
}

// include maps an archive entry name to its extraction name, or false
// when the subpath or file-set filters exclude it.
func (a *Archive) include(name string) (string, bool) {
	if a.files != nil && !a.files.Contains(name) {
		return "", false
	}
	if a.subpath != "" {
		if !strings.HasPrefix(name, a.subpath) {
			return "", false
		}
		name = name[len(a.subpath):]
	}
	if name == "" {
		return "", false
	}
	return name, true
}

func (a *Archive) unzip(from, dest string) error {
	reader, err := zip.OpenReader(from)
	if err != nil {
		return errors.Trace(err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		name, ok := a.include(entry.Name)
		if !ok {
			continue
		}
		target, err := extractionPath(dest, name)
		if err != nil {
			return errors.Trace(err)
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Trace(err)
			}
			continue
		}
		content, err := entry.Open()
		if err != nil {
			return errors.Trace(err)
		}
		err = writeEntry(target, content, entry.Mode())
		content.Close()
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (a *Archive) untar(from, dest string) error {
	file, err := os.Open(from)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()

	// The cache names files by URL hash, so compression is decided by
	// the source URL rather than the local path.
	source := a.url
	if u, err := url.Parse(a.url); err == nil {
		source = u.Path
	}
	var content io.Reader = file
	switch {
	case strings.HasSuffix(source, ".gz"), strings.HasSuffix(source, ".tgz"):
		gz, err := gzip.NewReader(file)
		if err != nil {
			return errors.Trace(err)
		}
		defer gz.Close()
		content = gz
	case strings.HasSuffix(source, ".bz2"):
		content = bzip2.NewReader(file)
	}

	reader := tar.NewReader(content)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Trace(err)
		}
		name, ok := a.include(header.Name)
		if !ok {
			continue
		}
		target, err := extractionPath(dest, name)
		if err != nil {
			return errors.Trace(err)
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Trace(err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, reader, os.FileMode(header.Mode)); err != nil {
				return errors.Trace(err)
			}
		}
	}
}

// extractionPath joins an archive entry name onto dest, refusing
// entries that would escape it.
func extractionPath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", errors.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

func writeEntry(target string, content io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Trace(err)
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm()|0600)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := io.Copy(out, content); err != nil {
		out.Close()
		return errors.Trace(err)
	}
	return errors.Trace(out.Close())
}

// unwrapSingleDir flattens an extraction that produced exactly one
// top-level directory, a common archive layout.
func unwrapSingleDir(dest string) error {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return errors.Trace(err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}
	single := filepath.Join(dest, entries[0].Name())
	logger.Infof("unwrapping single directory %s into %s", single, dest)
	tmp := dest + ".unwrap"
	if err := os.Rename(single, tmp); err != nil {
		return errors.Trace(err)
	}
	if err := os.RemoveAll(dest); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Rename(tmp, dest))
}
