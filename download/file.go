// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package download provides the concrete resource leaves: single-file
// URL downloads, archive extraction, symlinks to existing data, pure
// values, and user-supplied routines. The orchestration around them
// (ordering, state, promotion, locking) lives in the dataset package;
// leaves only populate the staging destination they are given.
package download

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/materialize/resource"
)

var logger = loggo.GetLogger("materialize.download")

// File downloads a single file from a URL, optionally decompressing it
// and verifying a sha256 digest.
type File struct {
	resource.FileBase
	url    string
	sha256 string
	size   int64
}

// FileOption configures a File resource.
type FileOption func(*File)

// WithChecksum verifies the downloaded content against a hex sha256
// digest before it is accepted.
func WithChecksum(hexDigest string) FileOption {
	return func(f *File) {
		f.sha256 = hexDigest
	}
}

// WithSize verifies the downloaded content is exactly size bytes.
func WithSize(size int64) FileOption {
	return func(f *File) {
		f.size = size
	}
}

// FileTransient marks the file as an intermediate, reclaimed once all
// dependents are complete.
func FileTransient() FileOption {
	return func(f *File) {
		f.FileBase = resource.NewFileBase(f.Filename(), f.Name(), true)
	}
}

// NewFile returns a file resource producing filename from url. The
// resource name is the filename with extensions stripped; register
// under another name to override. A URL ending in .gz whose target
// filename does not is decompressed on the way in.
func NewFile(filename, fileURL string, options ...FileOption) *File {
	f := &File{
		FileBase: resource.NewFileBase(filename, "", false),
		url:      fileURL,
	}
	for _, option := range options {
		option(f)
	}
	return f
}

// URL returns the source location.
func (f *File) URL() string {
	return f.url
}

// Fetch is part of the resource.Resource interface.
func (f *File) Fetch(ctx context.Context, env *resource.Env, dest string) error {
	if env == nil || env.Client == nil {
		return errors.Errorf("resource %q has no fetch client", f.Name())
	}
	logger.Infof("downloading %s into %s", f.url, dest)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Trace(err)
	}

	cached, err := env.Client.Fetch(ctx, f.url)
	if err != nil {
		return errors.Trace(err)
	}
	defer cached.Close()

	if f.size > 0 {
		info, err := os.Stat(cached.Path)
		if err != nil {
			return errors.Trace(err)
		}
		if info.Size() != f.size {
			return errors.Errorf("size mismatch for %q: expected %d bytes, got %d",
				f.url, f.size, info.Size())
		}
	}
	if f.sha256 != "" {
		if err := verifySHA256(cached.Path, f.sha256); err != nil {
			return errors.Annotatef(err, "verifying %q", f.url)
		}
	}

	if f.decompress() {
		return errors.Trace(gunzipFile(cached.Path, dest))
	}
	if cached.Keep() {
		return errors.Trace(copyFile(cached.Path, dest))
	}
	return errors.Trace(moveFile(cached.Path, dest))
}

// decompress reports whether the source is gzip-compressed relative to
// the target filename.
func (f *File) decompress() bool {
	source := f.url
	if u, err := url.Parse(f.url); err == nil {
		source = u.Path
	}
	return path.Ext(source) == ".gz" && !strings.HasSuffix(f.Filename(), ".gz")
}

func verifySHA256(filePath, hexDigest string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return errors.Trace(err)
	}
	actual := hex.EncodeToString(hash.Sum(nil))
	if actual != hexDigest {
		return errors.Errorf("checksum mismatch: expected %s, got %s", hexDigest, actual)
	}
	return nil
}

func gunzipFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Trace(err)
	}
	defer in.Close()
	gz, err := gzip.NewReader(in)
	if err != nil {
		return errors.Trace(err)
	}
	defer gz.Close()
	out, err := os.Create(dest)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := io.Copy(out, gz); err != nil {
		out.Close()
		return errors.Trace(err)
	}
	return errors.Trace(out.Close())
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Trace(err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Trace(err)
	}
	return errors.Trace(out.Close())
}

// moveFile renames when possible, falling back to copy-and-remove when
// the cache and the dataset live on different filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Remove(src))
}
