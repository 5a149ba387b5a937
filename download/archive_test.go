// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package download_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/materialize/download"
	"github.com/juju/materialize/fetch"
	"github.com/juju/materialize/resource"
)

func zipBytes(c *gc.C, entries map[string]string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		c.Assert(err, jc.ErrorIsNil)
		_, err = f.Write([]byte(content))
		c.Assert(err, jc.ErrorIsNil)
	}
	c.Assert(w.Close(), jc.ErrorIsNil)
	return buf.Bytes()
}

func tarGzBytes(c *gc.C, entries map[string]string) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	w := tar.NewWriter(gz)
	for name, content := range entries {
		err := w.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		})
		c.Assert(err, jc.ErrorIsNil)
		_, err = w.Write([]byte(content))
		c.Assert(err, jc.ErrorIsNil)
	}
	c.Assert(w.Close(), jc.ErrorIsNil)
	c.Assert(gz.Close(), jc.ErrorIsNil)
	return buf.Bytes()
}

type archiveSuite struct {
	testing.IsolationSuite
	mux    *http.ServeMux
	server *httptest.Server
	env    *resource.Env
}

var _ = gc.Suite(&archiveSuite{})

func (s *archiveSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	s.AddCleanup(func(c *gc.C) { s.server.Close() })
	s.env = &resource.Env{Client: fetch.NewClient(c.MkDir())}
}

func (s *archiveSuite) serve(c *gc.C, path string, content []byte) string {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	})
	return s.server.URL + path
}

func (s *archiveSuite) extract(c *gc.C, a *download.Archive) string {
	dest := filepath.Join(c.MkDir(), a.Name())
	c.Assert(a.Fetch(context.Background(), s.env, dest), jc.ErrorIsNil)
	return dest
}

func (s *archiveSuite) assertContent(c *gc.C, path, content string) {
	data, err := os.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, content)
}

func (s *archiveSuite) TestName(c *gc.C) {
	c.Check(download.NewZip("", "http://host/bundle.zip").Name(), gc.Equals, "bundle")
	c.Check(download.NewTar("", "http://host/corpus.tar.gz").Name(), gc.Equals, "corpus")
	c.Check(download.NewTar("", "http://host/corpus.tgz").Name(), gc.Equals, "corpus")
	c.Check(download.NewTar("", "http://host/corpus.tar.bz2").Name(), gc.Equals, "corpus")
	c.Check(download.NewZip("docs", "http://host/bundle.zip").Name(), gc.Equals, "docs")
}

func (s *archiveSuite) TestUnzip(c *gc.C) {
	url := s.serve(c, "/bundle.zip", zipBytes(c, map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "beta",
	}))
	dest := s.extract(c, download.NewZip("", url))

	s.assertContent(c, filepath.Join(dest, "a.txt"), "alpha")
	s.assertContent(c, filepath.Join(dest, "sub", "b.txt"), "beta")
}

func (s *archiveSuite) TestUntarGz(c *gc.C) {
	url := s.serve(c, "/corpus.tar.gz", tarGzBytes(c, map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "beta",
	}))
	dest := s.extract(c, download.NewTar("", url))

	s.assertContent(c, filepath.Join(dest, "a.txt"), "alpha")
	s.assertContent(c, filepath.Join(dest, "sub", "b.txt"), "beta")
}

func (s *archiveSuite) TestSingleDirUnwrapped(c *gc.C) {
	url := s.serve(c, "/bundle.zip", zipBytes(c, map[string]string{
		"bundle-1.0/a.txt": "alpha",
		"bundle-1.0/b.txt": "beta",
	}))
	dest := s.extract(c, download.NewZip("", url))

	// The wrapping directory is gone; its content sits at the top.
	s.assertContent(c, filepath.Join(dest, "a.txt"), "alpha")
	s.assertContent(c, filepath.Join(dest, "b.txt"), "beta")
	_, err := os.Stat(filepath.Join(dest, "bundle-1.0"))
	c.Check(os.IsNotExist(err), jc.IsTrue)
}

func (s *archiveSuite) TestSubpath(c *gc.C) {
	url := s.serve(c, "/bundle.zip", zipBytes(c, map[string]string{
		"top/keep/a.txt": "alpha",
		"top/keep/b.txt": "beta",
		"top/drop/c.txt": "gamma",
	}))
	dest := s.extract(c, download.NewZip("", url, download.WithSubpath("top/keep")))

	s.assertContent(c, filepath.Join(dest, "a.txt"), "alpha")
	s.assertContent(c, filepath.Join(dest, "b.txt"), "beta")
	_, err := os.Stat(filepath.Join(dest, "c.txt"))
	c.Check(os.IsNotExist(err), jc.IsTrue)
}

func (s *archiveSuite) TestFileSet(c *gc.C) {
	url := s.serve(c, "/bundle.zip", zipBytes(c, map[string]string{
		"a.txt": "alpha",
		"b.txt": "beta",
		"c.txt": "gamma",
	}))
	dest := s.extract(c, download.NewZip("", url, download.WithFiles("a.txt", "c.txt")))

	s.assertContent(c, filepath.Join(dest, "a.txt"), "alpha")
	s.assertContent(c, filepath.Join(dest, "c.txt"), "gamma")
	_, err := os.Stat(filepath.Join(dest, "b.txt"))
	c.Check(os.IsNotExist(err), jc.IsTrue)
}

func (s *archiveSuite) TestChecksumMismatch(c *gc.C) {
	content := zipBytes(c, map[string]string{"a.txt": "alpha"})
	url := s.serve(c, "/bundle.zip", content)
	a := download.NewZip("", url, download.WithArchiveChecksum(sha256Hex([]byte("other"))))

	dest := filepath.Join(c.MkDir(), "bundle")
	err := a.Fetch(context.Background(), s.env, dest)
	c.Assert(err, gc.ErrorMatches, `verifying .*: checksum mismatch: .*`)
}

func (s *archiveSuite) TestEntryEscapesExtractionDir(c *gc.C) {
	url := s.serve(c, "/evil.tar.gz", tarGzBytes(c, map[string]string{
		"../evil.txt": "oops",
	}))
	a := download.NewTar("", url)
	dest := filepath.Join(c.MkDir(), "evil")
	err := a.Fetch(context.Background(), s.env, dest)
	c.Assert(err, gc.ErrorMatches, `archive entry "\.\./evil\.txt" escapes extraction directory`)
}

func (s *archiveSuite) TestNoClient(c *gc.C) {
	a := download.NewZip("", "http://host/bundle.zip")
	err := a.Fetch(context.Background(), nil, filepath.Join(c.MkDir(), "bundle"))
	c.Assert(err, gc.ErrorMatches, `resource "bundle" has no fetch client`)
}
