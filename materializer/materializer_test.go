// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package materializer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/materialize/dataset"
	"github.com/juju/materialize/materializer"
	"github.com/juju/materialize/resource"
)

// testFile writes fixed content to its destination, or fails.
type testFile struct {
	resource.FileBase
	content  string
	failWith error
	fetches  int
}

func newTestFile(filename, content string) *testFile {
	return &testFile{
		FileBase: resource.NewFileBase(filename, "", false),
		content:  content,
	}
}

func (r *testFile) Fetch(ctx context.Context, env *resource.Env, dest string) error {
	r.fetches++
	if r.failWith != nil {
		return r.failWith
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(r.content), 0644)
}

type workerSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&workerSuite{})

func (s *workerSuite) newWorker(c *gc.C) *materializer.Worker {
	w := materializer.NewWorker(4)
	s.AddCleanup(func(c *gc.C) {
		w.Kill()
		c.Check(w.Wait(), jc.ErrorIsNil)
	})
	return w
}

func (s *workerSuite) TestMaterialize(c *gc.C) {
	root := c.MkDir()
	d := dataset.New("trec", root)
	f := newTestFile("data.csv", "rows")
	c.Assert(d.Register("", f), jc.ErrorIsNil)

	w := s.newWorker(c)
	c.Assert(w.Materialize(context.Background(), d, false), jc.ErrorIsNil)

	data, err := os.ReadFile(filepath.Join(root, "data.csv"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, "rows")
}

func (s *workerSuite) TestMaterializeError(c *gc.C) {
	d := dataset.New("trec", c.MkDir())
	f := newTestFile("data.csv", "rows")
	f.failWith = errors.New("boom")
	c.Assert(d.Register("", f), jc.ErrorIsNil)

	w := s.newWorker(c)
	err := w.Materialize(context.Background(), d, false)
	c.Assert(err, gc.ErrorMatches, `cannot download resource "data": boom`)

	// The worker survives a failed walk and serves the next request.
	f.failWith = nil
	c.Assert(w.Materialize(context.Background(), d, false), jc.ErrorIsNil)
}

func (s *workerSuite) TestSerialRequests(c *gc.C) {
	w := s.newWorker(c)
	for i := 0; i < 3; i++ {
		d := dataset.New("trec", c.MkDir())
		c.Assert(d.Register("", newTestFile("data.csv", "rows")), jc.ErrorIsNil)
		c.Assert(w.Materialize(context.Background(), d, false), jc.ErrorIsNil)
	}
}

func (s *workerSuite) TestStoppedWorker(c *gc.C) {
	w := materializer.NewWorker(0)
	w.Kill()
	c.Assert(w.Wait(), jc.ErrorIsNil)

	d := dataset.New("trec", c.MkDir())
	err := w.Materialize(context.Background(), d, false)
	c.Assert(err, gc.ErrorMatches, "materializer worker is stopping")
}
