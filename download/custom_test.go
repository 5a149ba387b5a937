// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package download_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/materialize/dataset"
	"github.com/juju/materialize/download"
)

type customSuite struct {
	testing.IsolationSuite
	root string
}

var _ = gc.Suite(&customSuite{})

func (s *customSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.root = c.MkDir()
}

func (s *customSuite) TestFetchRunsFunction(c *gc.C) {
	var gotForce bool
	r := download.NewCustom("generated", func(ctx context.Context, root string, force bool) error {
		gotForce = force
		return os.WriteFile(filepath.Join(root, "generated.txt"), []byte("made up"), 0644)
	})
	d := dataset.New("trec", s.root)
	c.Assert(d.Register("", r), jc.ErrorIsNil)

	c.Assert(d.Download(context.Background(), false), jc.ErrorIsNil)
	c.Check(gotForce, jc.IsFalse)

	data, err := os.ReadFile(filepath.Join(s.root, "generated.txt"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, "made up")
}

func (s *customSuite) TestForcePropagates(c *gc.C) {
	var forces []bool
	r := download.NewCustom("generated", func(ctx context.Context, root string, force bool) error {
		forces = append(forces, force)
		return nil
	})
	d := dataset.New("trec", s.root)
	c.Assert(d.Register("", r), jc.ErrorIsNil)

	c.Assert(d.Download(context.Background(), false), jc.ErrorIsNil)
	c.Assert(d.Download(context.Background(), true), jc.ErrorIsNil)
	c.Check(forces, jc.DeepEquals, []bool{false, true})
}

func (s *customSuite) TestPrepare(c *gc.C) {
	r := download.NewCustom("generated", nil)
	d := dataset.New("trec", s.root)
	c.Assert(d.Register("", r), jc.ErrorIsNil)

	prepared, err := r.Prepare()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(prepared, gc.Equals, any(s.root))
}

func (s *customSuite) TestNoFunction(c *gc.C) {
	d := dataset.New("trec", s.root)
	c.Assert(d.Register("", download.NewCustom("generated", nil)), jc.ErrorIsNil)

	err := d.Download(context.Background(), false)
	c.Assert(err, gc.ErrorMatches, `cannot download resource "generated": resource "generated" has no download function`)
}
