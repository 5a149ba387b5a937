// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dataset

import (
	"context"

	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"
)

// DownloadAll materializes several datasets concurrently, one
// orchestrator run per dataset, with at most limit walks in flight (0
// or less means no limit). Datasets do not interfere with each other:
// each has its own lock and state file. The first failure cancels the
// remaining walks and is returned.
func DownloadAll(ctx context.Context, datasets []*Dataset, limit int, force bool) error {
	group, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}
	for _, d := range datasets {
		d := d
		group.Go(func() error {
			return errors.Annotatef(d.Download(ctx, force), "dataset %q", d.Name())
		})
	}
	return errors.Trace(group.Wait())
}
