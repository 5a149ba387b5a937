// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package fetch implements the cache-backed URL fetcher shared by the
// download leaves. Downloads land in a cache directory keyed by the
// sha256 of the URL, with a sidecar recording the URL itself, so
// repeated materializations of the same source hit the cache instead
// of the network.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("materialize.fetch")

// Client downloads URLs into a local cache.
type Client struct {
	cacheDir string
	client   *http.Client
	keep     bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the HTTP client used for downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// KeepDownloads keeps cached files on disk after they are handed out,
// so later fetches of the same URL skip the network entirely. Without
// it, closing the returned File discards the cache entry.
func KeepDownloads() Option {
	return func(c *Client) {
		c.keep = true
	}
}

// NewClient returns a Client caching downloads under cacheDir.
func NewClient(cacheDir string, options ...Option) *Client {
	c := &Client{
		cacheDir: cacheDir,
		client:   http.DefaultClient,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// File is a downloaded file held in the cache. Callers must Close it
// when done; unless the client keeps downloads, closing removes the
// cache entry.
type File struct {
	// Path is the location of the downloaded content.
	Path string

	keep     bool
	sidecars []string
}

// Keep reports whether the cache retains this file after Close, which
// tells consumers whether to copy or simply move it.
func (f *File) Keep() bool {
	return f.keep
}

// Close releases the cache entry.
func (f *File) Close() error {
	if f.keep {
		return nil
	}
	for _, path := range append([]string{f.Path}, f.sidecars...) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Trace(err)
		}
	}
	return nil
}

// Fetch returns the content of url as a cached local file, downloading
// it if the cache has no entry. A cache entry whose recorded URL does
// not match is reported as an error rather than silently reused.
func (c *Client) Fetch(ctx context.Context, url string) (*File, error) {
	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return nil, errors.Trace(err)
	}

	sum := sha256.Sum256([]byte(url))
	base := filepath.Join(c.cacheDir, hex.EncodeToString(sum[:]))
	urlPath := base + ".url"
	dlPath := base + ".dl"

	if recorded, err := os.ReadFile(urlPath); err == nil {
		if string(recorded) != url {
			return nil, errors.Errorf(
				"cache entry %q records URL %q, not %q; clear the cache to resolve",
				dlPath, recorded, url)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Trace(err)
	}
	if err := os.WriteFile(urlPath, []byte(url), 0644); err != nil {
		return nil, errors.Trace(err)
	}

	if _, err := os.Stat(dlPath); err == nil {
		logger.Debugf("using cached file %s for %s", dlPath, url)
	} else if !os.IsNotExist(err) {
		return nil, errors.Trace(err)
	} else if err := c.download(ctx, url, dlPath); err != nil {
		return nil, errors.Trace(err)
	}

	return &File{
		Path:     dlPath,
		keep:     c.keep,
		sidecars: []string{urlPath},
	}, nil
}

// download writes url's content to dlPath via a temporary file, so a
// partially written cache entry is never mistaken for a finished one.
func (c *Client) download(ctx context.Context, url, dlPath string) (err error) {
	logger.Infof("downloading %s", url)

	tmpPath := dlPath + ".tmp"
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			if rerr := os.Remove(tmpPath); rerr != nil && !os.IsNotExist(rerr) {
				logger.Warningf("cannot remove temporary file %q: %v", tmpPath, rerr)
			}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return errors.Trace(err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("bad http response %v", resp.Status)
	}

	size, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return errors.Trace(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("downloaded %s (%s)", url, humanize.Bytes(uint64(size)))
	return errors.Trace(os.Rename(tmpPath, dlPath))
}
