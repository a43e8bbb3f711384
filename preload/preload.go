// Package preload turns archive references into in-memory archives.
//
// Composition never reads files or the network: an ArchiveFile or
// ArchiveURL source reaching wasifs.Compose is rejected. Sources runs
// beforehand and replaces each reference with an Archive holding the bytes,
// leaving every other source untouched.
package preload

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/absfs/wasifs"
)

type config struct {
	fs      afero.Fs
	client  *http.Client
	maxSize int64
	logger  *zap.Logger
}

// Option configures Sources.
type Option func(*config)

// WithFs sets the filesystem ArchiveFile paths are read from. It defaults
// to the host filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(c *config) {
		c.fs = fsys
	}
}

// WithHTTPClient sets the client used for ArchiveURL sources. It defaults
// to http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.client = client
	}
}

// WithMaxSize bounds the size of a single archive. Zero means no limit.
func WithMaxSize(n int64) Option {
	return func(c *config) {
		c.maxSize = n
	}
}

// WithLogger sets the logger. It defaults to wasifs.Logger().
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Sources returns a copy of sources with every ArchiveFile and ArchiveURL
// replaced by an Archive with the same mount point. The first failure
// aborts the whole list.
func Sources(ctx context.Context, sources []wasifs.Source, opts ...Option) ([]wasifs.Source, error) {
	cfg := &config{
		fs:     afero.NewOsFs(),
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = wasifs.Logger()
	}

	out := make([]wasifs.Source, len(sources))
	for i, src := range sources {
		resolved, err := cfg.source(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("preload source %d: %w", i, err)
		}
		out[i] = resolved
	}
	return out, nil
}

func (c *config) source(ctx context.Context, src wasifs.Source) (wasifs.Source, error) {
	switch s := src.(type) {
	case wasifs.ArchiveFile:
		data, err := c.readFile(s.Path)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("archive file loaded", zap.String("path", s.Path), zap.Int("bytes", len(data)))
		return wasifs.Archive{Data: data, MountPoint: s.MountPoint}, nil
	case *wasifs.ArchiveFile:
		if s == nil {
			return src, nil
		}
		return c.source(ctx, *s)
	case wasifs.ArchiveURL:
		data, err := c.fetch(ctx, s.URL)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("archive url fetched", zap.String("url", s.URL), zap.Int("bytes", len(data)))
		return wasifs.Archive{Data: data, MountPoint: s.MountPoint}, nil
	case *wasifs.ArchiveURL:
		if s == nil {
			return src, nil
		}
		return c.source(ctx, *s)
	}
	return src, nil
}

func (c *config) readFile(name string) ([]byte, error) {
	f, err := c.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	defer f.Close()

	data, err := c.readAll(f)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", name, err)
	}
	return data, nil
}

func (c *config) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch archive: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := c.readAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch archive %s: %w", url, err)
	}
	return data, nil
}

func (c *config) readAll(r io.Reader) ([]byte, error) {
	if c.maxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, c.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxSize {
		return nil, fmt.Errorf("archive exceeds %d bytes", c.maxSize)
	}
	return data, nil
}

// StatusError is returned when an archive URL answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch archive %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}
