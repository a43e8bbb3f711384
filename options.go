package wasifs

import (
	"time"

	"go.uber.org/zap"
)

// config holds settings shared by Compose and NewUnion.
type config struct {
	logger *zap.Logger
	cache  *lookupCache
}

// Option is a functional option for Compose and NewUnion.
type Option func(*config)

// WithLogger sets the logger used while composing. It defaults to Logger().
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithLookupCache enables caching of which layer serves a path, including
// negative results, for ttl. Negative results expire twice as fast.
// Every mutating union operation invalidates the affected paths.
func WithLookupCache(ttl time.Duration, maxEntries int) Option {
	return func(c *config) {
		c.cache = newLookupCache(true, ttl, ttl/2, maxEntries)
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		cache: newLookupCache(false, 0, 0, 0), // disabled by default
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	return c
}
