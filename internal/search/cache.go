package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/corpussearch/searchd/pkg/logger"
	pkgredis "github.com/corpussearch/searchd/pkg/redis"
)

// Cache is a two-tier search result cache: a small in-process LRU in front
// of an optional shared Redis tier. Concurrent lookups for the same key are
// collapsed into one computation via singleflight.
type Cache struct {
	local  *lru.Cache[string, []byte]
	remote *pkgredis.Client
	ttl    time.Duration
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
	logger *slog.Logger
}

// NewCache creates a Cache with the given local capacity. remote may be nil
// to run with the in-process tier only.
func NewCache(size int, remote *pkgredis.Client, ttl time.Duration) (*Cache, error) {
	local, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return &Cache{
		local:  local,
		remote: remote,
		ttl:    ttl,
		logger: logger.WithComponent("query-cache"),
	}, nil
}

// Get looks the key up in the local tier, then the remote tier. A remote
// hit is promoted into the local tier.
func (c *Cache) Get(ctx context.Context, key string) (*Response, bool) {
	if data, ok := c.local.Get(key); ok {
		resp, err := decode(data)
		if err == nil {
			c.hits.Add(1)
			return resp, true
		}
		c.local.Remove(key)
	}
	if c.remote != nil {
		data, err := c.remote.Get(ctx, key)
		if err == nil {
			resp, derr := decode([]byte(data))
			if derr == nil {
				c.local.Add(key, []byte(data))
				c.hits.Add(1)
				return resp, true
			}
		} else if !pkgredis.IsNilError(err) {
			c.logger.Error("remote cache get failed", "key", key, "error", err)
		}
	}
	c.misses.Add(1)
	return nil, false
}

// Set stores the response in both tiers. Remote failures are logged, not
// returned; the cache is best-effort.
func (c *Cache) Set(ctx context.Context, key string, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	c.local.Add(key, data)
	if c.remote != nil {
		if err := c.remote.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Error("remote cache set failed", "key", key, "error", err)
		}
	}
}

// GetOrCompute returns the cached response for key or computes and stores
// it, collapsing concurrent computations for the same key.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	key string,
	computeFn func() (*Response, error),
) (*Response, bool, error) {
	if resp, ok := c.Get(ctx, key); ok {
		return resp, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if resp, ok := c.Get(ctx, key); ok {
			return resp, nil
		}
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Response), false, nil
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func decode(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
