// Package redis implements formstore.CacheClient on Redis. Cache groups
// become key prefixes, so one logical namespace maps onto one flat keyspace.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"formstore"
)

// Options configure an internally created client.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps go-redis as a CacheClient and counts operations for stats.
type Client struct {
	rdb               *redis.Client
	createdInternally bool

	mu       sync.Mutex
	counters map[string]int
}

var _ formstore.CacheClient = (*Client)(nil)

// NewClient wraps an existing go-redis client, or dials one from opts when
// rdb is nil. The connection is verified with a ping either way.
func NewClient(rdb *redis.Client, opts *Options) (*Client, error) {
	created := false
	if rdb == nil {
		if opts == nil {
			return nil, fmt.Errorf("redis: either a client or options are required")
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		created = true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		if created {
			_ = rdb.Close()
		}
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return &Client{
		rdb:               rdb,
		createdInternally: created,
		counters:          make(map[string]int),
	}, nil
}

// Close closes the connection only if this wrapper created it.
func (c *Client) Close() error {
	if !c.createdInternally {
		return nil
	}
	return c.rdb.Close()
}

func groupKey(group, key string) string {
	return group + ":" + key
}

func (c *Client) incr(name string) {
	c.mu.Lock()
	c.counters[name]++
	c.mu.Unlock()
}

func (c *Client) Get(ctx context.Context, group, key string) (string, error) {
	c.incr("Get")
	value, err := c.rdb.Get(ctx, groupKey(group, key)).Result()
	if errors.Is(err, redis.Nil) {
		c.incr("GetMiss")
		return "", formstore.ErrNotFound
	}
	if err != nil {
		c.incr("GetError")
		return "", fmt.Errorf("redis: get %s/%s: %w", group, key, err)
	}
	c.incr("GetHit")
	return value, nil
}

func (c *Client) Set(ctx context.Context, group, key, value string, ttl time.Duration) error {
	c.incr("Set")
	if err := c.rdb.Set(ctx, groupKey(group, key), value, ttl).Err(); err != nil {
		c.incr("SetError")
		return fmt.Errorf("redis: set %s/%s: %w", group, key, err)
	}
	return nil
}

func (c *Client) Add(ctx context.Context, group, key, value string) (bool, error) {
	c.incr("Add")
	won, err := c.rdb.SetNX(ctx, groupKey(group, key), value, 0).Result()
	if err != nil {
		c.incr("AddError")
		return false, fmt.Errorf("redis: add %s/%s: %w", group, key, err)
	}
	return won, nil
}

func (c *Client) Delete(ctx context.Context, group, key string) error {
	c.incr("Delete")
	if err := c.rdb.Del(ctx, groupKey(group, key)).Err(); err != nil {
		c.incr("DeleteError")
		return fmt.Errorf("redis: delete %s/%s: %w", group, key, err)
	}
	return nil
}

// Stats returns a copy of the operation counters.
func (c *Client) Stats() formstore.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	counters := make(map[string]int, len(c.counters))
	for k, v := range c.counters {
		counters[k] = v
	}
	return formstore.CacheStats{Counters: counters}
}
