// Package memory is an in-process formstore.CacheClient with per-entry TTL.
// It is the default cache for single-node deployments and the test substrate.
package memory

import (
	"context"
	"sync"
	"time"

	"formstore"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// Client stores entries in one flat map keyed by "group:key". Expired entries
// are dropped lazily on read.
type Client struct {
	mu       sync.RWMutex
	entries  map[string]entry
	counters map[string]int
}

var _ formstore.CacheClient = (*Client)(nil)

func NewClient() *Client {
	return &Client{
		entries:  make(map[string]entry),
		counters: make(map[string]int),
	}
}

func cacheKey(group, key string) string {
	return group + ":" + key
}

func (c *Client) Get(ctx context.Context, group, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters["Get"]++
	e, ok := c.entries[cacheKey(group, key)]
	if ok && !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(c.entries, cacheKey(group, key))
		ok = false
	}
	if !ok {
		c.counters["GetMiss"]++
		return "", formstore.ErrNotFound
	}
	c.counters["GetHit"]++
	return e.value, nil
}

func (c *Client) Set(ctx context.Context, group, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters["Set"]++
	c.entries[cacheKey(group, key)] = newEntry(value, ttl)
	return nil
}

func (c *Client) Add(ctx context.Context, group, key, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters["Add"]++
	k := cacheKey(group, key)
	if e, ok := c.entries[k]; ok {
		if e.expiresAt.IsZero() || time.Now().Before(e.expiresAt) {
			return false, nil
		}
	}
	c.entries[k] = newEntry(value, 0)
	return true, nil
}

func (c *Client) Delete(ctx context.Context, group, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters["Delete"]++
	delete(c.entries, cacheKey(group, key))
	return nil
}

// Flush drops every entry. Counters are kept.
func (c *Client) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
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

func newEntry(value string, ttl time.Duration) entry {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	return e
}
