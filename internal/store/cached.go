package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached is a read-through, write-through LRU in front of another Store.
type Cached struct {
	Store
	cache *lru.Cache[string, []byte]
}

// NewCached wraps s with an LRU holding up to size values.
func NewCached(s Store, size int) (*Cached, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return &Cached{Store: s, cache: cache}, nil
}

func (c *Cached) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.cache.Get(key); ok {
		return append([]byte(nil), v...), nil
	}
	v, err := c.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]byte(nil), v...))
	return v, nil
}

func (c *Cached) Set(ctx context.Context, key string, value []byte) error {
	if err := c.Store.Set(ctx, key, value); err != nil {
		c.cache.Remove(key)
		return err
	}
	c.cache.Add(key, append([]byte(nil), value...))
	return nil
}

func (c *Cached) Delete(ctx context.Context, key string) error {
	c.cache.Remove(key)
	return c.Store.Delete(ctx, key)
}
