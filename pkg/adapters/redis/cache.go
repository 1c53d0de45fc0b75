package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	backend "github.com/redis/go-redis/v9"
)

// CacheStore implements ports.CacheStore using Redis strings keyed
// "<prefix>workflow:<type>:<artifact>".
type CacheStore struct {
	client backend.UniversalClient
	prefix string
}

// NewCacheStore creates a cache store sharing the client. Options are the
// same as for Store.
func NewCacheStore(client backend.UniversalClient, opts ...Option) *CacheStore {
	s := NewFromClient(client, opts...)
	return &CacheStore{client: client, prefix: s.prefix}
}

func (c *CacheStore) key(workflow, artifact string) string {
	return c.prefix + "workflow:" + workflow + ":" + artifact
}

func (c *CacheStore) Get(ctx context.Context, workflow, artifact string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(workflow, artifact)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}
	return val, true, nil
}

// RememberIfMissing computes outside Redis and keeps the first value stored.
// Concurrent callers may compute more than once but agree on the result.
func (c *CacheStore) RememberIfMissing(ctx context.Context, workflow, artifact string, compute func() ([]byte, error)) ([]byte, error) {
	if val, ok, err := c.Get(ctx, workflow, artifact); err != nil || ok {
		return val, err
	}
	val, err := compute()
	if err != nil {
		return nil, err
	}
	set, err := c.client.SetNX(ctx, c.key(workflow, artifact), val, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to write cache: %w", err)
	}
	if set {
		return val, nil
	}
	stored, _, err := c.Get(ctx, workflow, artifact)
	return stored, err
}

func (c *CacheStore) Forget(ctx context.Context, workflow string, artifacts ...string) error {
	if len(artifacts) == 0 {
		return nil
	}
	keys := make([]string, len(artifacts))
	for i, a := range artifacts {
		keys[i] = c.key(workflow, a)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// ForgetAll scans the cache namespace, deletes it and reports the workflow
// types that had entries.
func (c *CacheStore) ForgetAll(ctx context.Context) ([]string, error) {
	root := c.prefix + "workflow:"
	var (
		keys  []string
		types []string
	)
	iter := c.client.Scan(ctx, 0, root+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		keys = append(keys, k)
		rest := strings.TrimPrefix(k, root)
		if i := strings.LastIndex(rest, ":"); i > 0 {
			types = append(types, rest[:i])
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cache: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return nil, fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	slices.Sort(types)
	return slices.Compact(types), nil
}
