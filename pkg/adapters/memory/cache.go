package memory

import (
	"context"
	"slices"
	"sync"
)

// CacheStore implements ports.CacheStore in memory.
type CacheStore struct {
	mu    sync.Mutex
	items map[string]map[string][]byte
}

func NewCacheStore() *CacheStore {
	return &CacheStore{items: make(map[string]map[string][]byte)}
}

func (c *CacheStore) Get(ctx context.Context, workflow, artifact string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[workflow][artifact]
	return slices.Clone(v), ok, nil
}

// RememberIfMissing holds the lock while computing so concurrent callers
// observe a single computation per artifact.
func (c *CacheStore) RememberIfMissing(ctx context.Context, workflow, artifact string, compute func() ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.items[workflow][artifact]; ok {
		return slices.Clone(v), nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	if c.items[workflow] == nil {
		c.items[workflow] = make(map[string][]byte)
	}
	c.items[workflow][artifact] = slices.Clone(v)
	return v, nil
}

func (c *CacheStore) Forget(ctx context.Context, workflow string, artifacts ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range artifacts {
		delete(c.items[workflow], a)
	}
	if len(c.items[workflow]) == 0 {
		delete(c.items, workflow)
	}
	return nil
}

func (c *CacheStore) ForgetAll(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	workflows := make([]string, 0, len(c.items))
	for w := range c.items {
		workflows = append(workflows, w)
	}
	slices.Sort(workflows)
	c.items = make(map[string]map[string][]byte)
	return workflows, nil
}
