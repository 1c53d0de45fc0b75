package memory_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/aretw0/flowra/pkg/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStore(t *testing.T) {
	ctx := context.Background()
	c := memory.NewCacheStore()

	var calls atomic.Int32
	compute := func() ([]byte, error) {
		calls.Add(1)
		return []byte(`["init","done"]`), nil
	}

	v, err := c.RememberIfMissing(ctx, "onboarding", "states", compute)
	require.NoError(t, err)
	assert.Equal(t, `["init","done"]`, string(v))

	_, err = c.RememberIfMissing(ctx, "onboarding", "states", compute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.RememberIfMissing(ctx, "billing", "states", func() ([]byte, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)
	_, ok, _ := c.Get(ctx, "billing", "states")
	assert.False(t, ok, "failed computations are not stored")

	require.NoError(t, c.Forget(ctx, "onboarding", "states"))
	_, ok, _ = c.Get(ctx, "onboarding", "states")
	assert.False(t, ok)

	_, _ = c.RememberIfMissing(ctx, "a", "transitions", compute)
	_, _ = c.RememberIfMissing(ctx, "b", "transitions", compute)
	forgotten, err := c.ForgetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, forgotten)
}
