package definition_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aretw0/flowra/pkg/adapters/memory"
	"github.com/aretw0/flowra/pkg/definition"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kycSchema() *domain.Schema {
	return &domain.Schema{
		States: domain.NewStateSet("pending", "collecting", "passed", "failed"),
		Transitions: []*domain.Transition{
			domain.NewTransition("begin", "pending", "collecting"),
			domain.NewTransition("pass", "collecting", "passed"),
			domain.NewTransition("fail", "collecting", "failed"),
			domain.NewTransition("retry", "failed", "collecting"),
		},
	}
}

func countingRegistry(calls *atomic.Int32) *definition.Registry {
	return definition.NewRegistry(
		definition.New("onboarding", func() (*domain.Schema, error) {
			calls.Add(1)
			return onboardingSchema(), nil
		}),
		definition.New("kyc", func() (*domain.Schema, error) { return kycSchema(), nil }),
	)
}

func TestCache_BuildsOnce(t *testing.T) {
	var calls atomic.Int32
	cache := definition.NewCache(countingRegistry(&calls))
	ctx := context.Background()

	var wg sync.WaitGroup
	defs := make([]*definition.Definition, 16)
	for i := range defs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			def, err := cache.GetDefinition(ctx, "onboarding")
			assert.NoError(t, err)
			defs[i] = def
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, d := range defs {
		assert.Same(t, defs[0], d)
	}

	require.NoError(t, cache.Invalidate(ctx, "onboarding"))
	_, err := cache.GetDefinition(ctx, "onboarding")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_Idempotence(t *testing.T) {
	var calls atomic.Int32
	ctx := context.Background()
	enabled := definition.NewCache(countingRegistry(&calls))
	disabled := definition.NewCache(countingRegistry(&calls), definition.WithCaching(false))

	a, err := enabled.GetDefinition(ctx, "onboarding")
	require.NoError(t, err)
	b, err := enabled.GetDefinition(ctx, "onboarding")
	require.NoError(t, err)
	c, err := disabled.GetDefinition(ctx, "onboarding")
	require.NoError(t, err)
	d, err := disabled.GetDefinition(ctx, "onboarding")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	assert.Equal(t, c, d)
	assert.NotSame(t, c, d, "disabled cache recomputes")
	assert.Equal(t, int32(3), calls.Load())
}

func TestCache_Errors(t *testing.T) {
	ctx := context.Background()
	fails := true
	registry := definition.NewRegistry(
		definition.New("empty", func() (*domain.Schema, error) { return &domain.Schema{}, nil }),
		definition.New("flaky", func() (*domain.Schema, error) {
			if fails {
				return nil, errors.New("schema source unavailable")
			}
			return kycSchema(), nil
		}),
	)
	cache := definition.NewCache(registry)

	_, err := cache.GetDefinition(ctx, "empty")
	assert.ErrorIs(t, err, domain.ErrDefinition)

	_, err = cache.GetDefinition(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrDefinition)

	_, err = cache.GetDefinition(ctx, "flaky")
	assert.ErrorIs(t, err, domain.ErrDefinition)
	fails = false
	_, err = cache.GetDefinition(ctx, "flaky")
	assert.NoError(t, err, "failed builds are retried")
}

func TestCache_PublishesArtifacts(t *testing.T) {
	var calls atomic.Int32
	ctx := context.Background()
	store := memory.NewCacheStore()
	cache := definition.NewCache(countingRegistry(&calls), definition.WithStore(store))

	warmed, err := cache.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kyc", "onboarding"}, warmed)

	raw, ok, err := store.Get(ctx, "onboarding", definition.ArtifactTransitions)
	require.NoError(t, err)
	require.True(t, ok)
	var summaries []definition.TransitionSummary
	require.NoError(t, json.Unmarshal(raw, &summaries))
	assert.Len(t, summaries, 4)
	assert.Equal(t, "filling_owner_data", summaries[0].Key)

	raw, ok, _ = store.Get(ctx, "onboarding", definition.ArtifactStateGroupParents)
	require.True(t, ok)
	assert.JSONEq(t, `{"verified":"closed","declined":"closed"}`, string(raw))

	require.NoError(t, cache.Invalidate(ctx, "kyc"))
	_, ok, _ = store.Get(ctx, "kyc", definition.ArtifactStates)
	assert.False(t, ok)

	types, err := cache.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"onboarding"}, types)
}
