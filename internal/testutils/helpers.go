package testutils

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// SetupRedis starts an in-process Redis server and returns a client for it.
// Both are torn down when the test ends.
func SetupRedis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}
