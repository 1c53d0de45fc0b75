package ports

import "context"

// CacheStore is a key-value store for derived definition artifacts,
// keyed by (workflow type, artifact name).
type CacheStore interface {
	// Get returns the artifact and whether it was present.
	Get(ctx context.Context, workflow, artifact string) ([]byte, bool, error)

	// RememberIfMissing returns the stored artifact, computing and storing it when absent.
	RememberIfMissing(ctx context.Context, workflow, artifact string, compute func() ([]byte, error)) ([]byte, error)

	// Forget drops the named artifacts of a workflow type.
	Forget(ctx context.Context, workflow string, artifacts ...string) error

	// ForgetAll drops every artifact and returns the workflow types that had any.
	ForgetAll(ctx context.Context) ([]string, error)
}
