package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/flowra/pkg/adapters/memory"
	"github.com/aretw0/flowra/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	rec := newRecord("verifying")
	rec.Comments = []string{"passport checked"}
	rec.Metadata = map[string]any{"secret": "my-secret-sauce"}
	save(t, store, rec, "")

	raw, err := underlying.FindStatus(ctx, testKey)
	require.NoError(t, err)
	assert.Empty(t, raw.Comments)
	assert.NotContains(t, raw.Metadata, "secret")
	assert.Contains(t, raw.Metadata, middleware.EncryptedKey)
	assert.Equal(t, rec.To, raw.To, "states stay readable")

	loaded, err := store.FindStatus(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Metadata["secret"])
	assert.Equal(t, []string{"passport checked"}, loaded.Comments)

	history, err := store.History(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "my-secret-sauce", history[0].Metadata["secret"])

	owners, err := store.FindByState(ctx, testKey.Workflow, "verifying")
	require.NoError(t, err)
	assert.Len(t, owners, 1)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	newStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)
	ctx := context.Background()

	first := newRecord("owner_info_entered")
	first.Metadata = map[string]any{"data": "encrypted-with-old-key"}
	save(t, oldStore, first, "")

	loaded, err := newStore.FindStatus(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", loaded.Metadata["data"])

	second := newRecord("verifying")
	second.From = "owner_info_entered"
	second.Metadata = map[string]any{"data": "encrypted-with-new-key"}
	save(t, newStore, second, "owner_info_entered")

	_, err = oldStore.FindStatus(ctx, testKey)
	assert.Error(t, err, "the old key alone cannot read new records")

	history, err := newStore.History(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "encrypted-with-old-key", history[0].Metadata["data"])
	assert.Equal(t, "encrypted-with-new-key", history[1].Metadata["data"])
}

func TestEncryptionMiddleware_PlainRecordsPassThrough(t *testing.T) {
	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore())
	save(t, store, newRecord("init"), "")

	loaded, err := store.FindStatus(context.Background(), testKey)
	require.NoError(t, err)
	assert.Nil(t, loaded.Metadata)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}
