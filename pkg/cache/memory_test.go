package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCache()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "key", []byte("value"), 0))
	value, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	existed, err := store.Delete(ctx, "key")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "key")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCache()

	require.NoError(t, store.Set(ctx, "key", []byte("value"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := store.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrMiss)
}
