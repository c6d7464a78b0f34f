package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	defer c.Close()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte("defs")
	require.NoError(t, c.Set(ctx, "tenant-a", value, time.Minute))
	value[0] = 'X'

	got, ok, err := c.Get(ctx, "tenant-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "defs", string(got))
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), -time.Second))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	c.removeExpired()
	assert.Equal(t, 0, c.Size())
}

func TestMemoryCacheDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Delete(ctx, "a", "b"))
	assert.Equal(t, 0, c.Size())

	c.Close()
	c.Close()
}
