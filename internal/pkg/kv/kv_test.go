package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "a", []byte("1")))

	v, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, store.Delete(ctx, "a"))

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "a", []byte("abc")))

	v, err := store.Get(ctx, "a")
	require.NoError(t, err)
	v[0] = 'x'

	v2, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v2)
}

func TestMemory_ScanByPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Set(ctx, "sub:u1:e1", []byte("a")))
	require.NoError(t, store.Set(ctx, "sub:u1:e2", []byte("b")))
	require.NoError(t, store.Set(ctx, "sub:u2:e1", []byte("c")))
	require.NoError(t, store.Set(ctx, "notif:u1:n1", []byte("d")))

	entries, err := store.ScanByPrefix(ctx, "sub:u1:")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "sub:u1:e1", entries[0].Key)
	assert.Equal(t, "sub:u1:e2", entries[1].Key)

	all, err := store.ScanByPrefix(ctx, "sub:")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := store.ScanByPrefix(ctx, "missing:")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `sub:u1\_x:`, escapeLike("sub:u1_x:"))
	assert.Equal(t, `a\%b`, escapeLike("a%b"))
	assert.Equal(t, `plain:`, escapeLike("plain:"))
}
