package assoc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a := Association{
		Handle:    "h1",
		Algorithm: "HMAC-SHA256",
		Secret:    []byte("secret"),
		Expiry:    time.Now().Add(time.Minute),
	}
	require.NoError(t, store.Put(ctx, a))

	got, err := store.Get(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, a, got)

	require.NoError(t, store.Delete(ctx, "h1"))
	_, err = store.Get(ctx, "h1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorePutDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := Association{Handle: "dup"}
	require.NoError(t, store.Put(ctx, a))
	require.ErrorIs(t, store.Put(ctx, a), ErrAlreadyExists)
}

func TestMemoryStoreDeleteMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.ErrorIs(t, store.Delete(ctx, "nope"), ErrNotFound)
}

func TestNewHandleUnique(t *testing.T) {
	h1, err := NewHandle()
	require.NoError(t, err)
	h2, err := NewHandle()
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
	require.NotEmpty(t, h1)
}

func TestExpired(t *testing.T) {
	now := time.Now()
	a := Association{Expiry: now.Add(-time.Second)}
	require.True(t, a.Expired(now))

	a2 := Association{Expiry: now.Add(time.Second)}
	require.False(t, a2.Expired(now))
}
