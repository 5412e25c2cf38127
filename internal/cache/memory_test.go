package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s := NewMemoryStore()
	s.now = func() time.Time { return current }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, s.Set(ctx, "forever", []byte("v"), 0))

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), v)

	current = current.Add(2 * time.Minute)

	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryStoreDeletePrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "dashboard:1:0", []byte("a"), 0))
	require.NoError(t, s.Set(ctx, "dashboard:1:7", []byte("b"), 0))
	require.NoError(t, s.Set(ctx, "dashboard:12:0", []byte("c"), 0))

	require.NoError(t, s.DeletePrefix(ctx, "dashboard:1:"))

	_, found, _ := s.Get(ctx, "dashboard:1:7")
	assert.False(t, found)

	_, found, _ = s.Get(ctx, "dashboard:12:0")
	assert.True(t, found)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type payload struct {
		N int `json:"n"`
	}

	require.NoError(t, SetJSON(ctx, s, "p", payload{N: 3}, time.Minute))

	var got payload
	found, err := GetJSON(ctx, s, "p", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, got.N)

	require.NoError(t, s.Set(ctx, "bad", []byte("{"), 0))
	found, err = GetJSON(ctx, s, "bad", &got)
	require.NoError(t, err)
	assert.False(t, found)
}
