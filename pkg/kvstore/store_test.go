package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the shared contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "https://example.com/a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "https://example.com/a", []byte(`{"disabled":true}`)))
	v, err := s.Get(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"disabled":true}`, string(v))

	require.NoError(t, s.Set(ctx, "max_age", []byte(`30`)))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://example.com/a", "max_age"}, keys)

	require.NoError(t, s.Remove(ctx, "https://example.com/a"))
	_, err = s.Get(ctx, "https://example.com/a")
	assert.ErrorIs(t, err, ErrNotFound)

	// Removing an absent key is a no-op.
	assert.NoError(t, s.Remove(ctx, "https://example.com/never"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'x'

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}
