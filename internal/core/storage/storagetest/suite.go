// Package storagetest holds behaviour checks shared by Storage implementations.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/gamecore/internal/core/storage"
)

// Run exercises s, which must start empty.
func Run(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Load(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.NoError(t, s.Delete(ctx, "nope"))
	})

	t.Run("save load overwrite", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "entity/1", []byte{1, 2, 3}))
		got, err := s.Load(ctx, "entity/1")
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, got)

		require.NoError(t, s.Save(ctx, "entity/1", []byte{9}))
		got, err = s.Load(ctx, "entity/1")
		require.NoError(t, err)
		assert.Equal(t, []byte{9}, got)
	})

	t.Run("empty value", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "entity/empty", []byte{}))
		got, err := s.Load(ctx, "entity/empty")
		require.NoError(t, err)
		assert.Empty(t, got)
		require.NoError(t, s.Delete(ctx, "entity/empty"))
	})

	t.Run("keys sorted and delete", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "entity/3", []byte("c")))
		require.NoError(t, s.Save(ctx, "entity/2", []byte("b")))

		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"entity/1", "entity/2", "entity/3"}, keys)

		require.NoError(t, s.Delete(ctx, "entity/2"))
		keys, err = s.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"entity/1", "entity/3"}, keys)
		_, err = s.Load(ctx, "entity/2")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	if b, ok := s.(storage.BatchedStorage); ok {
		t.Run("batch save", func(t *testing.T) {
			require.NoError(t, b.BatchSave(ctx, map[string][]byte{"batch/a": []byte("a"), "batch/b": []byte("b")}))
			got, err := s.Load(ctx, "batch/b")
			require.NoError(t, err)
			assert.Equal(t, []byte("b"), got)
			require.NoError(t, b.BatchSave(ctx, nil))
		})
	}

	t.Run("statistics", func(t *testing.T) {
		stats := s.Statistics()
		assert.Positive(t, stats.Writes)
		assert.Positive(t, stats.Reads)
		assert.Positive(t, stats.Deletes)
		assert.Positive(t, stats.Misses)
	})
}
