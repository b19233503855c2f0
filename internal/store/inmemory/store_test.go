package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	t.Run("absent node returns nil", func(t *testing.T) {
		data, err := s.NodeData(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("updates merge", func(t *testing.T) {
		require.NoError(t, s.UpdateNodeData(ctx, "n1", map[string]any{"a": 1}))
		require.NoError(t, s.UpdateNodeData(ctx, "n1", map[string]any{"b": 2}))

		data, err := s.NodeData(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1, "b": 2}, data)
	})

	t.Run("returned record is a copy", func(t *testing.T) {
		data, err := s.NodeData(ctx, "n1")
		require.NoError(t, err)
		data["a"] = 99

		fresh, err := s.NodeData(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, 1, fresh["a"])
	})

	t.Run("remove drops the record", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, "n1"))
		data, err := s.NodeData(ctx, "n1")
		require.NoError(t, err)
		assert.Nil(t, data)
	})
}
