package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	t.Run("absent node returns nil", func(t *testing.T) {
		data, err := s.NodeData(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("updates merge across writes", func(t *testing.T) {
		require.NoError(t, s.UpdateNodeData(ctx, "n1", map[string]any{"subject": "hello"}))
		require.NoError(t, s.UpdateNodeData(ctx, "n1", map[string]any{"sent": true}))

		data, err := s.NodeData(ctx, "n1")
		require.NoError(t, err)
		assert.Equal(t, "hello", data["subject"])
		assert.Equal(t, true, data["sent"])
	})

	t.Run("remove drops the record", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, "n1"))
		data, err := s.NodeData(ctx, "n1")
		require.NoError(t, err)
		assert.Nil(t, data)
	})
}
