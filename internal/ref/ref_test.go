package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("simple endpoint", func(t *testing.T) {
		ep, err := Parse("trigger-1.out")
		require.NoError(t, err)
		assert.Equal(t, "trigger-1", ep.Node)
		assert.Equal(t, "out", ep.Handle)
		assert.Equal(t, "trigger-1.out", ep.String())
	})

	t.Run("dotted node id keeps last segment as handle", func(t *testing.T) {
		ep, err := Parse("logic.and_1.in_a")
		require.NoError(t, err)
		assert.Equal(t, "logic.and_1", ep.Node)
		assert.Equal(t, "in_a", ep.Handle)
	})

	t.Run("rejects malformed references", func(t *testing.T) {
		for _, raw := range []string{"", "noseparator", ".handle", "node.", "no space.in", "node..h"} {
			_, err := Parse(raw)
			assert.Error(t, err, "raw=%q", raw)
		}
	})
}
