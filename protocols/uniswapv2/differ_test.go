package uniswapv2

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffer(t *testing.T) {
	pool1Old := testPool(1, 2, 1000, 2000, 1414)
	pool2Old := testPool(3, 4, 3000, 4000, 3464)

	t.Run("should identify additions correctly", func(t *testing.T) {
		diff := Differ([]Pool{pool1Old}, []Pool{pool1Old, pool2Old})

		assert.Len(t, diff.Additions, 1, "Should have one addition")
		assert.Equal(t, pool2Old.Key, diff.Additions[0].Key)
		assert.Empty(t, diff.Updates, "Should have no updates")
	})

	t.Run("should identify reserve updates correctly", func(t *testing.T) {
		pool1Updated := pool1Old.Copy()
		pool1Updated.Reserve0 = uint256.NewInt(1001)

		diff := Differ([]Pool{pool1Old}, []Pool{pool1Updated})

		assert.Empty(t, diff.Additions)
		require.Len(t, diff.Updates, 1)
		assert.Equal(t, pool1Old.Key, diff.Updates[0].Key)
	})

	t.Run("should identify supply-only updates", func(t *testing.T) {
		pool1Updated := pool1Old.Copy()
		pool1Updated.TotalSupply = uint256.NewInt(1500)

		diff := Differ([]Pool{pool1Old}, []Pool{pool1Updated})
		assert.Len(t, diff.Updates, 1)
	})

	t.Run("should keep addition order", func(t *testing.T) {
		pool3 := testPool(5, 6, 1, 1, 1)
		diff := Differ(nil, []Pool{pool2Old, pool3, pool1Old})

		require.Len(t, diff.Additions, 3)
		assert.Equal(t, pool2Old.Key, diff.Additions[0].Key)
		assert.Equal(t, pool3.Key, diff.Additions[1].Key)
		assert.Equal(t, pool1Old.Key, diff.Additions[2].Key)
	})

	t.Run("should produce an empty diff when there are no changes", func(t *testing.T) {
		diff := Differ([]Pool{pool1Old, pool2Old}, []Pool{pool1Old.Copy(), pool2Old.Copy()})
		assert.True(t, diff.IsEmpty())
	})

	t.Run("should handle empty initial and new states", func(t *testing.T) {
		diff := Differ([]Pool{}, []Pool{})
		assert.True(t, diff.IsEmpty())
	})
}
