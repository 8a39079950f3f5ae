package main

import (
	"testing"

	"github.com/defistate/defistate-amm-go/protocols/tokenregistry"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestDisplayHelpers(t *testing.T) {
	usdc := tokenregistry.Token{Symbol: "USDC", Decimals: 6}
	weth := tokenregistry.Token{Symbol: "WETH", Decimals: 18}

	t.Run("displayPrice", func(t *testing.T) {
		// 3000 USDC against 1 WETH: reserveA * 1e18 / reserveB in base units.
		price := uint256.MustFromDecimal("3000000000")
		assert.Equal(t, "3000", displayPrice(price, usdc, weth))

		// The inverse direction: 1 USDC is 1/3000 WETH.
		inverse := uint256.MustFromDecimal("333333333333333333333333333")
		assert.Equal(t, "0.000333333333333333", displayPrice(inverse, weth, usdc))
	})

	t.Run("sharePercent", func(t *testing.T) {
		assert.Equal(t, "25", sharePercent(uint256.NewInt(1), uint256.NewInt(4)))
		assert.Equal(t, "33.33", sharePercent(uint256.NewInt(1), uint256.NewInt(3)))
		assert.Equal(t, "0", sharePercent(uint256.NewInt(1), new(uint256.Int)))
	})

	t.Run("slippage", func(t *testing.T) {
		assert.Equal(t, uint64(9950), withSlippage(uint256.NewInt(10_000)).Uint64())
		assert.Equal(t, uint64(10050), withSlippageUp(uint256.NewInt(10_000)).Uint64())
	})
}
