package uniswapv2

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

// testPool builds a pool between two single-byte addresses (lo < hi).
func testPool(lo, hi byte, r0, r1, supply uint64) Pool {
	p := NewPool(addr(lo), addr(hi))
	p.Reserve0 = uint256.NewInt(r0)
	p.Reserve1 = uint256.NewInt(r1)
	p.TotalSupply = uint256.NewInt(supply)
	return p
}

func findPoolByToken0(pools []Pool, token0 byte) *Pool {
	for i := range pools {
		if pools[i].Token0 == addr(token0) {
			return &pools[i]
		}
	}
	return nil
}
