package uniswapv2

import (
	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Pool is the reserve state of one constant-product pair.
//
// Token0 and Token1 are in canonical order and never change once the pool
// exists. Reserve0 and Reserve1 mirror the balances held in custody for the
// pair, and TotalSupply is the sum of every holder's share balance.
type Pool struct {
	Key         poolregistry.PairKey `json:"key"`
	Token0      common.Address       `json:"token0"`
	Token1      common.Address       `json:"token1"`
	Reserve0    *uint256.Int         `json:"reserve0"`
	Reserve1    *uint256.Int         `json:"reserve1"`
	TotalSupply *uint256.Int         `json:"totalSupply"`
}

// NewPool returns an empty pool for two tokens that are already in canonical order.
func NewPool(token0, token1 common.Address) Pool {
	return Pool{
		Key:         poolregistry.PairKeyFromSorted(token0, token1),
		Token0:      token0,
		Token1:      token1,
		Reserve0:    new(uint256.Int),
		Reserve1:    new(uint256.Int),
		TotalSupply: new(uint256.Int),
	}
}

// IsEmpty reports whether the pool holds no reserves and has no shares outstanding.
func (p Pool) IsEmpty() bool {
	return isZero(p.Reserve0) && isZero(p.Reserve1) && isZero(p.TotalSupply)
}

// Contains reports whether token is one of the pool's two assets.
func (p Pool) Contains(token common.Address) bool {
	return token == p.Token0 || token == p.Token1
}

// Copy returns a pool that shares no memory with p.
func (p Pool) Copy() Pool {
	return deepCopyPool(p)
}

// deepCopyPool creates a new Pool with its own memory for the *uint256.Int fields.
// Snapshots handed to callers must never alias the store's live values.
func deepCopyPool(p Pool) Pool {
	newPool := p
	if p.Reserve0 != nil {
		newPool.Reserve0 = p.Reserve0.Clone()
	}
	if p.Reserve1 != nil {
		newPool.Reserve1 = p.Reserve1.Clone()
	}
	if p.TotalSupply != nil {
		newPool.TotalSupply = p.TotalSupply.Clone()
	}
	return newPool
}

func isZero(x *uint256.Int) bool {
	return x == nil || x.IsZero()
}

func equalAmount(a, b *uint256.Int) bool {
	if a == nil || b == nil {
		return isZero(a) && isZero(b)
	}
	return a.Eq(b)
}
