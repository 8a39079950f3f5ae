package engine

import (
	"fmt"

	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/calculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Price returns the marginal price of tokenB in units of tokenA, scaled by
// 10^18: reserveA * 10^18 / reserveB.
func (e *Engine) Price(tokenA, tokenB common.Address) (*uint256.Int, error) {
	pool, err := e.existingPool(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	reserveA, reserveB := align(pool, tokenA, pool.Reserve0, pool.Reserve1)
	return calculator.Price(reserveA, reserveB)
}

// PairInfo returns the pair's reserves in the caller's token order and its
// share supply. A pair without a pool reports zeros.
func (e *Engine) PairInfo(tokenA, tokenB common.Address) (PairInfo, error) {
	key, err := poolregistry.NewPairKey(tokenA, tokenB)
	if err != nil {
		return PairInfo{}, err
	}
	info := PairInfo{
		Pair:        key,
		TokenA:      tokenA,
		TokenB:      tokenB,
		ReserveA:    new(uint256.Int),
		ReserveB:    new(uint256.Int),
		TotalSupply: new(uint256.Int),
	}
	pool, ok := e.store.Pool(key)
	if !ok {
		return info, nil
	}
	info.ReserveA, info.ReserveB = align(pool, tokenA, pool.Reserve0, pool.Reserve1)
	info.TotalSupply = pool.TotalSupply
	info.Exists = true
	return info, nil
}

// BalanceOf returns holder's share balance in the pair's pool.
func (e *Engine) BalanceOf(tokenA, tokenB, holder common.Address) (*uint256.Int, error) {
	key, err := poolregistry.NewPairKey(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	return e.store.BalanceOf(key, holder), nil
}

// Quote returns the amount of tokenB equal in value to amountA at the pair's
// current reserve ratio, ignoring fees.
func (e *Engine) Quote(amountA *uint256.Int, tokenA, tokenB common.Address) (*uint256.Int, error) {
	pool, err := e.existingPool(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	reserveA, reserveB := align(pool, tokenA, pool.Reserve0, pool.Reserve1)
	return calculator.Quote(amountA, reserveA, reserveB)
}

// GetAmountOut prices an exact-input swap along path without executing it.
func (e *Engine) GetAmountOut(amountIn *uint256.Int, path []common.Address) (*uint256.Int, error) {
	tokenIn, tokenOut, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	pool, err := e.existingPool(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut, err := calculator.GetReserves(tokenIn, tokenOut, pool)
	if err != nil {
		return nil, err
	}
	return calculator.GetAmountOut(amountIn, reserveIn, reserveOut)
}

// GetAmountIn prices an exact-output swap along path without executing it.
func (e *Engine) GetAmountIn(amountOut *uint256.Int, path []common.Address) (*uint256.Int, error) {
	tokenIn, tokenOut, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	pool, err := e.existingPool(tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut, err := calculator.GetReserves(tokenIn, tokenOut, pool)
	if err != nil {
		return nil, err
	}
	return calculator.GetAmountIn(amountOut, reserveIn, reserveOut)
}

// Pool returns a copy of the pool stored under key.
func (e *Engine) Pool(key poolregistry.PairKey) (uniswapv2.Pool, bool) {
	return e.store.Pool(key)
}

// AllPairs returns every pool in creation order.
func (e *Engine) AllPairs() []uniswapv2.Pool {
	return e.store.Pools()
}

// PairsForToken returns every pool that trades token, in creation order.
func (e *Engine) PairsForToken(token common.Address) []uniswapv2.Pool {
	keys := e.index.PoolsForToken(token)
	pools := make([]uniswapv2.Pool, 0, len(keys))
	for _, key := range keys {
		if p, ok := e.store.Pool(key); ok {
			pools = append(pools, p)
		}
	}
	return pools
}

// Snapshot returns every pool and the sequence number of the last commit.
func (e *Engine) Snapshot() uniswapv2.Snapshot {
	return e.store.Snapshot()
}

// SnapshotWith takes a snapshot and calls fn with it while no commit can
// happen, so fn can start a consumer that must not miss or repeat an event.
func (e *Engine) SnapshotWith(fn func(uniswapv2.Snapshot)) {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	fn(e.store.Snapshot())
}

func (e *Engine) existingPool(tokenA, tokenB common.Address) (uniswapv2.Pool, error) {
	key, err := poolregistry.NewPairKey(tokenA, tokenB)
	if err != nil {
		return uniswapv2.Pool{}, err
	}
	pool, ok := e.store.Pool(key)
	if !ok {
		return uniswapv2.Pool{}, fmt.Errorf("%w: %s/%s", ErrPairNotFound, tokenA.Hex(), tokenB.Hex())
	}
	return pool, nil
}
