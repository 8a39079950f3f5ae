package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/calculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AddLiquidity deposits both assets of a pair and mints shares to p.To.
//
// The first deposit into a pair creates its pool and takes the desired amounts
// as given. Later deposits are settled at the current reserve ratio, never
// exceeding either desired amount nor falling below either minimum.
func (e *Engine) AddLiquidity(ctx context.Context, p AddLiquidityParams) (res AddLiquidityResult, err error) {
	defer e.observe(opAddLiquidity, time.Now(), &err)

	if err := e.checkDeadline(p.Deadline); err != nil {
		return AddLiquidityResult{}, err
	}
	if err := requireAmounts(p.AmountADesired, p.AmountBDesired, p.AmountAMin, p.AmountBMin); err != nil {
		return AddLiquidityResult{}, err
	}
	if err := requireAddresses(p.Sender, p.To); err != nil {
		return AddLiquidityResult{}, err
	}
	token0, token1, err := poolregistry.SortTokens(p.TokenA, p.TokenB)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	key := poolregistry.PairKeyFromSorted(token0, token1)

	release, err := e.store.Acquire(key)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	defer release()

	pool, exists := e.store.Pool(key)
	if !exists {
		pool = uniswapv2.NewPool(token0, token1)
	}

	reserveA, reserveB := align(pool, p.TokenA, pool.Reserve0, pool.Reserve1)
	amountA, amountB, err := calculator.OptimalDeposit(p.AmountADesired, p.AmountBDesired, p.AmountAMin, p.AmountBMin, reserveA, reserveB)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	amount0, amount1 := align(pool, p.TokenA, amountA, amountB)

	liquidity, err := calculator.LiquidityMinted(amount0, amount1, pool.Reserve0, pool.Reserve1, pool.TotalSupply, e.minimumLiquidity)
	if err != nil {
		return AddLiquidityResult{}, err
	}

	next := pool.Copy()
	if next.Reserve0, err = addChecked(pool.Reserve0, amount0, "reserve0"); err != nil {
		return AddLiquidityResult{}, err
	}
	if next.Reserve1, err = addChecked(pool.Reserve1, amount1, "reserve1"); err != nil {
		return AddLiquidityResult{}, err
	}
	if next.TotalSupply, err = addChecked(pool.TotalSupply, liquidity, "totalSupply"); err != nil {
		return AddLiquidityResult{}, err
	}
	balance, err := addChecked(e.store.BalanceOf(key, p.To), liquidity, "balance")
	if err != nil {
		return AddLiquidityResult{}, err
	}

	s := e.settle(ctx)
	if err := s.pull(p.TokenA, p.Sender, amountA); err != nil {
		return AddLiquidityResult{}, s.rollback(err)
	}
	if err := s.pull(p.TokenB, p.Sender, amountB); err != nil {
		return AddLiquidityResult{}, s.rollback(err)
	}

	_, err = e.commit(uniswapv2.Commit{
		Pool:     next,
		Balances: map[common.Address]*uint256.Int{p.To: balance},
	}, !exists, Event{
		Type:      EventDeposit,
		Pair:      key,
		TokenA:    p.TokenA,
		TokenB:    p.TokenB,
		AmountA:   amountA.Clone(),
		AmountB:   amountB.Clone(),
		Liquidity: liquidity.Clone(),
		Sender:    p.Sender,
		To:        p.To,
	})
	if err != nil {
		return AddLiquidityResult{}, s.rollback(err)
	}

	return AddLiquidityResult{
		Pair:      key,
		AmountA:   amountA,
		AmountB:   amountB,
		Liquidity: liquidity,
	}, nil
}

// RemoveLiquidity burns p.Liquidity of p.Sender's shares and sends the
// proportional reserves, rounded down, to p.To.
//
// The owed amounts are computed against the canonical reserves and then
// reported and checked against the minimums in the caller's token order.
func (e *Engine) RemoveLiquidity(ctx context.Context, p RemoveLiquidityParams) (res RemoveLiquidityResult, err error) {
	defer e.observe(opRemoveLiquidity, time.Now(), &err)

	if err := e.checkDeadline(p.Deadline); err != nil {
		return RemoveLiquidityResult{}, err
	}
	if err := requireAmounts(p.Liquidity, p.AmountAMin, p.AmountBMin); err != nil {
		return RemoveLiquidityResult{}, err
	}
	if err := requireAddresses(p.Sender, p.To); err != nil {
		return RemoveLiquidityResult{}, err
	}
	key, err := poolregistry.NewPairKey(p.TokenA, p.TokenB)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}

	release, err := e.store.Acquire(key)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	defer release()

	pool, exists := e.store.Pool(key)
	if !exists {
		return RemoveLiquidityResult{}, fmt.Errorf("%w: %s/%s", ErrPairNotFound, p.TokenA.Hex(), p.TokenB.Hex())
	}

	balance := e.store.BalanceOf(key, p.Sender)
	if p.Liquidity.IsZero() || balance.Lt(p.Liquidity) {
		return RemoveLiquidityResult{}, fmt.Errorf("%w: %s holds %s, burning %s", ErrInsufficientLiquidityBalance, p.Sender.Hex(), balance.Dec(), p.Liquidity.Dec())
	}

	amount0, amount1, err := calculator.LiquidityRedeemed(p.Liquidity, pool.Reserve0, pool.Reserve1, pool.TotalSupply)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	amountA, amountB := align(pool, p.TokenA, amount0, amount1)
	if amountA.IsZero() || amountB.IsZero() {
		return RemoveLiquidityResult{}, fmt.Errorf("%w: burning %s returns (%s, %s)", ErrInsufficientAmounts, p.Liquidity.Dec(), amountA.Dec(), amountB.Dec())
	}
	if amountA.Lt(p.AmountAMin) {
		return RemoveLiquidityResult{}, fmt.Errorf("%w: amountA %s below minimum %s", ErrInsufficientAmounts, amountA.Dec(), p.AmountAMin.Dec())
	}
	if amountB.Lt(p.AmountBMin) {
		return RemoveLiquidityResult{}, fmt.Errorf("%w: amountB %s below minimum %s", ErrInsufficientAmounts, amountB.Dec(), p.AmountBMin.Dec())
	}

	next := pool.Copy()
	next.Reserve0.Sub(next.Reserve0, amount0)
	next.Reserve1.Sub(next.Reserve1, amount1)
	next.TotalSupply.Sub(next.TotalSupply, p.Liquidity)
	if !next.TotalSupply.IsZero() && next.TotalSupply.Lt(e.minimumLiquidity) {
		return RemoveLiquidityResult{}, fmt.Errorf("%w: remaining supply %s below minimum %s", ErrInsufficientLiquidity, next.TotalSupply.Dec(), e.minimumLiquidity.Dec())
	}

	s := e.settle(ctx)
	if err := s.push(p.TokenA, p.To, amountA); err != nil {
		return RemoveLiquidityResult{}, s.rollback(err)
	}
	if err := s.push(p.TokenB, p.To, amountB); err != nil {
		return RemoveLiquidityResult{}, s.rollback(err)
	}

	_, err = e.commit(uniswapv2.Commit{
		Pool:     next,
		Balances: map[common.Address]*uint256.Int{p.Sender: new(uint256.Int).Sub(balance, p.Liquidity)},
	}, false, Event{
		Type:      EventWithdrawal,
		Pair:      key,
		TokenA:    p.TokenA,
		TokenB:    p.TokenB,
		AmountA:   amountA.Clone(),
		AmountB:   amountB.Clone(),
		Liquidity: p.Liquidity.Clone(),
		Sender:    p.Sender,
		To:        p.To,
	})
	if err != nil {
		return RemoveLiquidityResult{}, s.rollback(err)
	}

	return RemoveLiquidityResult{
		Pair:    key,
		AmountA: amountA,
		AmountB: amountB,
	}, nil
}
