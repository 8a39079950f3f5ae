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

// SwapExactTokensForTokens sells exactly p.AmountIn of p.Path[0] for as much of
// p.Path[1] as the pool gives, which must be at least p.AmountOutMin.
func (e *Engine) SwapExactTokensForTokens(ctx context.Context, p SwapExactInParams) (res SwapResult, err error) {
	defer e.observe(opSwapExactIn, time.Now(), &err)

	if err := e.checkDeadline(p.Deadline); err != nil {
		return SwapResult{}, err
	}
	if err := requireAmounts(p.AmountIn, p.AmountOutMin); err != nil {
		return SwapResult{}, err
	}
	if err := requireAddresses(p.Sender, p.To); err != nil {
		return SwapResult{}, err
	}
	tokenIn, tokenOut, err := splitPath(p.Path)
	if err != nil {
		return SwapResult{}, err
	}
	key, err := poolregistry.NewPairKey(tokenIn, tokenOut)
	if err != nil {
		return SwapResult{}, err
	}

	release, err := e.store.Acquire(key)
	if err != nil {
		return SwapResult{}, err
	}
	defer release()

	pool, exists := e.store.Pool(key)
	if !exists {
		return SwapResult{}, fmt.Errorf("%w: %s/%s", ErrPairNotFound, tokenIn.Hex(), tokenOut.Hex())
	}
	reserveIn, reserveOut, err := calculator.GetReserves(tokenIn, tokenOut, pool)
	if err != nil {
		return SwapResult{}, err
	}
	amountOut, err := calculator.GetAmountOut(p.AmountIn, reserveIn, reserveOut)
	if err != nil {
		return SwapResult{}, err
	}
	if amountOut.IsZero() || amountOut.Lt(p.AmountOutMin) {
		return SwapResult{}, fmt.Errorf("%w: %s below minimum %s", ErrInsufficientOutputAmount, amountOut.Dec(), p.AmountOutMin.Dec())
	}

	return e.executeSwap(ctx, pool, tokenIn, tokenOut, p.AmountIn.Clone(), amountOut, p.Sender, p.To)
}

// SwapTokensForExactTokens buys exactly p.AmountOut of p.Path[1] for as little
// of p.Path[0] as the pool requires, which must be at most p.AmountInMax.
func (e *Engine) SwapTokensForExactTokens(ctx context.Context, p SwapExactOutParams) (res SwapResult, err error) {
	defer e.observe(opSwapExactOut, time.Now(), &err)

	if err := e.checkDeadline(p.Deadline); err != nil {
		return SwapResult{}, err
	}
	if err := requireAmounts(p.AmountOut, p.AmountInMax); err != nil {
		return SwapResult{}, err
	}
	if err := requireAddresses(p.Sender, p.To); err != nil {
		return SwapResult{}, err
	}
	tokenIn, tokenOut, err := splitPath(p.Path)
	if err != nil {
		return SwapResult{}, err
	}
	key, err := poolregistry.NewPairKey(tokenIn, tokenOut)
	if err != nil {
		return SwapResult{}, err
	}

	release, err := e.store.Acquire(key)
	if err != nil {
		return SwapResult{}, err
	}
	defer release()

	pool, exists := e.store.Pool(key)
	if !exists {
		return SwapResult{}, fmt.Errorf("%w: %s/%s", ErrPairNotFound, tokenIn.Hex(), tokenOut.Hex())
	}
	reserveIn, reserveOut, err := calculator.GetReserves(tokenIn, tokenOut, pool)
	if err != nil {
		return SwapResult{}, err
	}
	amountIn, err := calculator.GetAmountIn(p.AmountOut, reserveIn, reserveOut)
	if err != nil {
		return SwapResult{}, err
	}
	if amountIn.Gt(p.AmountInMax) {
		return SwapResult{}, fmt.Errorf("%w: %s above maximum %s", ErrExcessiveInputAmount, amountIn.Dec(), p.AmountInMax.Dec())
	}

	return e.executeSwap(ctx, pool, tokenIn, tokenOut, amountIn, p.AmountOut.Clone(), p.Sender, p.To)
}

// executeSwap runs the part of a swap shared by both directions once the
// amounts are priced. The caller holds the pair's guard.
func (e *Engine) executeSwap(
	ctx context.Context,
	pool uniswapv2.Pool,
	tokenIn, tokenOut common.Address,
	amountIn, amountOut *uint256.Int,
	from, to common.Address,
) (SwapResult, error) {
	next, err := calculator.ApplySwap(pool, tokenIn, amountIn, amountOut)
	if err != nil {
		return SwapResult{}, err
	}

	approved, err := e.approvalGate().Approve(ctx, tokenIn, tokenOut, amountIn.Clone(), amountOut.Clone())
	if err != nil {
		return SwapResult{}, fmt.Errorf("%w: %w", ErrSwapNotApproved, err)
	}
	if !approved {
		return SwapResult{}, fmt.Errorf("%w: %s %s -> %s %s", ErrSwapNotApproved, amountIn.Dec(), tokenIn.Hex(), amountOut.Dec(), tokenOut.Hex())
	}

	s := e.settle(ctx)
	if err := s.pull(tokenIn, from, amountIn); err != nil {
		return SwapResult{}, s.rollback(err)
	}
	if err := s.push(tokenOut, to, amountOut); err != nil {
		return SwapResult{}, s.rollback(err)
	}

	if _, err := e.commit(uniswapv2.Commit{Pool: next}, false, Event{
		Type:    EventSwap,
		Pair:    pool.Key,
		TokenA:  tokenIn,
		TokenB:  tokenOut,
		AmountA: amountIn.Clone(),
		AmountB: amountOut.Clone(),
		Sender:  from,
		To:      to,
	}); err != nil {
		return SwapResult{}, s.rollback(err)
	}

	return SwapResult{
		Pair:      pool.Key,
		AmountIn:  amountIn,
		AmountOut: amountOut,
	}, nil
}

func splitPath(path []common.Address) (tokenIn, tokenOut common.Address, err error) {
	if len(path) != 2 {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %d tokens, want 2", ErrUnsupportedPath, len(path))
	}
	return path[0], path[1], nil
}
