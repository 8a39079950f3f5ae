package calculator

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// FeeNumerator / FeeDenominator is the share of the input that reaches the
	// curve (a 0.3% fee, charged on the input side).
	FeeNumerator   = uint256.NewInt(997)
	FeeDenominator = uint256.NewInt(1000)

	// PriceScale is the fixed-point scale of Price (10^18).
	PriceScale = uint256.NewInt(1_000_000_000_000_000_000)

	one = uint256.NewInt(1)

	// ErrInvalidAmount is returned when a nil pointer is passed for an amount.
	ErrInvalidAmount = errors.New("nil pointer passed as amount")
	// ErrInsufficientAmount is returned by Quote for a zero input.
	ErrInsufficientAmount = errors.New("insufficient amount")
	// ErrInsufficientInputAmount is returned for a zero swap input.
	ErrInsufficientInputAmount = errors.New("insufficient input amount")
	// ErrInsufficientOutputAmount is returned for a zero requested output or a
	// computed output below the caller's floor.
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	// ErrInsufficientLiquidity is returned when reserves cannot serve the request,
	// or when a deposit would mint too few shares.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	// ErrInsufficientAmounts is returned when a deposit or withdrawal falls short of its minimums.
	ErrInsufficientAmounts = errors.New("insufficient amounts")
	// ErrInsufficientLiquidityAmounts is returned when a deposit settles on a zero amount.
	ErrInsufficientLiquidityAmounts = errors.New("insufficient liquidity amounts")
	// ErrDivisionByZero is returned by Price when the denominator reserve is zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrOverflow is returned when an intermediate product does not fit in 256 bits.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrK is returned when a swap would decrease the product of the reserves.
	ErrK = errors.New("constant product violated")
	// ErrTokenMismatch is returned when the specified input/output tokens do not match the pool's tokens.
	ErrTokenMismatch = errors.New("token mismatch")
)

// Calculator holds reusable uint256 values to avoid allocations during swap math.
// Instances are NOT safe for concurrent use by themselves; they are handed out
// by calculatorPool.
type Calculator struct {
	// GetAmountOut
	amountInWithFee uint256.Int
	numerator       uint256.Int
	denominator     uint256.Int

	// GetAmountIn
	numeratorIn   uint256.Int
	denominatorIn uint256.Int
}

var calculatorPool = sync.Pool{
	New: func() any {
		return new(Calculator)
	},
}

// Sqrt returns floor(sqrt(y)) using the Babylonian method on integers. The
// iteration stops as soon as the estimate stops decreasing, which makes it
// exact for every 256-bit input.
func Sqrt(y *uint256.Int) *uint256.Int {
	z := new(uint256.Int)
	if y == nil || y.IsZero() {
		return z
	}
	if y.LtUint64(4) {
		return z.SetOne()
	}

	z.Set(y)
	// x = y/2 + 1 cannot overflow because y/2 < 2^255.
	x := new(uint256.Int).Rsh(y, 1)
	x.AddUint64(x, 1)
	next := new(uint256.Int)
	for x.Lt(z) {
		z.Set(x)
		next.Div(y, x)
		next.Add(next, x)
		x.Rsh(next, 1)
	}
	return z
}

// Quote returns the amount of the other asset that matches amountA at the
// current reserve ratio: amountA * reserveB / reserveA, rounded down.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if err := requireAmounts(amountA, reserveA, reserveB); err != nil {
		return nil, err
	}
	if amountA.IsZero() {
		return nil, ErrInsufficientAmount
	}
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil, fmt.Errorf("%w: reserves (%s, %s)", ErrInsufficientLiquidity, reserveA.Dec(), reserveB.Dec())
	}
	return mulDiv(amountA, reserveB, reserveA)
}

// GetAmountOut calculates the output of an exact-input swap.
//
//	amountOut = amountIn*997*reserveOut / (reserveIn*1000 + amountIn*997)
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)
	return calc.getAmountOut(amountIn, reserveIn, reserveOut)
}

// GetAmountIn calculates the input an exact-output swap requires. The result is
// rounded up so the pool never gives out more than it is paid for.
//
//	amountIn = reserveIn*amountOut*1000 / ((reserveOut - amountOut)*997) + 1
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	calc := calculatorPool.Get().(*Calculator)
	defer calculatorPool.Put(calc)
	return calc.getAmountIn(amountOut, reserveIn, reserveOut)
}

func (c *Calculator) getAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if err := requireAmounts(amountIn, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	if amountIn.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, fmt.Errorf("%w: reserves (%s, %s)", ErrInsufficientLiquidity, reserveIn.Dec(), reserveOut.Dec())
	}

	if _, overflow := c.amountInWithFee.MulOverflow(amountIn, FeeNumerator); overflow {
		return nil, fmt.Errorf("%w: amountIn %s", ErrOverflow, amountIn.Dec())
	}
	if _, overflow := c.numerator.MulOverflow(&c.amountInWithFee, reserveOut); overflow {
		return nil, fmt.Errorf("%w: amountIn %s against reserve %s", ErrOverflow, amountIn.Dec(), reserveOut.Dec())
	}
	if _, overflow := c.denominator.MulOverflow(reserveIn, FeeDenominator); overflow {
		return nil, fmt.Errorf("%w: reserve %s", ErrOverflow, reserveIn.Dec())
	}
	if _, overflow := c.denominator.AddOverflow(&c.denominator, &c.amountInWithFee); overflow {
		return nil, fmt.Errorf("%w: swap denominator", ErrOverflow)
	}

	return new(uint256.Int).Div(&c.numerator, &c.denominator), nil
}

func (c *Calculator) getAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if err := requireAmounts(amountOut, reserveIn, reserveOut); err != nil {
		return nil, err
	}
	if amountOut.IsZero() {
		return nil, ErrInsufficientOutputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, fmt.Errorf("%w: requested amountOut (%s) against reserveOut (%s)", ErrInsufficientLiquidity, amountOut.Dec(), reserveOut.Dec())
	}

	if _, overflow := c.numeratorIn.MulOverflow(reserveIn, amountOut); overflow {
		return nil, fmt.Errorf("%w: amountOut %s against reserve %s", ErrOverflow, amountOut.Dec(), reserveIn.Dec())
	}
	if _, overflow := c.numeratorIn.MulOverflow(&c.numeratorIn, FeeDenominator); overflow {
		return nil, fmt.Errorf("%w: amountOut %s against reserve %s", ErrOverflow, amountOut.Dec(), reserveIn.Dec())
	}
	c.denominatorIn.Sub(reserveOut, amountOut)
	if _, overflow := c.denominatorIn.MulOverflow(&c.denominatorIn, FeeNumerator); overflow {
		return nil, fmt.Errorf("%w: reserve %s", ErrOverflow, reserveOut.Dec())
	}

	amountIn := new(uint256.Int).Div(&c.numeratorIn, &c.denominatorIn)
	if _, overflow := amountIn.AddOverflow(amountIn, one); overflow {
		return nil, fmt.Errorf("%w: amountIn", ErrOverflow)
	}
	return amountIn, nil
}

// OptimalDeposit settles how much of each asset a deposit actually takes.
//
// An empty pool accepts the desired amounts as they are. Otherwise the deposit
// keeps the current reserve ratio without exceeding either desired amount:
// it first tries the full amountADesired, and if the matching B would exceed
// amountBDesired it takes the full amountBDesired instead. The chosen side's
// counterpart must meet its minimum.
func OptimalDeposit(
	amountADesired, amountBDesired,
	amountAMin, amountBMin,
	reserveA, reserveB *uint256.Int,
) (amountA, amountB *uint256.Int, err error) {
	if err := requireAmounts(amountADesired, amountBDesired, amountAMin, amountBMin, reserveA, reserveB); err != nil {
		return nil, nil, err
	}

	if reserveA.IsZero() && reserveB.IsZero() {
		amountA, amountB = amountADesired.Clone(), amountBDesired.Clone()
	} else {
		amountBOptimal, err := Quote(amountADesired, reserveA, reserveB)
		if err != nil {
			return nil, nil, err
		}
		if !amountBOptimal.Gt(amountBDesired) {
			if amountBOptimal.Lt(amountBMin) {
				return nil, nil, fmt.Errorf("%w: amountB %s below minimum %s", ErrInsufficientAmounts, amountBOptimal.Dec(), amountBMin.Dec())
			}
			amountA, amountB = amountADesired.Clone(), amountBOptimal
		} else {
			amountAOptimal, err := Quote(amountBDesired, reserveB, reserveA)
			if err != nil {
				return nil, nil, err
			}
			if amountAOptimal.Gt(amountADesired) {
				return nil, nil, fmt.Errorf("%w: amountA %s exceeds desired %s", ErrInsufficientAmounts, amountAOptimal.Dec(), amountADesired.Dec())
			}
			if amountAOptimal.Lt(amountAMin) {
				return nil, nil, fmt.Errorf("%w: amountA %s below minimum %s", ErrInsufficientAmounts, amountAOptimal.Dec(), amountAMin.Dec())
			}
			amountA, amountB = amountAOptimal, amountBDesired.Clone()
		}
	}

	if amountA.IsZero() || amountB.IsZero() {
		return nil, nil, fmt.Errorf("%w: (%s, %s)", ErrInsufficientLiquidityAmounts, amountA.Dec(), amountB.Dec())
	}
	return amountA, amountB, nil
}

// LiquidityMinted returns the shares a deposit of (amount0, amount1) earns.
//
// The first deposit into an empty pool mints sqrt(amount0*amount1), which must
// exceed minimumLiquidity. Later deposits mint
// min(amount0*supply/reserve0, amount1*supply/reserve1), which must be positive.
func LiquidityMinted(amount0, amount1, reserve0, reserve1, totalSupply, minimumLiquidity *uint256.Int) (*uint256.Int, error) {
	if err := requireAmounts(amount0, amount1, reserve0, reserve1, totalSupply, minimumLiquidity); err != nil {
		return nil, err
	}

	if totalSupply.IsZero() {
		product, overflow := new(uint256.Int).MulOverflow(amount0, amount1)
		if overflow {
			return nil, fmt.Errorf("%w: initial deposit (%s, %s)", ErrOverflow, amount0.Dec(), amount1.Dec())
		}
		liquidity := Sqrt(product)
		if !liquidity.Gt(minimumLiquidity) {
			return nil, fmt.Errorf("%w: minted %s, need more than %s", ErrInsufficientLiquidity, liquidity.Dec(), minimumLiquidity.Dec())
		}
		return liquidity, nil
	}

	if reserve0.IsZero() || reserve1.IsZero() {
		return nil, fmt.Errorf("%w: supply %s with reserves (%s, %s)", ErrInsufficientLiquidity, totalSupply.Dec(), reserve0.Dec(), reserve1.Dec())
	}
	liquidity0, err := mulDiv(amount0, totalSupply, reserve0)
	if err != nil {
		return nil, err
	}
	liquidity1, err := mulDiv(amount1, totalSupply, reserve1)
	if err != nil {
		return nil, err
	}
	liquidity := liquidity0
	if liquidity1.Lt(liquidity0) {
		liquidity = liquidity1
	}
	if liquidity.IsZero() {
		return nil, fmt.Errorf("%w: deposit (%s, %s) mints no shares", ErrInsufficientLiquidity, amount0.Dec(), amount1.Dec())
	}
	return liquidity, nil
}

// LiquidityRedeemed returns the reserves owed for burning liquidity shares,
// rounded down on both sides.
func LiquidityRedeemed(liquidity, reserve0, reserve1, totalSupply *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	if err := requireAmounts(liquidity, reserve0, reserve1, totalSupply); err != nil {
		return nil, nil, err
	}
	if totalSupply.IsZero() || liquidity.Gt(totalSupply) {
		return nil, nil, fmt.Errorf("%w: redeeming %s of supply %s", ErrInsufficientLiquidity, liquidity.Dec(), totalSupply.Dec())
	}
	if amount0, err = mulDiv(liquidity, reserve0, totalSupply); err != nil {
		return nil, nil, err
	}
	if amount1, err = mulDiv(liquidity, reserve1, totalSupply); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Price returns reserveA * 10^18 / reserveB.
func Price(reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if err := requireAmounts(reserveA, reserveB); err != nil {
		return nil, err
	}
	if reserveB.IsZero() {
		return nil, ErrDivisionByZero
	}
	return mulDiv(reserveA, PriceScale, reserveB)
}

// GetReserves returns the pool's reserves ordered as (tokenIn, tokenOut).
func GetReserves(tokenIn, tokenOut common.Address, pool uniswapv2.Pool) (reserveIn, reserveOut *uint256.Int, err error) {
	if tokenIn == pool.Token0 && tokenOut == pool.Token1 {
		return pool.Reserve0, pool.Reserve1, nil
	} else if tokenIn == pool.Token1 && tokenOut == pool.Token0 {
		return pool.Reserve1, pool.Reserve0, nil
	}
	return nil, nil, fmt.Errorf("%w: pool %s does not contain the pair %s -> %s", ErrTokenMismatch, pool.Key, tokenIn.Hex(), tokenOut.Hex())
}

// ApplySwap returns a copy of pool after amountIn of tokenIn entered and
// amountOut of the other token left. It fails with ErrK if the product of the
// reserves would decrease.
func ApplySwap(pool uniswapv2.Pool, tokenIn common.Address, amountIn, amountOut *uint256.Int) (uniswapv2.Pool, error) {
	if err := requireAmounts(amountIn, amountOut, pool.Reserve0, pool.Reserve1); err != nil {
		return uniswapv2.Pool{}, err
	}

	next := pool.Copy()
	var in, out *uint256.Int
	switch tokenIn {
	case pool.Token0:
		in, out = next.Reserve0, next.Reserve1
	case pool.Token1:
		in, out = next.Reserve1, next.Reserve0
	default:
		return uniswapv2.Pool{}, fmt.Errorf("%w: %s is not in pool %s", ErrTokenMismatch, tokenIn.Hex(), pool.Key)
	}

	if !amountOut.Lt(out) {
		return uniswapv2.Pool{}, fmt.Errorf("%w: amountOut %s against reserve %s", ErrInsufficientLiquidity, amountOut.Dec(), out.Dec())
	}
	if _, overflow := in.AddOverflow(in, amountIn); overflow {
		return uniswapv2.Pool{}, fmt.Errorf("%w: reserve after adding %s", ErrOverflow, amountIn.Dec())
	}
	out.Sub(out, amountOut)

	// The products can exceed 256 bits, so the comparison is done in big.Int.
	kBefore := new(big.Int).Mul(pool.Reserve0.ToBig(), pool.Reserve1.ToBig())
	kAfter := new(big.Int).Mul(next.Reserve0.ToBig(), next.Reserve1.ToBig())
	if kAfter.Cmp(kBefore) < 0 {
		return uniswapv2.Pool{}, fmt.Errorf("%w: %s < %s", ErrK, kAfter, kBefore)
	}
	return next, nil
}

// SimulateSwap calculates the output of an exact-input swap and the resulting
// pool state without modifying pool.
func SimulateSwap(amountIn *uint256.Int, tokenIn, tokenOut common.Address, pool uniswapv2.Pool) (*uint256.Int, uniswapv2.Pool, error) {
	reserveIn, reserveOut, err := GetReserves(tokenIn, tokenOut, pool)
	if err != nil {
		return nil, uniswapv2.Pool{}, err
	}
	amountOut, err := GetAmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, uniswapv2.Pool{}, err
	}
	next, err := ApplySwap(pool, tokenIn, amountIn, amountOut)
	if err != nil {
		return nil, uniswapv2.Pool{}, err
	}
	return amountOut, next, nil
}

func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s", ErrOverflow, x.Dec(), y.Dec())
	}
	return product.Div(product, d), nil
}

func requireAmounts(amounts ...*uint256.Int) error {
	for _, a := range amounts {
		if a == nil {
			return ErrInvalidAmount
		}
	}
	return nil
}
