package calculator

import (
	"math/big"
	"math/rand"
	"testing"

	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// u is a helper to create a uint256 from a decimal string, which is necessary
// for numbers larger than a uint64.
func u(s string) *uint256.Int {
	return uint256.MustFromDecimal(s)
}

func n(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

var (
	usdc = common.HexToAddress("0x1000000000000000000000000000000000000001")
	weth = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func usdcWethPool() uniswapv2.Pool {
	p := uniswapv2.NewPool(usdc, weth)
	p.Reserve0 = n(100_000_000)            // 100 USDC
	p.Reserve1 = u("50000000000000000000") // 50 WETH
	p.TotalSupply = n(1)
	return p
}

func TestSqrt(t *testing.T) {
	maxUint := new(uint256.Int).SetAllOne()

	testCases := []struct {
		in       *uint256.Int
		expected *uint256.Int
	}{
		{in: n(0), expected: n(0)},
		{in: n(1), expected: n(1)},
		{in: n(2), expected: n(1)},
		{in: n(3), expected: n(1)},
		{in: n(4), expected: n(2)},
		{in: n(15), expected: n(3)},
		{in: n(16), expected: n(4)},
		{in: n(17), expected: n(4)},
		{in: n(40_000), expected: n(200)},
		{in: u("1000000000000000000000000000000000000"), expected: u("1000000000000000000")},
		{in: maxUint, expected: u("340282366920938463463374607431768211455")},
	}

	for _, tc := range testCases {
		t.Run(tc.in.Dec(), func(t *testing.T) {
			assert.Equal(t, tc.expected, Sqrt(tc.in))
		})
	}

	t.Run("nil is zero", func(t *testing.T) {
		assert.True(t, Sqrt(nil).IsZero())
	})

	t.Run("does not modify input", func(t *testing.T) {
		in := n(1_000_000)
		Sqrt(in)
		assert.Equal(t, n(1_000_000), in)
	})

	t.Run("floor property over random inputs", func(t *testing.T) {
		r := rand.New(rand.NewSource(1))
		for i := 0; i < 2000; i++ {
			y := new(uint256.Int)
			for j := range y {
				y[j] = r.Uint64()
			}
			// Vary the magnitude so small inputs are covered too.
			y.Rsh(y, uint(r.Intn(256)))

			z := Sqrt(y).ToBig()
			zSquared := new(big.Int).Mul(z, z)
			zNext := new(big.Int).Add(z, big.NewInt(1))
			zNextSquared := new(big.Int).Mul(zNext, zNext)

			require.True(t, zSquared.Cmp(y.ToBig()) <= 0, "sqrt(%s)^2 > input", y.Dec())
			require.True(t, zNextSquared.Cmp(y.ToBig()) > 0, "sqrt(%s) is not the floor", y.Dec())
		}
	})
}

func TestQuote(t *testing.T) {
	testCases := []struct {
		name        string
		amountA     *uint256.Int
		reserveA    *uint256.Int
		reserveB    *uint256.Int
		expected    *uint256.Int
		expectedErr error
	}{
		{name: "proportional", amountA: n(50), reserveA: n(100), reserveB: n(400), expected: n(200)},
		{name: "rounds down", amountA: n(1), reserveA: n(3), reserveB: n(2), expected: n(0)},
		{name: "rounds down non-zero", amountA: n(10), reserveA: n(3), reserveB: n(2), expected: n(6)},
		{name: "zero amount", amountA: n(0), reserveA: n(100), reserveB: n(400), expectedErr: ErrInsufficientAmount},
		{name: "zero reserveA", amountA: n(1), reserveA: n(0), reserveB: n(400), expectedErr: ErrInsufficientLiquidity},
		{name: "zero reserveB", amountA: n(1), reserveA: n(100), reserveB: n(0), expectedErr: ErrInsufficientLiquidity},
		{name: "nil amount", amountA: nil, reserveA: n(100), reserveB: n(400), expectedErr: ErrInvalidAmount},
		{name: "overflow", amountA: new(uint256.Int).SetAllOne(), reserveA: n(1), reserveB: n(2), expectedErr: ErrOverflow},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Quote(tc.amountA, tc.reserveA, tc.reserveB)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestGetAmountOut(t *testing.T) {
	testCases := []struct {
		name        string
		amountIn    *uint256.Int
		reserveIn   *uint256.Int
		reserveOut  *uint256.Int
		expected    *uint256.Int
		expectedErr error
	}{
		{
			name:       "reference vector",
			amountIn:   n(1000),
			reserveIn:  n(10000),
			reserveOut: n(10000),
			// floor(1000*997*10000 / (10000*1000 + 1000*997))
			expected: n(906),
		},
		{
			name:       "Standard Swap (USDC -> WETH)",
			amountIn:   n(1_000_000),
			reserveIn:  n(100_000_000),
			reserveOut: u("50000000000000000000"),
			expected:   u("493579017198530649"),
		},
		{
			name:       "Standard Swap (WETH -> USDC)",
			amountIn:   u("1000000000000000000"),
			reserveIn:  u("50000000000000000000"),
			reserveOut: n(100_000_000),
			expected:   n(1955016),
		},
		{
			name:       "dust input rounds to zero",
			amountIn:   n(1),
			reserveIn:  n(1),
			reserveOut: n(1),
			expected:   n(0),
		},
		{name: "zero input", amountIn: n(0), reserveIn: n(10), reserveOut: n(10), expectedErr: ErrInsufficientInputAmount},
		{name: "zero reserveIn", amountIn: n(1), reserveIn: n(0), reserveOut: n(10), expectedErr: ErrInsufficientLiquidity},
		{name: "zero reserveOut", amountIn: n(1), reserveIn: n(10), reserveOut: n(0), expectedErr: ErrInsufficientLiquidity},
		{name: "nil input", amountIn: nil, reserveIn: n(10), reserveOut: n(10), expectedErr: ErrInvalidAmount},
		{name: "overflow", amountIn: new(uint256.Int).SetAllOne(), reserveIn: n(10), reserveOut: n(10), expectedErr: ErrOverflow},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GetAmountOut(tc.amountIn, tc.reserveIn, tc.reserveOut)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestGetAmountIn(t *testing.T) {
	testCases := []struct {
		name        string
		amountOut   *uint256.Int
		reserveIn   *uint256.Int
		reserveOut  *uint256.Int
		expected    *uint256.Int
		expectedErr error
	}{
		{
			name:       "Standard Swap (USDC -> WETH)",
			amountOut:  u("493579017198530649"),
			reserveIn:  n(100_000_000),
			reserveOut: u("50000000000000000000"),
			expected:   n(1_000_000),
		},
		{
			name:       "Standard Swap (WETH -> USDC)",
			amountOut:  n(1955016),
			reserveIn:  u("50000000000000000000"),
			reserveOut: n(100_000_000),
			expected:   u("999999498234537320"),
		},
		{
			name:       "rounds up",
			amountOut:  n(1),
			reserveIn:  n(1),
			reserveOut: n(2),
			expected:   n(2),
		},
		{name: "zero output", amountOut: n(0), reserveIn: n(10), reserveOut: n(10), expectedErr: ErrInsufficientOutputAmount},
		{name: "output equals reserve", amountOut: n(10), reserveIn: n(10), reserveOut: n(10), expectedErr: ErrInsufficientLiquidity},
		{name: "output exceeds reserve", amountOut: u("60000000000000000000"), reserveIn: n(100_000_000), reserveOut: u("50000000000000000000"), expectedErr: ErrInsufficientLiquidity},
		{name: "zero reserveIn", amountOut: n(1), reserveIn: n(0), reserveOut: n(10), expectedErr: ErrInsufficientLiquidity},
		{name: "nil output", amountOut: nil, reserveIn: n(10), reserveOut: n(10), expectedErr: ErrInvalidAmount},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GetAmountIn(tc.amountOut, tc.reserveIn, tc.reserveOut)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("exact-out input always buys at least the requested output", func(t *testing.T) {
		r := rand.New(rand.NewSource(7))
		for i := 0; i < 1000; i++ {
			reserveIn := n(uint64(r.Int63n(1<<50) + 1))
			reserveOut := n(uint64(r.Int63n(1<<50) + 2))
			amountOut := n(uint64(r.Int63n(int64(reserveOut.Uint64()-1)) + 1))

			amountIn, err := GetAmountIn(amountOut, reserveIn, reserveOut)
			require.NoError(t, err)
			got, err := GetAmountOut(amountIn, reserveIn, reserveOut)
			require.NoError(t, err)
			require.False(t, got.Lt(amountOut), "in=%s out=%s got=%s", amountIn.Dec(), amountOut.Dec(), got.Dec())
		}
	})
}

func TestOptimalDeposit(t *testing.T) {
	testCases := []struct {
		name               string
		aDesired, bDesired uint64
		aMin, bMin         uint64
		reserveA, reserveB uint64
		expectedA          uint64
		expectedB          uint64
		expectedErr        error
	}{
		{name: "empty pool takes desired amounts", aDesired: 100, bDesired: 400, reserveA: 0, reserveB: 0, expectedA: 100, expectedB: 400},
		{name: "B side fits", aDesired: 10, bDesired: 100, reserveA: 100, reserveB: 400, expectedA: 10, expectedB: 40},
		{name: "A side fits", aDesired: 100, bDesired: 40, reserveA: 100, reserveB: 400, expectedA: 10, expectedB: 40},
		{name: "exact ratio", aDesired: 25, bDesired: 100, reserveA: 100, reserveB: 400, expectedA: 25, expectedB: 100},
		{name: "B below minimum", aDesired: 10, bDesired: 100, bMin: 41, reserveA: 100, reserveB: 400, expectedErr: ErrInsufficientAmounts},
		{name: "A below minimum", aDesired: 100, bDesired: 40, aMin: 11, reserveA: 100, reserveB: 400, expectedErr: ErrInsufficientAmounts},
		{name: "minimums met exactly", aDesired: 100, bDesired: 40, aMin: 10, bMin: 40, reserveA: 100, reserveB: 400, expectedA: 10, expectedB: 40},
		{name: "empty pool zero side", aDesired: 100, bDesired: 0, reserveA: 0, reserveB: 0, expectedErr: ErrInsufficientLiquidityAmounts},
		{name: "quote rounds to zero", aDesired: 1, bDesired: 1, reserveA: 1000, reserveB: 1, expectedErr: ErrInsufficientLiquidityAmounts},
		{name: "zero desired on funded pool", aDesired: 0, bDesired: 10, reserveA: 100, reserveB: 400, expectedErr: ErrInsufficientAmount},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, b, err := OptimalDeposit(n(tc.aDesired), n(tc.bDesired), n(tc.aMin), n(tc.bMin), n(tc.reserveA), n(tc.reserveB))
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedA, a.Uint64())
			assert.Equal(t, tc.expectedB, b.Uint64())
			assert.LessOrEqual(t, a.Uint64(), tc.aDesired)
			assert.LessOrEqual(t, b.Uint64(), tc.bDesired)
		})
	}

	t.Run("never dilutes existing holders", func(t *testing.T) {
		r := rand.New(rand.NewSource(3))
		for i := 0; i < 1000; i++ {
			reserveA := uint64(r.Int63n(1<<40) + 1)
			reserveB := uint64(r.Int63n(1<<40) + 1)
			aDesired := uint64(r.Int63n(1<<40) + 1)
			bDesired := uint64(r.Int63n(1<<40) + 1)

			a, b, err := OptimalDeposit(n(aDesired), n(bDesired), n(0), n(0), n(reserveA), n(reserveB))
			if err != nil {
				require.ErrorIs(t, err, ErrInsufficientLiquidityAmounts)
				continue
			}
			// a/b must not be more favourable to the depositor than reserveA/reserveB:
			// a*reserveB >= b*reserveA is false only when the depositor underpays A.
			lhs := new(big.Int).Mul(a.ToBig(), big.NewInt(0).SetUint64(reserveB))
			rhs := new(big.Int).Mul(b.ToBig(), big.NewInt(0).SetUint64(reserveA))
			if a.Uint64() == aDesired {
				// B was quoted from A and rounded down.
				require.True(t, lhs.Cmp(rhs) >= 0)
			} else {
				// A was quoted from B and rounded down.
				require.True(t, lhs.Cmp(rhs) <= 0)
			}
			require.LessOrEqual(t, a.Uint64(), aDesired)
			require.LessOrEqual(t, b.Uint64(), bDesired)
		}
	})
}

func TestLiquidityMinted(t *testing.T) {
	t.Run("first deposit is the geometric mean", func(t *testing.T) {
		liquidity, err := LiquidityMinted(n(100), n(400), n(0), n(0), n(0), n(100))
		require.NoError(t, err)
		assert.Equal(t, n(200), liquidity)
	})

	t.Run("first deposit must exceed the floor", func(t *testing.T) {
		_, err := LiquidityMinted(n(100), n(400), n(0), n(0), n(0), n(200))
		assert.ErrorIs(t, err, ErrInsufficientLiquidity)

		_, err = LiquidityMinted(n(100), n(400), n(0), n(0), n(0), n(1000))
		assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	})

	t.Run("first deposit overflow", func(t *testing.T) {
		huge := new(uint256.Int).Lsh(n(1), 200)
		_, err := LiquidityMinted(huge, huge, n(0), n(0), n(0), n(1000))
		assert.ErrorIs(t, err, ErrOverflow)
	})

	t.Run("subsequent deposit takes the smaller ratio", func(t *testing.T) {
		// Pool (100, 400) with 200 shares. Depositing (10, 50) is worth 20 shares
		// on the A side and 25 on the B side.
		liquidity, err := LiquidityMinted(n(10), n(50), n(100), n(400), n(200), n(100))
		require.NoError(t, err)
		assert.Equal(t, n(20), liquidity)
	})

	t.Run("subsequent deposit minting nothing fails", func(t *testing.T) {
		_, err := LiquidityMinted(n(1), n(1), n(1000), n(1000), n(10), n(0))
		assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	})

	t.Run("nil amount", func(t *testing.T) {
		_, err := LiquidityMinted(nil, n(1), n(0), n(0), n(0), n(0))
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestLiquidityRedeemed(t *testing.T) {
	t.Run("pro rata", func(t *testing.T) {
		a0, a1, err := LiquidityRedeemed(n(50), n(100), n(400), n(200))
		require.NoError(t, err)
		assert.Equal(t, n(25), a0)
		assert.Equal(t, n(100), a1)
	})

	t.Run("full redemption returns all reserves", func(t *testing.T) {
		a0, a1, err := LiquidityRedeemed(n(200), n(100), n(400), n(200))
		require.NoError(t, err)
		assert.Equal(t, n(100), a0)
		assert.Equal(t, n(400), a1)
	})

	t.Run("more than supply", func(t *testing.T) {
		_, _, err := LiquidityRedeemed(n(201), n(100), n(400), n(200))
		assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	})

	t.Run("rounding never creates value", func(t *testing.T) {
		r := rand.New(rand.NewSource(11))
		for i := 0; i < 500; i++ {
			reserve0 := uint64(r.Int63n(1<<40) + 1)
			reserve1 := uint64(r.Int63n(1<<40) + 1)
			supply := uint64(r.Int63n(1<<40) + 1)

			// Redeem the whole supply in random slices.
			remaining, r0, r1 := supply, reserve0, reserve1
			var paid0, paid1 uint64
			for remaining > 0 {
				slice := uint64(r.Int63n(int64(remaining)) + 1)
				a0, a1, err := LiquidityRedeemed(n(slice), n(r0), n(r1), n(remaining))
				require.NoError(t, err)
				paid0 += a0.Uint64()
				paid1 += a1.Uint64()
				r0 -= a0.Uint64()
				r1 -= a1.Uint64()
				remaining -= slice
			}
			require.LessOrEqual(t, paid0, reserve0)
			require.LessOrEqual(t, paid1, reserve1)
		}
	})
}

func TestPrice(t *testing.T) {
	price, err := Price(n(100), n(400))
	require.NoError(t, err)
	assert.Equal(t, u("250000000000000000"), price)

	price, err = Price(n(400), n(100))
	require.NoError(t, err)
	assert.Equal(t, u("4000000000000000000"), price)

	_, err = Price(n(100), n(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Price(new(uint256.Int).SetAllOne(), n(1))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestGetReserves(t *testing.T) {
	pool := usdcWethPool()

	in, out, err := GetReserves(usdc, weth, pool)
	require.NoError(t, err)
	assert.Equal(t, pool.Reserve0, in)
	assert.Equal(t, pool.Reserve1, out)

	in, out, err = GetReserves(weth, usdc, pool)
	require.NoError(t, err)
	assert.Equal(t, pool.Reserve1, in)
	assert.Equal(t, pool.Reserve0, out)

	_, _, err = GetReserves(common.HexToAddress("0x99"), usdc, pool)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestSimulateSwap(t *testing.T) {
	t.Run("Successful swap Token0 -> Token1", func(t *testing.T) {
		pool := usdcWethPool()
		amountOut, next, err := SimulateSwap(n(1_000_000), usdc, weth, pool)
		require.NoError(t, err)
		assert.Equal(t, u("493579017198530649"), amountOut)
		assert.Equal(t, n(101_000_000), next.Reserve0)
		assert.Equal(t, u("49506420982801469351"), next.Reserve1)

		// The input pool is untouched.
		assert.Equal(t, n(100_000_000), pool.Reserve0)
		assert.Equal(t, u("50000000000000000000"), pool.Reserve1)
	})

	t.Run("Successful swap Token1 -> Token0", func(t *testing.T) {
		pool := usdcWethPool()
		amountOut, next, err := SimulateSwap(u("1000000000000000000"), weth, usdc, pool)
		require.NoError(t, err)
		assert.Equal(t, n(1955016), amountOut)
		assert.Equal(t, n(100_000_000-1955016), next.Reserve0)
		assert.Equal(t, u("51000000000000000000"), next.Reserve1)
	})

	t.Run("Token mismatch", func(t *testing.T) {
		_, _, err := SimulateSwap(n(1), usdc, common.HexToAddress("0x99"), usdcWethPool())
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})

	t.Run("product never decreases", func(t *testing.T) {
		r := rand.New(rand.NewSource(5))
		pool := usdcWethPool()
		pool.Reserve0 = n(1 << 40)
		pool.Reserve1 = n(1 << 41)
		for i := 0; i < 1000; i++ {
			tokenIn, tokenOut := usdc, weth
			if r.Intn(2) == 0 {
				tokenIn, tokenOut = weth, usdc
			}
			amountIn := n(uint64(r.Int63n(1<<38) + 1))

			before := new(big.Int).Mul(pool.Reserve0.ToBig(), pool.Reserve1.ToBig())
			_, next, err := SimulateSwap(amountIn, tokenIn, tokenOut, pool)
			if err != nil {
				require.ErrorIs(t, err, ErrInsufficientLiquidity)
				continue
			}
			after := new(big.Int).Mul(next.Reserve0.ToBig(), next.Reserve1.ToBig())
			require.True(t, after.Cmp(before) > 0, "fee must strictly increase the product")
			pool = next
		}
	})
}

func TestApplySwap(t *testing.T) {
	pool := usdcWethPool()
	pool.Reserve0 = n(10000)
	pool.Reserve1 = n(10000)

	t.Run("rejects output that breaks the product", func(t *testing.T) {
		_, err := ApplySwap(pool, usdc, n(1000), n(910))
		assert.ErrorIs(t, err, ErrK)
	})

	t.Run("accepts output at the formula", func(t *testing.T) {
		next, err := ApplySwap(pool, usdc, n(1000), n(906))
		require.NoError(t, err)
		assert.Equal(t, n(11000), next.Reserve0)
		assert.Equal(t, n(9094), next.Reserve1)
	})

	t.Run("rejects draining the reserve", func(t *testing.T) {
		_, err := ApplySwap(pool, usdc, n(1_000_000), n(10000))
		assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	})

	t.Run("rejects foreign token", func(t *testing.T) {
		_, err := ApplySwap(pool, common.HexToAddress("0x99"), n(1), n(0))
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})
}
