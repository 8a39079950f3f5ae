package engine

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"testing"

	"github.com/defistate/defistate-amm-go/approval"
	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(p uniswapv2.Pool) *big.Int {
	return new(big.Int).Mul(p.Reserve0.ToBig(), p.Reserve1.ToBig())
}

func TestSwapExactTokensForTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		testCases := []struct {
			name              string
			tokenIn, tokenOut common.Address
			wantReserve0      uint64
			wantReserve1      uint64
		}{
			{"token0 in", tokenLo, tokenHi, 11000, 9094},
			{"token1 in", tokenHi, tokenLo, 9094, 11000},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				f := newFixture(t)
				f.deposit(t, alice, tokenLo, tokenHi, 10000, 10000)
				inBefore := f.ledger.BalanceOf(tc.tokenIn, bob)
				outBefore := f.ledger.BalanceOf(tc.tokenOut, bob)

				res, err := f.engine.SwapExactTokensForTokens(ctx, f.swapParams(bob, tc.tokenIn, tc.tokenOut, 1000))
				require.NoError(t, err)
				assert.Equal(t, u(1000), res.AmountIn)
				assert.Equal(t, u(906), res.AmountOut)

				pool, _ := f.engine.Pool(res.Pair)
				assert.Equal(t, u(tc.wantReserve0), pool.Reserve0)
				assert.Equal(t, u(tc.wantReserve1), pool.Reserve1)
				assert.Equal(t, u(10000), pool.TotalSupply, "swaps do not mint")

				assert.Equal(t, new(uint256.Int).Sub(inBefore, u(1000)), f.ledger.BalanceOf(tc.tokenIn, bob))
				assert.Equal(t, new(uint256.Int).Add(outBefore, u(906)), f.ledger.BalanceOf(tc.tokenOut, bob))
			})
		}
	})

	t.Run("Rejections", func(t *testing.T) {
		testCases := []struct {
			name    string
			mutate  func(*SwapExactInParams)
			wantErr error
		}{
			{"below minimum output", func(p *SwapExactInParams) { p.AmountOutMin = u(907) }, ErrInsufficientOutputAmount},
			{"rounds to zero output", func(p *SwapExactInParams) { p.AmountIn = u(1) }, ErrInsufficientOutputAmount},
			{"zero input", func(p *SwapExactInParams) { p.AmountIn = u(0) }, ErrInsufficientInputAmount},
			{"nil input", func(p *SwapExactInParams) { p.AmountIn = nil }, ErrInvalidAmount},
			{"multi-hop path", func(p *SwapExactInParams) { p.Path = []common.Address{tokenLo, tokenHi, tokenC} }, ErrUnsupportedPath},
			{"single token path", func(p *SwapExactInParams) { p.Path = []common.Address{tokenLo} }, ErrUnsupportedPath},
			{"identical tokens", func(p *SwapExactInParams) { p.Path = []common.Address{tokenLo, tokenLo} }, ErrInvalidAssetPair},
			{"unknown pair", func(p *SwapExactInParams) { p.Path = []common.Address{tokenLo, tokenC} }, ErrPairNotFound},
			{"zero recipient", func(p *SwapExactInParams) { p.To = common.Address{} }, ErrInvalidAddress},
			{"unfunded sender", func(p *SwapExactInParams) { p.Sender = carol }, ErrCustody},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				f := newFixture(t)
				f.deposit(t, alice, tokenLo, tokenHi, 10000, 10000)
				snapshot := f.engine.Snapshot()
				ledger := f.ledgerState()

				p := f.swapParams(bob, tokenLo, tokenHi, 1000)
				tc.mutate(&p)
				_, err := f.engine.SwapExactTokensForTokens(ctx, p)
				assert.ErrorIs(t, err, tc.wantErr)

				assert.Equal(t, snapshot, f.engine.Snapshot())
				assert.Equal(t, ledger, f.ledgerState())
				assert.Len(t, f.events.all(), 1)
			})
		}
	})

	t.Run("GateSeesPricedSwap", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, tokenLo, tokenHi, 10000, 10000)

		var gotIn, gotOut common.Address
		var gotAmountIn, gotAmountOut *uint256.Int
		require.NoError(t, f.engine.SetApprovalGate(approval.GateFunc(func(_ context.Context, tokenIn, tokenOut common.Address, amountIn, amountOut *uint256.Int) (bool, error) {
			gotIn, gotOut, gotAmountIn, gotAmountOut = tokenIn, tokenOut, amountIn, amountOut
			return true, nil
		})))

		_, err := f.engine.SwapExactTokensForTokens(ctx, f.swapParams(bob, tokenHi, tokenLo, 1000))
		require.NoError(t, err)
		assert.Equal(t, tokenHi, gotIn)
		assert.Equal(t, tokenLo, gotOut)
		assert.Equal(t, u(1000), gotAmountIn)
		assert.Equal(t, u(906), gotAmountOut)
	})

	t.Run("GateError", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, tokenLo, tokenHi, 10000, 10000)
		ledger := f.ledgerState()

		gateErr := errors.New("risk service unavailable")
		require.NoError(t, f.engine.SetApprovalGate(approval.GateFunc(func(context.Context, common.Address, common.Address, *uint256.Int, *uint256.Int) (bool, error) {
			return false, gateErr
		})))

		_, err := f.engine.SwapExactTokensForTokens(ctx, f.swapParams(bob, tokenLo, tokenHi, 1000))
		assert.ErrorIs(t, err, ErrSwapNotApproved)
		assert.ErrorIs(t, err, gateErr)
		assert.Equal(t, ledger, f.ledgerState())
	})

	t.Run("SlippageCheckedBeforeGate", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, tokenLo, tokenHi, 10000, 10000)

		calls := 0
		require.NoError(t, f.engine.SetApprovalGate(approval.GateFunc(func(context.Context, common.Address, common.Address, *uint256.Int, *uint256.Int) (bool, error) {
			calls++
			return true, nil
		})))

		p := f.swapParams(bob, tokenLo, tokenHi, 1000)
		p.AmountOutMin = u(907)
		_, err := f.engine.SwapExactTokensForTokens(ctx, p)
		assert.ErrorIs(t, err, ErrInsufficientOutputAmount)
		assert.Zero(t, calls, "a swap failing its minimum output never reaches the gate")

		p.AmountOutMin = u(906)
		_, err = f.engine.SwapExactTokensForTokens(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("PushFails_InputIsRefunded", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, tokenLo, tokenHi, 10000, 10000)
		snapshot := f.engine.Snapshot()
		ledger := f.ledgerState()

		f.custodian.failPushToken = tokenHi
		_, err := f.engine.SwapExactTokensForTokens(ctx, f.swapParams(bob, tokenLo, tokenHi, 1000))
		require.ErrorIs(t, err, ErrCustody)

		var custodyErr *CustodyError
		require.ErrorAs(t, err, &custodyErr)
		assert.Equal(t, "push", custodyErr.Op)
		assert.Equal(t, bob, custodyErr.Account)

		assert.Equal(t, snapshot, f.engine.Snapshot())
		assert.Equal(t, ledger, f.ledgerState())
	})

	t.Run("ProductNeverDecreases", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, tokenLo, tokenHi, 5_000_000, 7_000_000)

		rng := rand.New(rand.NewSource(42))
		pool := f.engine.AllPairs()[0]
		for i := 0; i < 300; i++ {
			in, out := tokenLo, tokenHi
			if rng.Intn(2) == 0 {
				in, out = out, in
			}
			res, err := f.engine.SwapExactTokensForTokens(ctx, f.swapParams(bob, in, out, uint64(rng.Intn(500_000)+1000)))
			require.NoError(t, err)

			next, _ := f.engine.Pool(res.Pair)
			assert.Equal(t, 1, product(next).Cmp(product(pool)), "iteration %d", i)
			pool = next
		}
	})
}

func TestSwapTokensForExactTokens(t *testing.T) {
	ctx := context.Background()

	params := func(f *fixture, amountOut, amountInMax uint64) SwapExactOutParams {
		return SwapExactOutParams{
			AmountOut:   u(amountOut),
			AmountInMax: u(amountInMax),
			Path:        []common.Address{tokenLo, tokenHi},
			Sender:      bob,
			To:          carol,
			Deadline:    f.deadline,
		}
	}

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, tokenLo, tokenHi, 10000, 10000)

		res, err := f.engine.SwapTokensForExactTokens(ctx, params(f, 906, 1000))
		require.NoError(t, err)
		assert.Equal(t, u(1000), res.AmountIn)
		assert.Equal(t, u(906), res.AmountOut)
		assert.Equal(t, u(906), f.ledger.BalanceOf(tokenHi, carol))

		pool, _ := f.engine.Pool(res.Pair)
		assert.Equal(t, u(11000), pool.Reserve0)
		assert.Equal(t, u(9094), pool.Reserve1)
	})

	t.Run("Rejections", func(t *testing.T) {
		testCases := []struct {
			name      string
			amountOut uint64
			max       uint64
			wantErr   error
		}{
			{"above maximum input", 906, 999, ErrExcessiveInputAmount},
			{"drains reserve", 10000, 1_000_000_000, ErrInsufficientLiquidity},
			{"zero output", 0, 1000, ErrInsufficientOutputAmount},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				f := newFixture(t)
				f.deposit(t, alice, tokenLo, tokenHi, 10000, 10000)
				snapshot := f.engine.Snapshot()
				ledger := f.ledgerState()

				_, err := f.engine.SwapTokensForExactTokens(ctx, params(f, tc.amountOut, tc.max))
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, snapshot, f.engine.Snapshot())
				assert.Equal(t, ledger, f.ledgerState())
			})
		}
	})

	t.Run("SlippageCheckedBeforeGate", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, tokenLo, tokenHi, 10000, 10000)

		calls := 0
		require.NoError(t, f.engine.SetApprovalGate(approval.GateFunc(func(context.Context, common.Address, common.Address, *uint256.Int, *uint256.Int) (bool, error) {
			calls++
			return true, nil
		})))

		_, err := f.engine.SwapTokensForExactTokens(ctx, params(f, 906, 999))
		assert.ErrorIs(t, err, ErrExcessiveInputAmount)
		assert.Zero(t, calls, "a swap exceeding its maximum input never reaches the gate")

		_, err = f.engine.SwapTokensForExactTokens(ctx, params(f, 906, 1000))
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("RoundTripsWithExactIn", func(t *testing.T) {
		f := newFixture(t)
		f.deposit(t, alice, tokenLo, tokenHi, 3_000_000, 1_000_000)

		rng := rand.New(rand.NewSource(3))
		for i := 0; i < 100; i++ {
			want := uint64(rng.Intn(10_000) + 1)
			quoted, err := f.engine.GetAmountIn(u(want), []common.Address{tokenLo, tokenHi})
			require.NoError(t, err)

			// Paying the quoted input in an exact-in swap yields at least the requested output.
			out, err := f.engine.GetAmountOut(quoted, []common.Address{tokenLo, tokenHi})
			require.NoError(t, err)
			assert.False(t, out.Lt(u(want)), "iteration %d: %s < %d", i, out.Dec(), want)

			res, err := f.engine.SwapTokensForExactTokens(ctx, params(f, want, quoted.Uint64()))
			require.NoError(t, err)
			assert.Equal(t, quoted, res.AmountIn)
		}
	})
}
