package engine

import (
	"context"
	"time"

	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Custodian moves assets between holders and the engine's custody. Each call
// must either move the full amount or fail without effect.
type Custodian interface {
	Pull(ctx context.Context, token, from common.Address, amount *uint256.Int) error
	Push(ctx context.Context, token, to common.Address, amount *uint256.Int) error
}

// ApprovalGate decides whether a fully priced swap may execute. A false result
// or an error rejects the swap.
type ApprovalGate interface {
	Approve(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, amountOut *uint256.Int) (bool, error)
}

// Publisher receives an Event for every committed operation, in sequence
// order. Publish is called while commits are serialized and must not block.
type Publisher interface {
	Publish(Event)
}

// --- Operation parameters and results ---

// AddLiquidityParams describes a deposit. TokenA and TokenB may be given in
// either order; amounts follow the same order.
type AddLiquidityParams struct {
	TokenA         common.Address `json:"tokenA"`
	TokenB         common.Address `json:"tokenB"`
	AmountADesired *uint256.Int   `json:"amountADesired"`
	AmountBDesired *uint256.Int   `json:"amountBDesired"`
	AmountAMin     *uint256.Int   `json:"amountAMin"`
	AmountBMin     *uint256.Int   `json:"amountBMin"`
	// Sender pays the assets; To receives the shares.
	Sender   common.Address `json:"sender"`
	To       common.Address `json:"to"`
	Deadline time.Time      `json:"deadline"`
}

// AddLiquidityResult holds the amounts actually deposited, in the caller's
// token order, and the shares minted to To.
type AddLiquidityResult struct {
	Pair      poolregistry.PairKey `json:"pair"`
	AmountA   *uint256.Int         `json:"amountA"`
	AmountB   *uint256.Int         `json:"amountB"`
	Liquidity *uint256.Int         `json:"liquidity"`
}

// RemoveLiquidityParams describes a withdrawal. Sender burns Liquidity shares
// and To receives the assets.
type RemoveLiquidityParams struct {
	TokenA     common.Address `json:"tokenA"`
	TokenB     common.Address `json:"tokenB"`
	Liquidity  *uint256.Int   `json:"liquidity"`
	AmountAMin *uint256.Int   `json:"amountAMin"`
	AmountBMin *uint256.Int   `json:"amountBMin"`
	Sender     common.Address `json:"sender"`
	To         common.Address `json:"to"`
	Deadline   time.Time      `json:"deadline"`
}

// RemoveLiquidityResult holds the amounts paid to To, in the caller's token order.
type RemoveLiquidityResult struct {
	Pair    poolregistry.PairKey `json:"pair"`
	AmountA *uint256.Int         `json:"amountA"`
	AmountB *uint256.Int         `json:"amountB"`
}

// SwapExactInParams sells exactly AmountIn of Path[0] for at least
// AmountOutMin of Path[1]. Only two-token paths are supported.
type SwapExactInParams struct {
	AmountIn     *uint256.Int     `json:"amountIn"`
	AmountOutMin *uint256.Int     `json:"amountOutMin"`
	Path         []common.Address `json:"path"`
	Sender       common.Address   `json:"sender"`
	To           common.Address   `json:"to"`
	Deadline     time.Time        `json:"deadline"`
}

// SwapExactOutParams buys exactly AmountOut of Path[1] for at most
// AmountInMax of Path[0].
type SwapExactOutParams struct {
	AmountOut   *uint256.Int     `json:"amountOut"`
	AmountInMax *uint256.Int     `json:"amountInMax"`
	Path        []common.Address `json:"path"`
	Sender      common.Address   `json:"sender"`
	To          common.Address   `json:"to"`
	Deadline    time.Time        `json:"deadline"`
}

// SwapResult holds the settled input and output amounts of a swap.
type SwapResult struct {
	Pair      poolregistry.PairKey `json:"pair"`
	AmountIn  *uint256.Int         `json:"amountIn"`
	AmountOut *uint256.Int         `json:"amountOut"`
}

// PairInfo reports a pool's state in the caller's token order. All amounts are
// zero and Exists is false when no pool has been created for the pair.
type PairInfo struct {
	Pair        poolregistry.PairKey `json:"pair"`
	TokenA      common.Address       `json:"tokenA"`
	TokenB      common.Address       `json:"tokenB"`
	ReserveA    *uint256.Int         `json:"reserveA"`
	ReserveB    *uint256.Int         `json:"reserveB"`
	TotalSupply *uint256.Int         `json:"totalSupply"`
	Exists      bool                 `json:"exists"`
}

// --- Events ---

// EventType names the kind of operation an Event records.
type EventType string

const (
	EventDeposit    EventType = "deposit"    // AddLiquidity
	EventWithdrawal EventType = "withdrawal" // RemoveLiquidity
	EventSwap       EventType = "swap"       // either swap direction
)

// Event is the record of one committed operation.
//
// For deposits and withdrawals TokenA/TokenB and AmountA/AmountB follow the
// caller's token order and Liquidity is the share delta. For swaps TokenA is
// the input token and TokenB the output token. Pool is the pool state after
// the operation and Sequence its commit number.
type Event struct {
	Type      EventType            `json:"type"`
	Sequence  uint64               `json:"sequence"`
	Pair      poolregistry.PairKey `json:"pair"`
	TokenA    common.Address       `json:"tokenA"`
	TokenB    common.Address       `json:"tokenB"`
	AmountA   *uint256.Int         `json:"amountA"`
	AmountB   *uint256.Int         `json:"amountB"`
	Liquidity *uint256.Int         `json:"liquidity,omitempty"`
	Sender    common.Address       `json:"sender"`
	To        common.Address       `json:"to"`
	Pool      uniswapv2.Pool       `json:"pool"`
	Timestamp int64                `json:"timestamp"` // unix nanoseconds
}
