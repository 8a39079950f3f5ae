package engine

import (
	"errors"
	"fmt"

	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv2/calculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Errors detected by the engine itself.
var (
	ErrExpired                      = errors.New("expired")
	ErrPairNotFound                 = errors.New("pair not found")
	ErrInsufficientLiquidityBalance = errors.New("insufficient liquidity balance")
	ErrSwapNotApproved              = errors.New("swap not approved")
	ErrUnsupportedPath              = errors.New("unsupported path")
	ErrExcessiveInputAmount         = errors.New("excessive input amount")
	ErrInvalidAddress               = errors.New("invalid address")
	ErrCustody                      = errors.New("custody failure")
	ErrInvalidGate                  = errors.New("invalid approval gate")
)

// Errors raised by the packages the engine delegates to, re-exported so callers
// only need this package for errors.Is checks.
var (
	ErrInvalidAssetPair             = poolregistry.ErrInvalidAssetPair
	ErrLocked                       = uniswapv2.ErrLocked
	ErrInvalidAmount                = calculator.ErrInvalidAmount
	ErrInsufficientAmount           = calculator.ErrInsufficientAmount
	ErrInsufficientAmounts          = calculator.ErrInsufficientAmounts
	ErrInsufficientLiquidity        = calculator.ErrInsufficientLiquidity
	ErrInsufficientLiquidityAmounts = calculator.ErrInsufficientLiquidityAmounts
	ErrInsufficientInputAmount      = calculator.ErrInsufficientInputAmount
	ErrInsufficientOutputAmount     = calculator.ErrInsufficientOutputAmount
	ErrDivisionByZero               = calculator.ErrDivisionByZero
	ErrOverflow                     = calculator.ErrOverflow
	ErrK                            = calculator.ErrK
)

// CustodyError is returned when the custodian fails to move assets.
// It matches both ErrCustody and the custodian's own error with errors.Is.
type CustodyError struct {
	// Op is "pull" or "push".
	Op      string
	Token   common.Address
	Account common.Address
	Amount  *uint256.Int
	Err     error
}

func (e *CustodyError) Error() string {
	return fmt.Sprintf("custody %s of %s %s for %s failed: %v", e.Op, e.Amount.Dec(), e.Token.Hex(), e.Account.Hex(), e.Err)
}

// Unwrap allows the error to be inspected with errors.Is and errors.As.
func (e *CustodyError) Unwrap() []error {
	return []error{ErrCustody, e.Err}
}

// resultLabels maps errors to the "result" label of the operation metrics.
// The first match wins.
var resultLabels = []struct {
	err   error
	label string
}{
	{ErrExpired, "expired"},
	{ErrInvalidAssetPair, "invalid_pair"},
	{ErrInvalidAddress, "invalid_address"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrUnsupportedPath, "unsupported_path"},
	{ErrLocked, "locked"},
	{ErrPairNotFound, "pair_not_found"},
	{ErrInsufficientLiquidityBalance, "insufficient_balance"},
	{ErrInsufficientOutputAmount, "slippage"},
	{ErrExcessiveInputAmount, "slippage"},
	{ErrInsufficientAmounts, "slippage"},
	{ErrSwapNotApproved, "not_approved"},
	{ErrCustody, "custody"},
	{ErrK, "invariant"},
	{ErrOverflow, "overflow"},
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	for _, rl := range resultLabels {
		if errors.Is(err, rl.err) {
			return rl.label
		}
	}
	return "rejected"
}
