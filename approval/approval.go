package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrInvalidPolicy is returned by NewPolicy for an unusable configuration.
var ErrInvalidPolicy = errors.New("invalid approval policy")

// AllowAll approves every swap.
type AllowAll struct{}

// Approve implements the engine's approval gate.
func (AllowAll) Approve(context.Context, common.Address, common.Address, *uint256.Int, *uint256.Int) (bool, error) {
	return true, nil
}

// DenyAll rejects every swap. Useful for halting trading without touching liquidity.
type DenyAll struct{}

// Approve implements the engine's approval gate.
func (DenyAll) Approve(context.Context, common.Address, common.Address, *uint256.Int, *uint256.Int) (bool, error) {
	return false, nil
}

// GateFunc adapts a plain function to the approval gate interface.
type GateFunc func(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, amountOut *uint256.Int) (bool, error)

// Approve calls f.
func (f GateFunc) Approve(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, amountOut *uint256.Int) (bool, error) {
	return f(ctx, tokenIn, tokenOut, amountIn, amountOut)
}

// PolicyConfig lists the rules a Policy enforces.
type PolicyConfig struct {
	// BlockedTokens may not be swapped in either direction.
	BlockedTokens []common.Address
	// MaxAmountIn caps the input of a single swap per input token.
	MaxAmountIn map[common.Address]*uint256.Int
	// MaxAmountOut caps the output of a single swap per output token.
	MaxAmountOut map[common.Address]*uint256.Int
}

func (c *PolicyConfig) validate() error {
	for _, tk := range c.BlockedTokens {
		if tk == (common.Address{}) {
			return fmt.Errorf("%w: zero address in blocked tokens", ErrInvalidPolicy)
		}
	}
	for tk, v := range c.MaxAmountIn {
		if v == nil {
			return fmt.Errorf("%w: nil max amount in for %s", ErrInvalidPolicy, tk.Hex())
		}
	}
	for tk, v := range c.MaxAmountOut {
		if v == nil {
			return fmt.Errorf("%w: nil max amount out for %s", ErrInvalidPolicy, tk.Hex())
		}
	}
	return nil
}

// Policy is a rule-based approval gate. It is immutable once built; replace the
// whole gate on the engine to change rules.
type Policy struct {
	blocked      map[common.Address]struct{}
	maxAmountIn  map[common.Address]*uint256.Int
	maxAmountOut map[common.Address]*uint256.Int
}

// NewPolicy validates cfg and builds a Policy.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := &Policy{
		blocked:      make(map[common.Address]struct{}, len(cfg.BlockedTokens)),
		maxAmountIn:  make(map[common.Address]*uint256.Int, len(cfg.MaxAmountIn)),
		maxAmountOut: make(map[common.Address]*uint256.Int, len(cfg.MaxAmountOut)),
	}
	for _, tk := range cfg.BlockedTokens {
		p.blocked[tk] = struct{}{}
	}
	for tk, v := range cfg.MaxAmountIn {
		p.maxAmountIn[tk] = v.Clone()
	}
	for tk, v := range cfg.MaxAmountOut {
		p.maxAmountOut[tk] = v.Clone()
	}
	return p, nil
}

// Approve rejects swaps that touch a blocked token or exceed a size cap.
func (p *Policy) Approve(ctx context.Context, tokenIn, tokenOut common.Address, amountIn, amountOut *uint256.Int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, ok := p.blocked[tokenIn]; ok {
		return false, nil
	}
	if _, ok := p.blocked[tokenOut]; ok {
		return false, nil
	}
	if limit, ok := p.maxAmountIn[tokenIn]; ok && amountIn != nil && amountIn.Gt(limit) {
		return false, nil
	}
	if limit, ok := p.maxAmountOut[tokenOut]; ok && amountOut != nil && amountOut.Gt(limit) {
		return false, nil
	}
	return true, nil
}
