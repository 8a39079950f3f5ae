package custody

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when an account cannot cover a transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidTransfer is returned for nil amounts or zero addresses.
	ErrInvalidTransfer = errors.New("invalid transfer")
)

// DefaultEscrow is the account that holds pooled assets when none is configured.
var DefaultEscrow = common.HexToAddress("0x00000000000000000000000000000000000a3300")

type balanceKey struct {
	token   common.Address
	account common.Address
}

// Ledger is an in-memory asset ledger with a single escrow account that holds
// everything deposited into pools. Each call is atomic: it either moves the
// full amount or changes nothing.
type Ledger struct {
	mu       sync.RWMutex
	escrow   common.Address
	balances map[balanceKey]*uint256.Int
}

// NewLedger creates an empty ledger. A zero escrow address selects DefaultEscrow.
func NewLedger(escrow common.Address) *Ledger {
	if escrow == (common.Address{}) {
		escrow = DefaultEscrow
	}
	return &Ledger{
		escrow:   escrow,
		balances: make(map[balanceKey]*uint256.Int),
	}
}

// Escrow returns the account that holds pooled assets.
func (l *Ledger) Escrow() common.Address {
	return l.escrow
}

// Credit mints amount of token into account. It is used to seed balances.
func (l *Ledger) Credit(token, account common.Address, amount *uint256.Int) error {
	if err := validTransfer(token, account, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	k := balanceKey{token: token, account: account}
	next, overflow := new(uint256.Int).AddOverflow(l.balanceLocked(k), amount)
	if overflow {
		return fmt.Errorf("%w: crediting %s overflows %s balance", ErrInvalidTransfer, amount.Dec(), account.Hex())
	}
	l.balances[k] = next
	return nil
}

// Pull moves amount of token from an account into escrow.
func (l *Ledger) Pull(ctx context.Context, token, from common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Transfer(token, from, l.escrow, amount)
}

// Push moves amount of token from escrow to an account.
func (l *Ledger) Push(ctx context.Context, token, to common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Transfer(token, l.escrow, to, amount)
}

// Transfer moves amount of token between two accounts.
func (l *Ledger) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	if err := validTransfer(token, from, amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: zero recipient", ErrInvalidTransfer)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fromKey := balanceKey{token: token, account: from}
	toKey := balanceKey{token: token, account: to}

	balance := l.balanceLocked(fromKey)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), balance.Dec(), token.Hex(), amount.Dec())
	}
	if from == to {
		return nil
	}
	credited, overflow := new(uint256.Int).AddOverflow(l.balanceLocked(toKey), amount)
	if overflow {
		return fmt.Errorf("%w: transfer overflows %s balance", ErrInvalidTransfer, to.Hex())
	}

	l.setLocked(fromKey, new(uint256.Int).Sub(balance, amount))
	l.setLocked(toKey, credited)
	return nil
}

// BalanceOf returns a copy of account's balance of token.
func (l *Ledger) BalanceOf(token, account common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(balanceKey{token: token, account: account}).Clone()
}

// Balances returns every non-zero balance of account keyed by token.
func (l *Ledger) Balances(account common.Address) map[common.Address]*uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[common.Address]*uint256.Int)
	for k, v := range l.balances {
		if k.account == account {
			out[k.token] = v.Clone()
		}
	}
	return out
}

func (l *Ledger) balanceLocked(k balanceKey) *uint256.Int {
	if b, ok := l.balances[k]; ok {
		return b
	}
	return new(uint256.Int)
}

func (l *Ledger) setLocked(k balanceKey, v *uint256.Int) {
	if v.IsZero() {
		delete(l.balances, k)
		return
	}
	l.balances[k] = v
}

func validTransfer(token, account common.Address, amount *uint256.Int) error {
	switch {
	case amount == nil:
		return fmt.Errorf("%w: nil amount", ErrInvalidTransfer)
	case token == (common.Address{}):
		return fmt.Errorf("%w: zero token", ErrInvalidTransfer)
	case account == (common.Address{}):
		return fmt.Errorf("%w: zero account", ErrInvalidTransfer)
	}
	return nil
}
