package tokenregistry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrUnknownToken is returned when a symbol or address is not registered.
	ErrUnknownToken = errors.New("unknown token")
	// ErrDuplicateToken is returned when two tokens share an address or symbol.
	ErrDuplicateToken = errors.New("duplicate token")
	// ErrInvalidToken is returned for tokens with a zero address or empty symbol.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidAmount is returned when a decimal amount cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Registry provides indexed, read-only access to token metadata.
type Registry struct {
	byAddress map[common.Address]Token
	bySymbol  map[string]Token
	all       []Token
}

// NewRegistry indexes tokens by address and by case-insensitive symbol.
func NewRegistry(tokens []Token) (*Registry, error) {
	r := &Registry{
		byAddress: make(map[common.Address]Token, len(tokens)),
		bySymbol:  make(map[string]Token, len(tokens)),
		all:       make([]Token, 0, len(tokens)),
	}
	for _, t := range tokens {
		if t.Address == (common.Address{}) || t.Symbol == "" {
			return nil, fmt.Errorf("%w: %q at %s", ErrInvalidToken, t.Symbol, t.Address.Hex())
		}
		sym := strings.ToUpper(t.Symbol)
		if _, dup := r.byAddress[t.Address]; dup {
			return nil, fmt.Errorf("%w: address %s", ErrDuplicateToken, t.Address.Hex())
		}
		if _, dup := r.bySymbol[sym]; dup {
			return nil, fmt.Errorf("%w: symbol %s", ErrDuplicateToken, t.Symbol)
		}
		r.byAddress[t.Address] = t
		r.bySymbol[sym] = t
		r.all = append(r.all, t)
	}
	return r, nil
}

// GetByAddress retrieves a token by its address.
func (r *Registry) GetByAddress(address common.Address) (Token, bool) {
	t, ok := r.byAddress[address]
	return t, ok
}

// GetBySymbol retrieves a token by symbol, ignoring case.
func (r *Registry) GetBySymbol(symbol string) (Token, bool) {
	t, ok := r.bySymbol[strings.ToUpper(symbol)]
	return t, ok
}

// Resolve accepts either a registered symbol or a hex address. Unregistered
// addresses resolve to a bare Token with 18 decimals.
func (r *Registry) Resolve(s string) (Token, error) {
	s = strings.TrimSpace(s)
	if t, ok := r.GetBySymbol(s); ok {
		return t, nil
	}
	if common.IsHexAddress(s) {
		address := common.HexToAddress(s)
		if t, ok := r.byAddress[address]; ok {
			return t, nil
		}
		return Token{Address: address, Symbol: address.Hex(), Decimals: 18}, nil
	}
	return Token{}, fmt.Errorf("%w: %q", ErrUnknownToken, s)
}

// Symbol returns the registered symbol for address, or its hex form.
func (r *Registry) Symbol(address common.Address) string {
	if t, ok := r.byAddress[address]; ok {
		return t.Symbol
	}
	return address.Hex()
}

// All returns a defensive copy of every token in registration order.
func (r *Registry) All() []Token {
	allCopy := make([]Token, len(r.all))
	copy(allCopy, r.all)
	return allCopy
}

// FormatAmount renders a base-unit amount as a decimal string using the
// token's decimals, without trailing zeros ("1500000" with 6 decimals is "1.5").
func FormatAmount(amount *uint256.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	digits := amount.Dec()
	if decimals == 0 {
		return digits
	}
	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// ParseAmount converts a decimal string into base units. It rejects more
// fractional digits than the token has.
func ParseAmount(s string, decimals uint8) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, decimals)
	}
	for _, part := range []string{whole, frac} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
			}
		}
	}

	digits := strings.TrimLeft(whole+frac+strings.Repeat("0", int(decimals)-len(frac)), "0")
	if digits == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return amount, nil
}
