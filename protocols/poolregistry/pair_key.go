package poolregistry

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidAssetPair is returned when a pair is built from a zero address or
	// from two identical tokens.
	ErrInvalidAssetPair = errors.New("invalid asset pair")
)

// --- PairKey Implementation ---

// PairKey is the fixed-size 32-byte identifier of a pool for an unordered pair of tokens.
//
// Derivation:
//
//	key = keccak256(token0 ‖ token1)
//
// where token0 < token1 by byte comparison. The key is therefore identical for
// (A, B) and (B, A), which is what lets every operation resolve the same pool
// regardless of the order the caller supplied the tokens in.
type PairKey [32]byte

// Bytes returns the raw underlying byte slice.
func (k PairKey) Bytes() []byte {
	return k[:]
}

// String returns the hex string representation of the key, prefixed with "0x".
func (k PairKey) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

// IsZero reports whether the key is the zero value.
func (k PairKey) IsZero() bool {
	return k == PairKey{}
}

// MarshalJSON serializes the key as a hex string.
func (k PairKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses a hex string into the key.
//
// The decoded value must be exactly 32 bytes; an optional "0x" prefix is accepted.
func (k *PairKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimPrefix(s, "0x")

	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != 32 {
		return errors.New("pair key must be 32 bytes")
	}

	*k = PairKey{}
	copy(k[:], b)
	return nil
}

// SortTokens returns the two tokens in canonical order (token0 < token1).
//
// It fails with ErrInvalidAssetPair if either token is the zero address or if
// both tokens are the same.
func SortTokens(tokenA, tokenB common.Address) (token0, token1 common.Address, err error) {
	if tokenA == (common.Address{}) || tokenB == (common.Address{}) {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: zero address", ErrInvalidAssetPair)
	}
	switch bytes.Compare(tokenA[:], tokenB[:]) {
	case -1:
		return tokenA, tokenB, nil
	case 1:
		return tokenB, tokenA, nil
	default:
		return common.Address{}, common.Address{}, fmt.Errorf("%w: identical addresses %s", ErrInvalidAssetPair, tokenA.Hex())
	}
}

// NewPairKey derives the order-independent key for two tokens.
func NewPairKey(tokenA, tokenB common.Address) (PairKey, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return PairKey{}, err
	}
	return PairKeyFromSorted(token0, token1), nil
}

// PairKeyFromSorted hashes two tokens that are already in canonical order.
// Callers must have validated the order with SortTokens.
func PairKeyFromSorted(token0, token1 common.Address) PairKey {
	return PairKey(crypto.Keccak256Hash(token0[:], token1[:]))
}
