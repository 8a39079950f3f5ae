package server

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestHash(t *testing.T) {
	base := SwapExactInArgs{
		AmountIn:     uint256.NewInt(10),
		AmountOutMin: uint256.NewInt(9),
		Path:         []common.Address{tokenA, tokenB},
		Sender:       trader,
		To:           trader,
		Deadline:     1_700_000_000,
	}

	testCases := []struct {
		name   string
		mutate func(*SwapExactInArgs)
	}{
		{"amount in", func(a *SwapExactInArgs) { a.AmountIn = uint256.NewInt(11) }},
		{"minimum out", func(a *SwapExactInArgs) { a.AmountOutMin = uint256.NewInt(0) }},
		{"path order", func(a *SwapExactInArgs) { a.Path = []common.Address{tokenB, tokenA} }},
		{"recipient", func(a *SwapExactInArgs) { a.To = tokenA }},
		{"deadline", func(a *SwapExactInArgs) { a.Deadline++ }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			changed := base
			tc.mutate(&changed)
			assert.NotEqual(t, base.Hash(), changed.Hash())
		})
	}

	t.Run("SignatureIsNotHashed", func(t *testing.T) {
		signed := base
		require.NoError(t, signed.Sign(traderKey))
		assert.Equal(t, base.Hash(), signed.Hash())
	})

	t.Run("MethodIsHashed", func(t *testing.T) {
		out := SwapExactOutArgs{
			AmountOut:   base.AmountIn,
			AmountInMax: base.AmountOutMin,
			Path:        base.Path,
			Sender:      base.Sender,
			To:          base.To,
			Deadline:    base.Deadline,
		}
		assert.NotEqual(t, base.Hash(), out.Hash())
	})
}

func TestVerifySender(t *testing.T) {
	hash := crypto.Keccak256Hash([]byte("request"))
	sig, err := signHash(hash, traderKey)
	require.NoError(t, err)

	require.NoError(t, verifySender(hash, sig, trader))

	legacy := append([]byte(nil), sig...)
	legacy[crypto.RecoveryIDOffset] += 27
	assert.NoError(t, verifySender(hash, legacy, trader), "27/28 recovery ids are accepted")

	// The malleable twin (N-s, flipped recovery id) recovers the same key but is refused.
	highS := append([]byte(nil), sig...)
	sVal := new(big.Int).SetBytes(highS[32:64])
	new(big.Int).Sub(crypto.S256().Params().N, sVal).FillBytes(highS[32:64])
	highS[crypto.RecoveryIDOffset] ^= 1
	assert.ErrorIs(t, verifySender(hash, highS, trader), ErrUnauthorized)

	assert.ErrorIs(t, verifySender(hash, sig, tokenA), ErrUnauthorized)
	assert.ErrorIs(t, verifySender(crypto.Keccak256Hash([]byte("other")), sig, trader), ErrUnauthorized)
	assert.ErrorIs(t, verifySender(hash, nil, trader), ErrUnauthorized)
}

func TestReplayGuard(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := newReplayGuard()
	g.now = func() time.Time { return now }

	first := common.HexToHash("0x01")
	second := common.HexToHash("0x02")

	require.NoError(t, g.acquire(first, now.Unix()+10))
	assert.ErrorIs(t, g.acquire(first, now.Unix()+10), ErrReplayed)

	g.release(first)
	require.NoError(t, g.acquire(first, now.Unix()+10))
	require.NoError(t, g.acquire(second, now.Unix()+60))
	assert.Equal(t, 2, g.len())

	now = now.Add(30 * time.Second)
	require.NoError(t, g.acquire(common.HexToHash("0x03"), now.Unix()+10))
	assert.Equal(t, 2, g.len(), "expired entries are pruned")
	assert.ErrorIs(t, g.acquire(second, now.Unix()+60), ErrReplayed)
}
