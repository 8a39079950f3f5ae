package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/defistate/defistate-amm-go/custody"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
listen_addr: ":9000"
log:
  level: debug
escrow: "0x00000000000000000000000000000000000e5c40"
tokens:
  - address: "0x00000000000000000000000000000000000000a1"
    name: Wrapped Ether
    symbol: WETH
    decimals: 18
  - address: "0x00000000000000000000000000000000000000b2"
    name: USD Coin
    symbol: USDC
    decimals: 6
genesis:
  - account: "0x0000000000000000000000000000000000001111"
    balances:
      WETH: "10.5"
      usdc: "25000"
approval:
  blocked_tokens: ["0x00000000000000000000000000000000000000c3"]
  max_amount_in:
    USDC: "1000.25"
`

var (
	weth  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	usdc  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	alice = common.HexToAddress("0x0000000000000000000000000000000000001111")
)

func TestLoadConfig(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(validConfig), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, DefaultMetricsAddr, cfg.MetricsAddr)
		assert.Equal(t, uint(DefaultStreamBufferSize), cfg.StreamBufferSize)
		assert.Equal(t, "debug", cfg.Log.Level)

		minLiquidity, err := cfg.MinLiquidity()
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), minLiquidity.Uint64())

		escrow, err := cfg.EscrowAddress()
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000e5c40"), escrow)

		reg, err := cfg.TokenRegistry()
		require.NoError(t, err)
		assert.Len(t, reg.All(), 2)

		credits, err := cfg.GenesisCredits(reg)
		require.NoError(t, err)
		require.Len(t, credits, 2)
		byToken := make(map[common.Address]string)
		for _, c := range credits {
			assert.Equal(t, alice, c.Account)
			byToken[c.Token] = c.Amount.Dec()
		}
		assert.Equal(t, "10500000000000000000", byToken[weth])
		assert.Equal(t, "25000000000", byToken[usdc])

		policy, err := cfg.Policy(reg)
		require.NoError(t, err)
		assert.Equal(t, []common.Address{common.HexToAddress("0xc3")}, policy.BlockedTokens)
		require.Contains(t, policy.MaxAmountIn, usdc)
		assert.Equal(t, "1000250000", policy.MaxAmountIn[usdc].Dec())
		assert.Empty(t, policy.MaxAmountOut)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("DefaultEscrow", func(t *testing.T) {
		cfg, err := Parse([]byte("tokens: []\n"))
		require.NoError(t, err)
		escrow, err := cfg.EscrowAddress()
		require.NoError(t, err)
		assert.Equal(t, custody.DefaultEscrow, escrow)
	})

	t.Run("DefaultsBindLoopback", func(t *testing.T) {
		cfg, err := Parse([]byte("tokens: []\n"))
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:8545", cfg.ListenAddr)
		assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
		assert.Empty(t, cfg.AllowedOrigins)
	})

	t.Run("AllowedOrigins", func(t *testing.T) {
		cfg, err := Parse([]byte("allowed_origins:\n  - https://app.example.org\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"https://app.example.org"}, cfg.AllowedOrigins)
	})
}

func TestParse_Invalid(t *testing.T) {
	testCases := []struct {
		name   string
		config string
	}{
		{name: "malformed yaml", config: "listen_addr: [unterminated"},
		{name: "unknown log level", config: "log:\n  level: loud\n"},
		{name: "zero minimum liquidity", config: "minimum_liquidity: \"0\"\n"},
		{name: "non numeric minimum liquidity", config: "minimum_liquidity: lots\n"},
		{name: "bad escrow", config: "escrow: nope\n"},
		{name: "zero token address", config: "tokens:\n  - address: \"0x0000000000000000000000000000000000000000\"\n    symbol: ZERO\n"},
		{
			name: "duplicate symbol",
			config: "tokens:\n" +
				"  - {address: \"0x00000000000000000000000000000000000000a1\", symbol: T}\n" +
				"  - {address: \"0x00000000000000000000000000000000000000b2\", symbol: t}\n",
		},
		{name: "unknown genesis token", config: "genesis:\n  - account: \"0x0000000000000000000000000000000000001111\"\n    balances: {DAI: \"1\"}\n"},
		{name: "bad genesis account", config: "genesis:\n  - account: bob\n"},
		{
			name: "too many decimals",
			config: "tokens:\n  - {address: \"0x00000000000000000000000000000000000000b2\", symbol: USDC, decimals: 6}\n" +
				"approval:\n  max_amount_out: {USDC: \"0.0000001\"}\n",
		},
		{name: "unknown blocked token", config: "approval:\n  blocked_tokens: [DAI]\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.config))
			assert.Error(t, err)
		})
	}
}
