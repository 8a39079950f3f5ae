package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/defistate/defistate-amm-go/approval"
	"github.com/defistate/defistate-amm-go/custody"
	"github.com/defistate/defistate-amm-go/logging"
	"github.com/defistate/defistate-amm-go/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr       = "127.0.0.1:8545"
	DefaultMetricsAddr      = "127.0.0.1:9100"
	DefaultMinimumLiquidity = "1000"
	DefaultStreamBufferSize = 256
)

// ServerConfig is the on-disk configuration of the AMM server.
//
// Token references in Genesis and Approval accept either a registered symbol
// or a hex address. Amounts are decimal strings in the token's display units.
//
// AllowedOrigins lists the browser origins accepted for websocket
// connections. Empty allows localhost only.
type ServerConfig struct {
	ListenAddr       string         `yaml:"listen_addr"`
	MetricsAddr      string         `yaml:"metrics_addr"`
	AllowedOrigins   []string       `yaml:"allowed_origins"`
	Log              logging.Config `yaml:"log"`
	MinimumLiquidity string         `yaml:"minimum_liquidity"`
	Escrow           string         `yaml:"escrow"`
	StreamBufferSize uint           `yaml:"stream_buffer_size"`
	Tokens           []TokenConfig  `yaml:"tokens"`
	Genesis          []GenesisEntry `yaml:"genesis"`
	Approval         ApprovalConfig `yaml:"approval"`
}

type TokenConfig struct {
	Address  string `yaml:"address"`
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

// GenesisEntry funds one account in the custody ledger at startup.
type GenesisEntry struct {
	Account  string            `yaml:"account"`
	Balances map[string]string `yaml:"balances"`
}

type ApprovalConfig struct {
	BlockedTokens []string          `yaml:"blocked_tokens"`
	MaxAmountIn   map[string]string `yaml:"max_amount_in"`
	MaxAmountOut  map[string]string `yaml:"max_amount_out"`
}

// Credit is a resolved genesis balance.
type Credit struct {
	Token   common.Address
	Account common.Address
	Amount  *uint256.Int
}

// LoadConfig reads a configuration file from the given path, applies defaults
// and validates the result.
func LoadConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration data.
func Parse(data []byte) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	if c.MinimumLiquidity == "" {
		c.MinimumLiquidity = DefaultMinimumLiquidity
	}
	if c.StreamBufferSize == 0 {
		c.StreamBufferSize = DefaultStreamBufferSize
	}
}

// Validate resolves every token, address and amount once so that a bad file
// fails at startup rather than on first use.
func (c *ServerConfig) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("config: listen_addr cannot be empty")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.MinLiquidity(); err != nil {
		return err
	}
	if _, err := c.EscrowAddress(); err != nil {
		return err
	}
	reg, err := c.TokenRegistry()
	if err != nil {
		return err
	}
	if _, err := c.GenesisCredits(reg); err != nil {
		return err
	}
	if _, err := c.Policy(reg); err != nil {
		return err
	}
	return nil
}

// MinLiquidity parses the minimum share supply as a base-unit integer.
func (c *ServerConfig) MinLiquidity() (*uint256.Int, error) {
	v, err := uint256.FromDecimal(c.MinimumLiquidity)
	if err != nil {
		return nil, fmt.Errorf("config: minimum_liquidity %q: %w", c.MinimumLiquidity, err)
	}
	if v.IsZero() {
		return nil, errors.New("config: minimum_liquidity must be positive")
	}
	return v, nil
}

// EscrowAddress returns the configured escrow account, or custody.DefaultEscrow.
func (c *ServerConfig) EscrowAddress() (common.Address, error) {
	if c.Escrow == "" {
		return custody.DefaultEscrow, nil
	}
	return parseAddress("escrow", c.Escrow)
}

// TokenRegistry builds the token registry from the tokens section.
func (c *ServerConfig) TokenRegistry() (*tokenregistry.Registry, error) {
	tokens := make([]tokenregistry.Token, 0, len(c.Tokens))
	for i, t := range c.Tokens {
		address, err := parseAddress(fmt.Sprintf("tokens[%d].address", i), t.Address)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tokenregistry.Token{
			Address:  address,
			Name:     t.Name,
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
		})
	}
	reg, err := tokenregistry.NewRegistry(tokens)
	if err != nil {
		return nil, fmt.Errorf("config: tokens: %w", err)
	}
	return reg, nil
}

// GenesisCredits resolves the genesis section into ledger credits.
func (c *ServerConfig) GenesisCredits(reg *tokenregistry.Registry) ([]Credit, error) {
	var credits []Credit
	for i, entry := range c.Genesis {
		account, err := parseAddress(fmt.Sprintf("genesis[%d].account", i), entry.Account)
		if err != nil {
			return nil, err
		}
		for ref, amount := range entry.Balances {
			token, v, err := resolveAmount(reg, ref, amount)
			if err != nil {
				return nil, fmt.Errorf("config: genesis[%d]: %w", i, err)
			}
			credits = append(credits, Credit{Token: token, Account: account, Amount: v})
		}
	}
	return credits, nil
}

// Policy converts the approval section into an approval.PolicyConfig.
func (c *ServerConfig) Policy(reg *tokenregistry.Registry) (approval.PolicyConfig, error) {
	policy := approval.PolicyConfig{
		MaxAmountIn:  make(map[common.Address]*uint256.Int, len(c.Approval.MaxAmountIn)),
		MaxAmountOut: make(map[common.Address]*uint256.Int, len(c.Approval.MaxAmountOut)),
	}
	for _, ref := range c.Approval.BlockedTokens {
		t, err := reg.Resolve(ref)
		if err != nil {
			return approval.PolicyConfig{}, fmt.Errorf("config: approval.blocked_tokens: %w", err)
		}
		policy.BlockedTokens = append(policy.BlockedTokens, t.Address)
	}
	for ref, amount := range c.Approval.MaxAmountIn {
		token, v, err := resolveAmount(reg, ref, amount)
		if err != nil {
			return approval.PolicyConfig{}, fmt.Errorf("config: approval.max_amount_in: %w", err)
		}
		policy.MaxAmountIn[token] = v
	}
	for ref, amount := range c.Approval.MaxAmountOut {
		token, v, err := resolveAmount(reg, ref, amount)
		if err != nil {
			return approval.PolicyConfig{}, fmt.Errorf("config: approval.max_amount_out: %w", err)
		}
		policy.MaxAmountOut[token] = v
	}
	return policy, nil
}

func resolveAmount(reg *tokenregistry.Registry, ref, amount string) (common.Address, *uint256.Int, error) {
	t, err := reg.Resolve(ref)
	if err != nil {
		return common.Address{}, nil, err
	}
	v, err := tokenregistry.ParseAmount(amount, t.Decimals)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("%s: %w", t.Symbol, err)
	}
	return t.Address, v, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("config: %s %q is not a hex address", field, s)
	}
	address := common.HexToAddress(s)
	if address == (common.Address{}) {
		return common.Address{}, fmt.Errorf("config: %s cannot be the zero address", field)
	}
	return address, nil
}
