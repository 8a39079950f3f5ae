package engine

import (
	"errors"
	"time"

	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMinimumLiquidity is the share floor used when Config.MinimumLiquidity is nil.
var DefaultMinimumLiquidity = uint256.NewInt(1000)

// Config holds the engine's collaborators and parameters.
type Config struct {
	// Store holds pools and share balances. A new empty store is created when nil.
	Store *uniswapv2.PoolStore
	// Custodian moves assets in and out of the pools. Required.
	Custodian Custodian
	// Gate approves every swap before assets move. Required.
	Gate ApprovalGate
	// Publisher receives committed events. Optional.
	Publisher Publisher
	// MinimumLiquidity is the smallest non-zero share supply a pool may have.
	MinimumLiquidity *uint256.Int
	// Clock is used for deadline checks. Defaults to time.Now.
	Clock    func() time.Time
	Registry prometheus.Registerer // Required for metrics.
	Logger   Logger                // Required for logging.
}

// validate checks that required dependencies are present.
func (c *Config) validate() error {
	if c.Custodian == nil {
		return errors.New("config: Custodian cannot be nil")
	}
	if c.Gate == nil {
		return errors.New("config: Gate cannot be nil")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	if c.MinimumLiquidity != nil && c.MinimumLiquidity.IsZero() {
		return errors.New("config: MinimumLiquidity must be positive")
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
