package tokenregistry

import "github.com/ethereum/go-ethereum/common"

// Token is the display metadata of an asset the engine trades.
type Token struct {
	Address  common.Address `json:"address" yaml:"address"`
	Name     string         `json:"name" yaml:"name"`
	Symbol   string         `json:"symbol" yaml:"symbol"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
}
