package indexer

import (
	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
)

// IndexedUniswapV2 defines the methods for accessing indexed pool data.
type IndexedUniswapV2 interface {
	GetByKey(key poolregistry.PairKey) (uniswapv2.Pool, bool)
	GetByTokens(tokenA, tokenB common.Address) (uniswapv2.Pool, bool)
	ForToken(token common.Address) []uniswapv2.Pool
	All() []uniswapv2.Pool
}
