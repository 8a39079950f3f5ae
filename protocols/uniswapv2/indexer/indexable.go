package indexer

import (
	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
	uniswapv2 "github.com/defistate/defistate-amm-go/protocols/uniswapv2"
	"github.com/ethereum/go-ethereum/common"
)

// Indexer builds IndexedUniswapV2 views over pool snapshots.
type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed view from a raw slice of pools.
func (i *Indexer) Index(pools []uniswapv2.Pool) IndexedUniswapV2 {
	return NewIndexableUniswapV2System(pools)
}

// IndexableUniswapV2System provides fast, indexed access to a pool snapshot.
// It is immutable after construction and safe for concurrent reads.
type IndexableUniswapV2System struct {
	byKey   map[poolregistry.PairKey]uniswapv2.Pool
	byToken map[common.Address][]poolregistry.PairKey
	all     []uniswapv2.Pool
}

// NewIndexableUniswapV2System creates a new indexed view. The input order is kept by All.
func NewIndexableUniswapV2System(pools []uniswapv2.Pool) *IndexableUniswapV2System {
	byKey := make(map[poolregistry.PairKey]uniswapv2.Pool, len(pools))
	byToken := make(map[common.Address][]poolregistry.PairKey)

	for _, p := range pools {
		if _, dup := byKey[p.Key]; !dup {
			byToken[p.Token0] = append(byToken[p.Token0], p.Key)
			byToken[p.Token1] = append(byToken[p.Token1], p.Key)
		}
		byKey[p.Key] = p
	}

	all := make([]uniswapv2.Pool, len(pools))
	copy(all, pools)

	return &IndexableUniswapV2System{
		byKey:   byKey,
		byToken: byToken,
		all:     all,
	}
}

// GetByKey retrieves a pool by its pair key.
func (ius *IndexableUniswapV2System) GetByKey(key poolregistry.PairKey) (uniswapv2.Pool, bool) {
	p, ok := ius.byKey[key]
	return p, ok
}

// GetByTokens retrieves the pool for two tokens given in either order.
func (ius *IndexableUniswapV2System) GetByTokens(tokenA, tokenB common.Address) (uniswapv2.Pool, bool) {
	key, err := poolregistry.NewPairKey(tokenA, tokenB)
	if err != nil {
		return uniswapv2.Pool{}, false
	}
	return ius.GetByKey(key)
}

// ForToken returns every pool that contains token, in index order.
func (ius *IndexableUniswapV2System) ForToken(token common.Address) []uniswapv2.Pool {
	keys := ius.byToken[token]
	if len(keys) == 0 {
		return nil
	}
	pools := make([]uniswapv2.Pool, 0, len(keys))
	for _, key := range keys {
		pools = append(pools, ius.byKey[key])
	}
	return pools
}

// All returns a defensive copy of the slice of all pools.
func (ius *IndexableUniswapV2System) All() []uniswapv2.Pool {
	allCopy := make([]uniswapv2.Pool, len(ius.all))
	copy(allCopy, ius.all)
	return allCopy
}
