package tokenpoolregistry

import (
	"slices"

	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
	"github.com/ethereum/go-ethereum/common"
)

// TokenPoolRegistryView provides a complete snapshot of the graph's core data
// structures for consumers who run their own traversal.
//
// Tokens and Pools are node and pool tables; Adjacency[i] lists the edges
// leaving Tokens[i]; EdgeTargets[e] is the token index edge e points to and
// EdgePools[e] the pool indices that connect the two tokens.
type TokenPoolRegistryView struct {
	Tokens      []common.Address       `json:"tokens"`
	Pools       []poolregistry.PairKey `json:"pools"`
	Adjacency   [][]int                `json:"adjacency"`
	EdgeTargets []int                  `json:"edgeTargets"`
	EdgePools   [][]int                `json:"edgePools"`
}

// TokenPoolRegistry is a non-thread-safe graph of which tokens are connected by
// which pools. Pools are never removed, so the graph only grows.
type TokenPoolRegistry struct {
	tokenToIndex map[common.Address]int
	poolToIndex  map[poolregistry.PairKey]int

	tokens      []common.Address
	pools       []poolregistry.PairKey
	adjacency   [][]int
	edgeTargets []int
	edgePools   [][]int
}

// NewTokenPoolRegistry creates a new, empty registry.
func NewTokenPoolRegistry() *TokenPoolRegistry {
	return &TokenPoolRegistry{
		tokenToIndex: make(map[common.Address]int),
		poolToIndex:  make(map[poolregistry.PairKey]int),
		tokens:       make([]common.Address, 0),
		pools:        make([]poolregistry.PairKey, 0),
		adjacency:    make([][]int, 0),
		edgeTargets:  make([]int, 0),
		edgePools:    make([][]int, 0),
	}
}

// NewTokenPoolRegistryFromView reconstructs a registry from a view snapshot,
// copying all slice data so the registry owns its memory.
func NewTokenPoolRegistryFromView(view *TokenPoolRegistryView) *TokenPoolRegistry {
	v := copyView(view)
	r := &TokenPoolRegistry{
		tokenToIndex: make(map[common.Address]int, len(v.Tokens)),
		poolToIndex:  make(map[poolregistry.PairKey]int, len(v.Pools)),
		tokens:       v.Tokens,
		pools:        v.Pools,
		adjacency:    v.Adjacency,
		edgeTargets:  v.EdgeTargets,
		edgePools:    v.EdgePools,
	}
	for i, token := range r.tokens {
		r.tokenToIndex[token] = i
	}
	for i, pool := range r.pools {
		r.poolToIndex[pool] = i
	}
	return r
}

func (r *TokenPoolRegistry) tokenIndex(token common.Address) int {
	index, exists := r.tokenToIndex[token]
	if !exists {
		index = len(r.tokens)
		r.tokens = append(r.tokens, token)
		r.tokenToIndex[token] = index
		r.adjacency = append(r.adjacency, nil)
	}
	return index
}

// addEdge creates or updates the directed edge from -> to and associates pool with it.
func (r *TokenPoolRegistry) addEdge(from, to common.Address, pool poolregistry.PairKey) {
	fromIndex := r.tokenIndex(from)
	toIndex := r.tokenIndex(to)
	poolIndex, exists := r.poolToIndex[pool]
	if !exists {
		poolIndex = len(r.pools)
		r.pools = append(r.pools, pool)
		r.poolToIndex[pool] = poolIndex
	}

	for _, edgeIndex := range r.adjacency[fromIndex] {
		if r.edgeTargets[edgeIndex] == toIndex {
			for _, existing := range r.edgePools[edgeIndex] {
				if existing == poolIndex {
					return
				}
			}
			r.edgePools[edgeIndex] = append(r.edgePools[edgeIndex], poolIndex)
			return
		}
	}

	newEdgeIndex := len(r.edgeTargets)
	r.edgeTargets = append(r.edgeTargets, toIndex)
	r.edgePools = append(r.edgePools, []int{poolIndex})
	r.adjacency[fromIndex] = append(r.adjacency[fromIndex], newEdgeIndex)
}

// add connects every pair of tokens in the pool in both directions.
func (r *TokenPoolRegistry) add(tokens []common.Address, pool poolregistry.PairKey) {
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			r.addEdge(tokens[i], tokens[j], pool)
			r.addEdge(tokens[j], tokens[i], pool)
		}
	}
}

func (r *TokenPoolRegistry) hasPool(pool poolregistry.PairKey) bool {
	_, ok := r.poolToIndex[pool]
	return ok
}

// poolsForToken returns the pools containing token, ordered by when they were
// first registered.
func (r *TokenPoolRegistry) poolsForToken(token common.Address) []poolregistry.PairKey {
	tokenIndex, exists := r.tokenToIndex[token]
	if !exists {
		return nil
	}

	seen := make(map[int]struct{})
	var poolIndices []int
	for _, edgeIndex := range r.adjacency[tokenIndex] {
		for _, poolIndex := range r.edgePools[edgeIndex] {
			if _, dup := seen[poolIndex]; dup {
				continue
			}
			seen[poolIndex] = struct{}{}
			poolIndices = append(poolIndices, poolIndex)
		}
	}
	if len(poolIndices) == 0 {
		return nil
	}

	slices.Sort(poolIndices)
	keys := make([]poolregistry.PairKey, len(poolIndices))
	for i, poolIndex := range poolIndices {
		keys[i] = r.pools[poolIndex]
	}
	return keys
}

// neighbors returns the tokens reachable from token through a single pool.
func (r *TokenPoolRegistry) neighbors(token common.Address) []common.Address {
	tokenIndex, exists := r.tokenToIndex[token]
	if !exists {
		return nil
	}
	edges := r.adjacency[tokenIndex]
	if len(edges) == 0 {
		return nil
	}
	out := make([]common.Address, 0, len(edges))
	for _, edgeIndex := range edges {
		out = append(out, r.tokens[r.edgeTargets[edgeIndex]])
	}
	return out
}

// view returns a deep copy of the graph's core data structures.
func (r *TokenPoolRegistry) view() *TokenPoolRegistryView {
	return copyView(&TokenPoolRegistryView{
		Tokens:      r.tokens,
		Pools:       r.pools,
		Adjacency:   r.adjacency,
		EdgeTargets: r.edgeTargets,
		EdgePools:   r.edgePools,
	})
}

func copyView(v *TokenPoolRegistryView) *TokenPoolRegistryView {
	if v == nil {
		return &TokenPoolRegistryView{}
	}
	out := &TokenPoolRegistryView{
		Tokens:      append(make([]common.Address, 0, len(v.Tokens)), v.Tokens...),
		Pools:       append(make([]poolregistry.PairKey, 0, len(v.Pools)), v.Pools...),
		Adjacency:   make([][]int, len(v.Adjacency)),
		EdgeTargets: append(make([]int, 0, len(v.EdgeTargets)), v.EdgeTargets...),
		EdgePools:   make([][]int, len(v.EdgePools)),
	}
	for i, adj := range v.Adjacency {
		if adj != nil {
			out.Adjacency[i] = append(make([]int, 0, len(adj)), adj...)
		}
	}
	for i, pools := range v.EdgePools {
		if pools != nil {
			out.EdgePools[i] = append(make([]int, 0, len(pools)), pools...)
		}
	}
	return out
}
