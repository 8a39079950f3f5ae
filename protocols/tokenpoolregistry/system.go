package tokenpoolregistry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
	"github.com/ethereum/go-ethereum/common"
)

// TokenPoolSystem is the concurrency-safe layer over TokenPoolRegistry. Writes
// take a mutex; View is served lock-free from an atomically swapped snapshot.
type TokenPoolSystem struct {
	mu         sync.RWMutex
	registry   *TokenPoolRegistry
	cachedView atomic.Pointer[TokenPoolRegistryView]
}

// NewTokenPoolSystem creates an empty system.
func NewTokenPoolSystem() *TokenPoolSystem {
	s := &TokenPoolSystem{
		registry: NewTokenPoolRegistry(),
	}
	s.cachedView.Store(s.registry.view())
	return s
}

// NewTokenPoolSystemFromView restores a system from a snapshot view.
func NewTokenPoolSystemFromView(view *TokenPoolRegistryView) *TokenPoolSystem {
	s := &TokenPoolSystem{
		registry: NewTokenPoolRegistryFromView(view),
	}
	s.cachedView.Store(s.registry.view())
	return s
}

// updateCachedView MUST be called with s.mu held for writing.
func (s *TokenPoolSystem) updateCachedView() {
	s.cachedView.Store(s.registry.view())
}

// AddPool registers a pool and the tokens it connects. Registering a pool that
// is already known is a no-op.
func (s *TokenPoolSystem) AddPool(tokens []common.Address, pool poolregistry.PairKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.hasPool(pool) {
		return
	}
	s.registry.add(tokens, pool)
	s.updateCachedView()
}

// AddPools registers several pools and refreshes the cached view once.
// It panics if the input slices have mismatched lengths.
func (s *TokenPoolSystem) AddPools(pools []poolregistry.PairKey, tokenSets [][]common.Address) {
	if len(pools) != len(tokenSets) {
		panic(fmt.Sprintf("mismatched input lengths: %d pools and %d token sets", len(pools), len(tokenSets)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := false
	for i, pool := range pools {
		if s.registry.hasPool(pool) {
			continue
		}
		s.registry.add(tokenSets[i], pool)
		added = true
	}
	if added {
		s.updateCachedView()
	}
}

// PoolsForToken returns the keys of every pool containing token, in registration order.
func (s *TokenPoolSystem) PoolsForToken(token common.Address) []poolregistry.PairKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.poolsForToken(token)
}

// Neighbors returns the tokens that trade directly against token.
func (s *TokenPoolSystem) Neighbors(token common.Address) []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.neighbors(token)
}

// View returns a deep copy of the cached snapshot. The caller may modify it freely.
func (s *TokenPoolSystem) View() *TokenPoolRegistryView {
	return copyView(s.cachedView.Load())
}
