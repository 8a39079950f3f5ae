package uniswapv2

import (
	"errors"
	"fmt"
	"sync"

	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrLocked is returned by Acquire when another operation on the same pair is in flight.
	ErrLocked = errors.New("pair is locked by an in-flight operation")
	// ErrNotAcquired is returned by Commit when the caller does not hold the pair's guard.
	ErrNotAcquired = errors.New("pair guard not held")
	// ErrInconsistentCommit is returned when a commit would break the pool's bookkeeping invariants.
	ErrInconsistentCommit = errors.New("inconsistent commit")
)

type shareKey struct {
	pair   poolregistry.PairKey
	holder common.Address
}

// Snapshot is a consistent copy of every pool together with the sequence number
// of the last commit it includes.
type Snapshot struct {
	Sequence uint64 `json:"sequence"`
	Pools    []Pool `json:"pools"`
}

// Commit describes the complete post-operation state of one pool.
//
// Balances holds the new absolute share balance of every holder the operation
// touched. A zero balance removes the holder's entry.
type Commit struct {
	Pool     Pool
	Balances map[common.Address]*uint256.Int
}

// PoolStore owns every pool and share balance of an engine instance.
//
// Reads return deep copies. Writes go through Commit, which replaces a pool and
// its touched balances in a single critical section, so readers observe either
// the state before an operation or the state after it, never a mixture.
type PoolStore struct {
	mu       sync.RWMutex
	pools    map[poolregistry.PairKey]*Pool
	order    []poolregistry.PairKey
	shares   map[shareKey]*uint256.Int
	inFlight map[poolregistry.PairKey]struct{}
	sequence uint64
}

// NewPoolStore creates an empty store.
func NewPoolStore() *PoolStore {
	return &PoolStore{
		pools:    make(map[poolregistry.PairKey]*Pool),
		order:    make([]poolregistry.PairKey, 0),
		shares:   make(map[shareKey]*uint256.Int),
		inFlight: make(map[poolregistry.PairKey]struct{}),
	}
}

// Acquire marks the pair as busy and returns the function that releases it.
// The guard works for keys that have no pool yet, so two concurrent first
// deposits cannot both create the same pool.
//
// A second Acquire for the same key fails fast with ErrLocked instead of
// blocking; this is what turns a re-entrant call from a collaborator into a
// clean rejection.
func (s *PoolStore) Acquire(key poolregistry.PairKey) (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[key]; busy {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}
	s.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.inFlight, key)
			s.mu.Unlock()
		})
	}, nil
}

// Pool returns a copy of the pool stored under key.
func (s *PoolStore) Pool(key poolregistry.PairKey) (Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[key]
	if !ok {
		return Pool{}, false
	}
	return deepCopyPool(*p), true
}

// Exists reports whether a pool has ever been created under key.
func (s *PoolStore) Exists(key poolregistry.PairKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pools[key]
	return ok
}

// BalanceOf returns the share balance of holder in the pool under key.
// Unknown pools and holders have a zero balance.
func (s *PoolStore) BalanceOf(key poolregistry.PairKey, holder common.Address) *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.shares[shareKey{pair: key, holder: holder}]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

// Holders returns a copy of every non-zero share balance in the pool under key.
func (s *PoolStore) Holders(key poolregistry.PairKey) map[common.Address]*uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holders := make(map[common.Address]*uint256.Int)
	for k, b := range s.shares {
		if k.pair == key {
			holders[k.holder] = b.Clone()
		}
	}
	return holders
}

// Pools returns copies of all pools in creation order.
func (s *PoolStore) Pools() []Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poolsLocked()
}

// Len returns the number of pools ever created.
func (s *PoolStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Sequence returns the number of commits applied so far.
func (s *PoolStore) Sequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequence
}

// Snapshot returns every pool and the sequence number they correspond to.
func (s *PoolStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Sequence: s.sequence,
		Pools:    s.poolsLocked(),
	}
}

func (s *PoolStore) poolsLocked() []Pool {
	pools := make([]Pool, 0, len(s.order))
	for _, key := range s.order {
		pools = append(pools, deepCopyPool(*s.pools[key]))
	}
	return pools
}

// Commit replaces the pool under c.Pool.Key and the listed holder balances.
//
// The caller must hold the pair's guard. Commit verifies that the pool keeps its
// canonical tokens, that reserves are zero exactly when the supply is zero, and
// that the change in supply equals the change in the listed balances. On any
// failure nothing is written. On success it returns a copy of the stored pool
// and the new sequence number.
func (s *PoolStore) Commit(c Commit) (Pool, uint64, error) {
	next := deepCopyPool(c.Pool)
	key := next.Key

	if next.Reserve0 == nil || next.Reserve1 == nil || next.TotalSupply == nil {
		return Pool{}, 0, fmt.Errorf("%w: pool %s has nil amounts", ErrInconsistentCommit, key)
	}
	if key != poolregistry.PairKeyFromSorted(next.Token0, next.Token1) {
		return Pool{}, 0, fmt.Errorf("%w: key %s does not match tokens %s/%s", ErrInconsistentCommit, key, next.Token0.Hex(), next.Token1.Hex())
	}
	reservesEmpty := next.Reserve0.IsZero() && next.Reserve1.IsZero()
	if reservesEmpty != next.TotalSupply.IsZero() {
		return Pool{}, 0, fmt.Errorf("%w: pool %s reserves (%s, %s) with supply %s", ErrInconsistentCommit, key, next.Reserve0.Dec(), next.Reserve1.Dec(), next.TotalSupply.Dec())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.inFlight[key]; !held {
		return Pool{}, 0, fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}

	prevSupply := new(uint256.Int)
	prev, exists := s.pools[key]
	if exists {
		if prev.Token0 != next.Token0 || prev.Token1 != next.Token1 {
			return Pool{}, 0, fmt.Errorf("%w: pool %s token order changed", ErrInconsistentCommit, key)
		}
		prevSupply.Set(prev.TotalSupply)
	}

	// supply' - supply must equal sum(balances') - sum(balances) over the touched holders.
	before := prevSupply.Clone()
	after := next.TotalSupply.Clone()
	for holder, balance := range c.Balances {
		if balance == nil {
			return Pool{}, 0, fmt.Errorf("%w: nil balance for %s", ErrInconsistentCommit, holder.Hex())
		}
		if old, ok := s.shares[shareKey{pair: key, holder: holder}]; ok {
			after.Add(after, old)
		}
		before.Add(before, balance)
	}
	if !before.Eq(after) {
		return Pool{}, 0, fmt.Errorf("%w: pool %s supply %s -> %s does not match balance changes", ErrInconsistentCommit, key, prevSupply.Dec(), next.TotalSupply.Dec())
	}

	if !exists {
		s.order = append(s.order, key)
	}
	s.pools[key] = &next
	for holder, balance := range c.Balances {
		sk := shareKey{pair: key, holder: holder}
		if balance.IsZero() {
			delete(s.shares, sk)
			continue
		}
		s.shares[sk] = balance.Clone()
	}
	s.sequence++

	return deepCopyPool(next), s.sequence, nil
}
