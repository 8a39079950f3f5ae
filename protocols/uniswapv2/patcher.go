package uniswapv2

import (
	"errors"
	"fmt"

	"github.com/defistate/defistate-amm-go/protocols/poolregistry"
)

// ErrUnknownPool is returned when a diff updates a pool the previous state does not contain.
var ErrUnknownPool = errors.New("unknown pool")

// Patcher builds a new pool set by applying diff to prevState.
//
// The result never shares memory with prevState or diff. Existing pools keep
// their position and additions are appended in diff order. An addition for a
// pool that already exists replaces it in place.
func Patcher(prevState []Pool, diff PoolsDiff) ([]Pool, error) {
	newState := make([]Pool, 0, len(prevState)+len(diff.Additions))
	index := make(map[poolregistry.PairKey]int, len(prevState)+len(diff.Additions))
	for _, pool := range prevState {
		index[pool.Key] = len(newState)
		newState = append(newState, deepCopyPool(pool))
	}

	for _, updatedPool := range diff.Updates {
		i, ok := index[updatedPool.Key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPool, updatedPool.Key)
		}
		newState[i] = deepCopyPool(updatedPool)
	}

	for _, addedPool := range diff.Additions {
		if i, ok := index[addedPool.Key]; ok {
			newState[i] = deepCopyPool(addedPool)
			continue
		}
		index[addedPool.Key] = len(newState)
		newState = append(newState, deepCopyPool(addedPool))
	}

	return newState, nil
}
