package uniswapv2

import "github.com/defistate/defistate-amm-go/protocols/poolregistry"

// --- Diff Structures with Helper Methods ---

// PoolsDiff is the change between two snapshots of the pool set. Pools are never
// deleted, so a diff only ever carries additions and updates.
type PoolsDiff struct {
	Additions []Pool `json:"additions,omitempty"`
	Updates   []Pool `json:"updates,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d PoolsDiff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0
}

// Differ calculates the difference between two snapshots of the pool set.
// Additions keep the order in which they appear in new, so applying the diff
// preserves creation order.
func Differ(old, new []Pool) PoolsDiff {
	oldPoolsMap := make(map[poolregistry.PairKey]Pool, len(old))
	for _, pool := range old {
		oldPoolsMap[pool.Key] = pool
	}

	var additions []Pool
	var updates []Pool

	for _, newPool := range new {
		oldPool, exists := oldPoolsMap[newPool.Key]
		if !exists {
			additions = append(additions, newPool)
			continue
		}
		// Only reserves and supply change after creation.
		if !equalAmount(oldPool.Reserve0, newPool.Reserve0) ||
			!equalAmount(oldPool.Reserve1, newPool.Reserve1) ||
			!equalAmount(oldPool.TotalSupply, newPool.TotalSupply) {
			updates = append(updates, newPool)
		}
	}

	return PoolsDiff{
		Additions: additions,
		Updates:   updates,
	}
}
