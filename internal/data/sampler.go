package data

import (
	"fmt"
	"math/rand"
)

// RandomIdentitySampler produces epoch orderings where every batch
// contains P identities with K instances each. This structure is what
// batch-hard triplet mining requires: every anchor is guaranteed both
// positives and negatives.
type RandomIdentitySampler struct {
	batchSize     int
	numInstances  int
	numIdentities int // P = batchSize / numInstances

	indexByPID map[int32][]int
	rng        *rand.Rand
}

// NewRandomIdentitySampler creates a sampler over the dataset.
// batchSize must be a multiple of numInstances, and the dataset must
// contain at least batchSize/numInstances identities.
func NewRandomIdentitySampler(ds *Dataset, batchSize, numInstances int, seed int64) (*RandomIdentitySampler, error) {
	if numInstances <= 0 || batchSize%numInstances != 0 {
		return nil, fmt.Errorf("sampler: batch size %d not divisible by instances per identity %d", batchSize, numInstances)
	}
	numIdentities := batchSize / numInstances

	indexByPID := make(map[int32][]int)
	for i, item := range ds.Items {
		indexByPID[item.PID] = append(indexByPID[item.PID], i)
	}
	if len(indexByPID) < numIdentities {
		return nil, fmt.Errorf("sampler: need %d identities per batch, dataset has %d", numIdentities, len(indexByPID))
	}

	return &RandomIdentitySampler{
		batchSize:     batchSize,
		numInstances:  numInstances,
		numIdentities: numIdentities,
		indexByPID:    indexByPID,
		rng:           rand.New(rand.NewSource(seed)), //nolint:gosec
	}, nil
}

// Epoch returns a fresh ordering of dataset indices for one epoch,
// grouped so each consecutive batchSize slice holds P identities × K
// instances. Identities with fewer than K images are resampled with
// replacement.
func (s *RandomIdentitySampler) Epoch() []int {
	// Split each identity's (shuffled, padded) indices into K-sized groups.
	groupsByPID := make(map[int32][][]int, len(s.indexByPID))
	pids := make([]int32, 0, len(s.indexByPID))
	for pid, idxs := range s.indexByPID {
		pids = append(pids, pid)

		pool := append([]int(nil), idxs...)
		for len(pool) < s.numInstances {
			pool = append(pool, idxs[s.rng.Intn(len(idxs))])
		}
		s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

		for len(pool) >= s.numInstances {
			groupsByPID[pid] = append(groupsByPID[pid], pool[:s.numInstances])
			pool = pool[s.numInstances:]
		}
	}

	var order []int
	available := pids
	for len(available) >= s.numIdentities {
		s.rng.Shuffle(len(available), func(i, j int) { available[i], available[j] = available[j], available[i] })
		selected := available[:s.numIdentities]

		var remaining []int32
		for _, pid := range available {
			keep := true
			for _, sel := range selected {
				if pid == sel {
					order = append(order, groupsByPID[pid][0]...)
					groupsByPID[pid] = groupsByPID[pid][1:]
					if len(groupsByPID[pid]) == 0 {
						keep = false
					}
					break
				}
			}
			if keep {
				remaining = append(remaining, pid)
			}
		}
		available = remaining
	}
	return order
}

// BatchSize returns the configured batch size.
func (s *RandomIdentitySampler) BatchSize() int { return s.batchSize }
