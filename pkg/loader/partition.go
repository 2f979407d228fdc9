package loader

import (
	"github.com/wdgraph/wdgraph/pkg/entity"
)

const (
	DefaultMaxBatchSize       = 50
	DefaultSmallBatchSize     = 25
	DefaultSmallListThreshold = 100
)

// Partition splits ids into groups of at most capacity entries, filled greedily
// in input order. When more than one group results, entries are moved from the
// ends of the earlier groups into the last group, one from each per pass, for
// as long as the last group stays within capacity and no larger than the first
// group. This keeps the number of calls minimal while avoiding a trailing,
// nearly empty request.
//
// Partition does not deduplicate; callers pass a deduplicated list.
func Partition(ids []entity.ID, capacity int) [][]entity.ID {
	if len(ids) == 0 {
		return nil
	}
	if capacity < 1 {
		capacity = 1
	}

	groups := make([][]entity.ID, 0, (len(ids)+capacity-1)/capacity)
	for start := 0; start < len(ids); start += capacity {
		end := min(start+capacity, len(ids))
		group := make([]entity.ID, end-start, capacity)
		copy(group, ids[start:end])
		groups = append(groups, group)
	}

	if len(groups) > 1 {
		rebalance(groups, capacity)
	}

	return groups
}

func rebalance(groups [][]entity.ID, capacity int) {
	last := len(groups) - 1
	for len(groups[last])+last <= capacity && len(groups[last])+last <= len(groups[0]) {
		for i := 0; i < last; i++ {
			n := len(groups[i])
			groups[last] = append(groups[last], groups[i][n-1])
			groups[i] = groups[i][:n-1]
		}
	}
}

// Capacity returns the per-call limit for a request of n unique IDs. Small
// requests use the smaller limit to keep per-call payloads light.
func (l *Loader) Capacity(n int) int {
	if n > l.smallListThreshold {
		return l.maxBatchSize
	}
	return l.smallBatchSize
}
