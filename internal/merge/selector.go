package merge

import (
	"cmp"
	"slices"

	"github.com/harshithgowdakt/granulestore/internal/storage"
)

// SimpleMergeSelector picks adjacent parts in the same partition to merge.
type SimpleMergeSelector struct {
	MaxPartsToMerge int // default 10
	MinPartsToMerge int // default 3
	// MaxRowsToMerge bounds the rows of the merged part; 0 means unbounded.
	MaxRowsToMerge uint64
}

// NewSimpleMergeSelector creates a merge selector with defaults.
func NewSimpleMergeSelector() *SimpleMergeSelector {
	return &SimpleMergeSelector{
		MaxPartsToMerge: 10,
		MinPartsToMerge: 3,
	}
}

// SelectPartsToMerge finds the best run of adjacent active parts within one
// partition. Returns nil if no merge is worthwhile.
func (s *SimpleMergeSelector) SelectPartsToMerge(parts []*storage.Part) []*storage.Part {
	byPartition := make(map[string][]*storage.Part)
	for _, p := range parts {
		if p.State == storage.PartActive {
			byPartition[p.Info.PartitionID] = append(byPartition[p.Info.PartitionID], p)
		}
	}
	partitions := make([]string, 0, len(byPartition))
	for id := range byPartition {
		partitions = append(partitions, id)
	}
	slices.Sort(partitions)

	var best []*storage.Part
	var bestScore float64
	for _, id := range partitions {
		list := byPartition[id]
		if len(list) < s.MinPartsToMerge {
			continue
		}
		slices.SortFunc(list, func(a, b *storage.Part) int {
			return cmp.Compare(a.Info.MinBlock, b.Info.MinBlock)
		})

		maxLen := min(s.MaxPartsToMerge, len(list))
		for n := s.MinPartsToMerge; n <= maxLen; n++ {
			for start := 0; start+n <= len(list); start++ {
				candidate := list[start : start+n]
				if !s.withinLimits(candidate) {
					continue
				}
				if score := scoreMergeRange(candidate); score > bestScore {
					bestScore = score
					best = candidate
				}
			}
		}
	}
	return best
}

func (s *SimpleMergeSelector) withinLimits(parts []*storage.Part) bool {
	if s.MaxRowsToMerge == 0 {
		return true
	}
	var rows uint64
	for _, p := range parts {
		rows += p.NumRows
	}
	return rows <= s.MaxRowsToMerge
}

// scoreMergeRange scores a merge candidate. Higher is better: many parts of
// similar size score above few parts dominated by one large part.
func scoreMergeRange(parts []*storage.Part) float64 {
	var total, largest uint64
	for _, p := range parts {
		size := p.SizeBytes
		if size == 0 {
			size = p.NumRows
		}
		total += size
		largest = max(largest, size)
	}
	if largest == 0 {
		largest = 1
	}
	return float64(total) / float64(largest) * float64(len(parts))
}
