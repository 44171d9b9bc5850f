package aggregate

import (
	"sort"

	"landScope/internal/model"
)

// MergeRows combines row sets from possibly overlapping ranges. Each id is
// kept once (first occurrence wins) and the result is ordered most recent
// first by block number, then log index.
func MergeRows(sets ...[]model.EventRow) []model.EventRow {
	total := 0
	for _, set := range sets {
		total += len(set)
	}

	seen := make(map[string]struct{}, total)
	merged := make([]model.EventRow, 0, total)
	for _, set := range sets {
		for _, row := range set {
			if _, ok := seen[row.ID]; ok {
				continue
			}
			seen[row.ID] = struct{}{}
			merged = append(merged, row)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Before(merged[j])
	})
	return merged
}

// Limit returns the most recent n rows of an ordered set; n <= 0 keeps all.
func Limit(ordered []model.EventRow, n int) []model.EventRow {
	if n <= 0 || len(ordered) <= n {
		return ordered
	}
	return ordered[:n]
}
