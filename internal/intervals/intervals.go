package intervals

import "sort"

// Interval is a closed block range [Start, End] with Start <= End.
type Interval struct {
	Start uint64
	End   uint64
}

// Union returns the unique minimal list of disjoint, non-touching intervals
// whose union equals the input. Touching intervals (End+1 == next Start)
// merge into one. The input is not modified.
func Union(list []Interval) []Interval {
	if len(list) == 0 {
		return nil
	}

	sorted := make([]Interval, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]

		// Overlapping or touching ranges collapse. The End+1 guard avoids
		// overflow when a range already reaches the maximum block number.
		if last.End >= iv.Start || (iv.Start > 0 && last.End == iv.Start-1) {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}

		merged = append(merged, iv)
	}

	return merged
}

// IntersectionMany returns the intersection of k interval lists, each of
// which must already be in canonical (unioned) form. If any list is empty
// the intersection is empty. The lists are swept together in ascending
// order, advancing whichever list ends earliest.
func IntersectionMany(lists [][]Interval) []Interval {
	if len(lists) == 0 {
		return nil
	}
	for _, list := range lists {
		if len(list) == 0 {
			return nil
		}
	}

	positions := make([]int, len(lists))
	var result []Interval

	for {
		// Current candidate: the overlap of the intervals at the cursor
		// of every list.
		lo := lists[0][positions[0]].Start
		hi := lists[0][positions[0]].End
		for i := 1; i < len(lists); i++ {
			iv := lists[i][positions[i]]
			if iv.Start > lo {
				lo = iv.Start
			}
			if iv.End < hi {
				hi = iv.End
			}
		}

		if lo <= hi {
			result = append(result, Interval{Start: lo, End: hi})
		}

		// Advance the list whose current interval ends earliest; when
		// several tie, any one of them works since the others cannot
		// contribute more overlap at or before hi.
		minEnd := lists[0][positions[0]].End
		minIdx := 0
		for i := 1; i < len(lists); i++ {
			if end := lists[i][positions[i]].End; end < minEnd {
				minEnd = end
				minIdx = i
			}
		}

		positions[minIdx]++
		if positions[minIdx] >= len(lists[minIdx]) {
			return Union(result)
		}
	}
}
