package batch

import "slices"

// SortResults orders results by descending score. Equal scores keep their input order.
func SortResults(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}

// Top returns the first n results, or all of them when there are fewer.
func Top(results []Result, n int) []Result {
	if n < 0 {
		n = 0
	}
	if len(results) <= n {
		return results
	}
	return results[:n]
}
