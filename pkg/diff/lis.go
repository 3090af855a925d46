package diff

import "sort"

// stablePositions returns, for a sequence of distinct old indices listed in
// new order, which positions belong to a longest increasing subsequence.
// Those positions keep their relative order and need no move.
//
// Among equally long subsequences the one starting earliest in new order is
// chosen, so swapping two neighbours moves the first of them.
func stablePositions(seq []int) []bool {
	keep := make([]bool, len(seq))
	if len(seq) == 0 {
		return keep
	}

	// Scanning right to left, heads[l] is the largest first value of an
	// increasing run of length l+1 seen so far and at[l] its position.
	// heads is strictly decreasing.
	heads := make([]int, 0, len(seq))
	at := make([]int, 0, len(seq))
	next := make([]int, len(seq))

	for i := len(seq) - 1; i >= 0; i-- {
		x := seq[i]
		p := sort.Search(len(heads), func(k int) bool { return heads[k] <= x })
		if p > 0 {
			next[i] = at[p-1]
		} else {
			next[i] = -1
		}
		if p == len(heads) {
			heads = append(heads, x)
			at = append(at, i)
		} else {
			heads[p] = x
			at[p] = i
		}
	}

	for i := at[len(at)-1]; i >= 0; i = next[i] {
		keep[i] = true
	}
	return keep
}
