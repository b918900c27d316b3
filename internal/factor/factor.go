// Package factor implements the radix-k factorization algorithm of
// spec.md §4.2: decompose a process-group size into an ordered list of
// per-round radices, biased toward a "magic k" sweet spot rather than
// toward the smallest or largest possible factor.
package factor

import "fmt"

// DefaultMagicK is used whenever the registry doesn't specify MAGIC_K.
const DefaultMagicK = 8

// Factorize decomposes groupSize into an ordered list of per-round
// radices (spec.md §4.2, §8 invariant #1: the product of the returned
// factors always equals groupSize).
func Factorize(groupSize, magicK int) ([]int, error) {
	if groupSize < 1 {
		return nil, fmt.Errorf("factor: group size must be >= 1, got %d", groupSize)
	}
	if groupSize == 1 {
		return nil, nil
	}
	if magicK < 2 {
		magicK = DefaultMagicK
	}

	var ks []int
	n := groupSize
	for n > 1 {
		k := nextK(n, magicK)
		ks = append(ks, k)
		n /= k
	}

	product := 1
	for _, k := range ks {
		product *= k
	}
	if product != groupSize {
		return nil, fmt.Errorf("factor: product of factors %d != group size %d", product, groupSize)
	}
	return ks, nil
}

// nextK picks the radix for one round, given the portion of the group
// size still to be factored. It tries magicK itself first, then searches
// outward from magicK over [2, 2*magicK) for a divisor, then scans
// upward to sqrt(n), and finally falls back to n itself (n is prime or
// the search space was exhausted).
func nextK(n, magicK int) int {
	if n%magicK == 0 {
		return magicK
	}
	lo, hi := 2, 2*magicK-1
	for _, cand := range pivotSequence(magicK, lo, hi) {
		if cand != magicK && n%cand == 0 {
			return cand
		}
	}
	for try := 2 * magicK; try*try <= n; try++ {
		if n%try == 0 {
			return try
		}
	}
	return n
}

// pivotSequence visits pivot, pivot-1, pivot+1, pivot-2, pivot+2, ...
// clipped to [lo,hi], matching spec.md §4.2 step 2 and the
// pivot-loop-as-index-generator design note in §9.
func pivotSequence(pivot, lo, hi int) []int {
	var seq []int
	if pivot >= lo && pivot <= hi {
		seq = append(seq, pivot)
	}
	maxDist := pivot - lo
	if hi-pivot > maxDist {
		maxDist = hi - pivot
	}
	for d := 1; d <= maxDist; d++ {
		if pivot-d >= lo {
			seq = append(seq, pivot-d)
		}
		if pivot+d <= hi {
			seq = append(seq, pivot+d)
		}
	}
	return seq
}
