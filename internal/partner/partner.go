// Package partner computes the per-round partner set a radix-k process
// exchanges data with, following spec.md §4.3 and the partner arithmetic
// in _examples/original_source/src/strategies/radixk.c.
package partner

// Step returns prod_{j<round} kArray[j]: the stride between successive
// group ranks that share the same partition index at an earlier round.
func Step(kArray []int, round int) int {
	step := 1
	for i := 0; i < round && i < len(kArray); i++ {
		step *= kArray[i]
	}
	return step
}

// PartitionIndices computes the mixed-radix partition-index vector
// (spec.md §3 "Partition index vector"): pidx[i] = (groupRank /
// step_i) % kArray[i], where step_i = prod_{j<i} kArray[j].
func PartitionIndices(kArray []int, groupRank int) []int {
	pidx := make([]int, len(kArray))
	step := 1
	for i, k := range kArray {
		pidx[i] = (groupRank / step) % k
		step *= k
	}
	return pidx
}

// GlobalPartitionIndex packs pidx back into the single mixed-radix
// integer it was derived from: sum_i pidx[i] * prod_{j<i} kArray[j].
func GlobalPartitionIndex(kArray, pidx []int) int {
	step := 1
	total := 0
	for i, k := range kArray {
		total += pidx[i] * step
		step *= k
	}
	return total
}

// RemainingPartitions returns groupSize / Step(kArray, round): how many
// distinct final partitions still separate at the start of round.
func RemainingPartitions(groupSize int, kArray []int, round int) int {
	step := Step(kArray, round)
	if step == 0 {
		return groupSize
	}
	return groupSize / step
}

// Partner is one of the currentK round participants (spec.md §3
// "Partner record"): Rank is a group-local rank (an index into the
// caller's compose_group, not a world rank); Offset is filled in once
// the caller has split its working image and knows each piece's
// starting pixel offset.
type Partner struct {
	Rank   int
	Offset int
}

// Round computes the currentK partner ranks for one round, following
// original_source/radixk.c's `radixkGetPartners`: the group rank of
// partner i is groupRank - partitionIndex*step + i*step.
func Round(currentK, partitionIndex, groupRank, step int) []Partner {
	first := groupRank - partitionIndex*step
	partners := make([]Partner, currentK)
	for i := 0; i < currentK; i++ {
		partners[i] = Partner{Rank: first + i*step}
	}
	return partners
}

// SendOrder returns the indices [0,k) other than partitionIndex, ordered
// starting at partitionIndex and alternating outward (spec.md §4.4 step 3
// and the pivot-loop design note in §9).
func SendOrder(k, partitionIndex int) []int {
	order := make([]int, 0, k-1)
	for d := 1; d < k; d++ {
		if partitionIndex-d >= 0 {
			order = append(order, partitionIndex-d)
		}
		if partitionIndex+d < k {
			order = append(order, partitionIndex+d)
		}
	}
	return order
}
