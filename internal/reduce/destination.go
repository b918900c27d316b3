package reduce

// DestinationMap computes, for one tile, the destination of every
// process that either belongs to its compose sub-group or merely holds
// a rendered contribution for it, even when that contributor sits
// outside the sub-group (spec.md §4.7 "Destination mapping"). Every
// process runs this same computation independently over the same
// inputs (numProcesses, contributes, procGroup) and so reaches the same
// map without exchanging anything — the replicated-computation trick
// original_source/reduce.c's delegate() relies on.
//
// When ordered is false it uses the two-cursor unordered matching: a
// contributing sub-group member keeps its own data, and every other
// contributor is paired round-robin with sub-group members, skipping
// the display node and (on the first pass) already-self-loaded members
// so load spreads before anyone doubles up. When ordered is true it
// instead preserves compositeOrder: chunk the global contributor list
// by compositeOrder position into procGroup-sized pieces, reorder
// procGroup so each chunk's owner (if a member) lands at that chunk's
// index, and route every contributor to its chunk owner.
//
// displayIndex is the index of the display node within procGroup.
// Returns dest, keyed by world rank for every contributing process,
// giving its destination world rank, and the (possibly reordered)
// procGroup itself (radixk.Compose's compose group for this tile).
func DestinationMap(numProcesses int, contributes []bool, procGroup []int, displayIndex int, ordered bool, compositeOrder []int) (dest map[int]int, group []int) {
	if !ordered {
		return unorderedDestinationMap(numProcesses, contributes, procGroup, displayIndex)
	}
	return orderedDestinationMap(numProcesses, contributes, procGroup, displayIndex, compositeOrder)
}

func unorderedDestinationMap(numProcesses int, contributes []bool, procGroup []int, displayIndex int) (map[int]int, []int) {
	n := len(procGroup)
	group := procGroup
	displayNode := group[displayIndex]

	contributesAt := func(node int) bool {
		return node >= 0 && node < len(contributes) && contributes[node]
	}

	dest := make(map[int]int)
	dest[displayNode] = displayNode
	for _, node := range group {
		if node != displayNode && contributesAt(node) {
			dest[node] = node
		}
	}

	rnode := -1
	firstLoop := true
	for snode := 0; snode < numProcesses; snode++ {
		if !contributesAt(snode) || indexOf(group, snode) >= 0 {
			continue
		}
		var target int
		for {
			rnode++
			if rnode >= n {
				rnode = 0
				firstLoop = false
			}
			target = group[rnode]
			if target == displayNode {
				continue
			}
			if firstLoop && contributesAt(target) {
				continue
			}
			break
		}
		dest[snode] = target
	}
	return dest, group
}

func orderedDestinationMap(numProcesses int, contributes []bool, procGroup []int, displayIndex int, compositeOrder []int) (map[int]int, []int) {
	n := len(procGroup)
	inGroup := make(map[int]int, n)
	for i, node := range procGroup {
		inGroup[node] = i
	}
	contributesAt := func(node int) bool {
		return node >= 0 && node < len(contributes) && contributes[node]
	}

	var contributors []int
	for _, node := range compositeOrder {
		if node < numProcesses && contributesAt(node) {
			contributors = append(contributors, node)
		}
	}
	numContributors := len(contributors)
	if numContributors == 0 {
		displayNode := procGroup[displayIndex]
		return map[int]int{displayNode: displayNode}, procGroup
	}

	reordered := make([]int, n)
	placed := make([]bool, n)
	owner := make(map[int]bool, n)
	for i, node := range contributors {
		if _, ok := inGroup[node]; !ok {
			continue
		}
		piece := i * n / numContributors
		if placed[piece] {
			continue
		}
		reordered[piece] = node
		placed[piece] = true
		owner[node] = true
	}
	// Fill the slots no in-group contributor claimed, preserving the
	// group's remaining (non-chunk-owning) members in their original order.
	cursor := 0
	for _, node := range procGroup {
		if owner[node] {
			continue
		}
		for placed[cursor] {
			cursor++
		}
		reordered[cursor] = node
		placed[cursor] = true
	}

	dest := make(map[int]int, numContributors)
	for i, node := range contributors {
		piece := i * n / numContributors
		dest[node] = reordered[piece]
	}
	return dest, reordered
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
