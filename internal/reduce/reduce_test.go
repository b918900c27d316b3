package reduce

import (
	"sync"
	"testing"

	"github.com/cwbudde/sparsecompose/internal/arena"
	"github.com/cwbudde/sparsecompose/internal/diag"
	"github.com/cwbudde/sparsecompose/internal/registry"
	"github.com/cwbudde/sparsecompose/internal/sparseimage"
	"github.com/cwbudde/sparsecompose/internal/transport"
)

// makeOpaque builds a fully active, single-colored sparse image of n
// pixels by hand-assembling a wire frame, the same pattern
// internal/radixk's tests use.
func makeOpaque(n int, shade byte) *sparseimage.Image {
	payload := make([]byte, n*4)
	for i := 0; i < n; i++ {
		payload[i*4+0] = shade
		payload[i*4+1] = shade
		payload[i*4+2] = shade
		payload[i*4+3] = 255
	}
	buf := make([]byte, 7*4+2*4+len(payload))
	put := func(off, v int) {
		for i := 0; i < 4; i++ {
			buf[off+i] = byte(v >> (8 * i))
		}
	}
	put(0, n)
	put(4, n)
	put(8, n)
	put(12, 1) // ColorRGBAUByte
	put(16, 0) // DepthNone
	put(20, 2) // numRuns: [0, n]
	put(24, len(payload))
	put(28, 0)
	put(32, n)
	copy(buf[36:], payload)
	return sparseimage.UnpackageFromReceive(buf)
}

// TestExecuteSingleTileMultiMemberGroup exercises the full spec.md §4.7
// Execution chain end to end: four processes all contribute to one tile,
// Allocate hands that tile all four processes as its compose sub-group,
// render-transfer leaves each member's contribution with itself, the
// sub-group runs a radix-k
// single-image composite, and every sub-group member collects the result
// onto the tile's display node.
func TestExecuteSingleTileMultiMemberGroup(t *testing.T) {
	const g = 4
	const pixels = 16

	contribCounts := []int{g}
	numProcForTile := Allocate(contribCounts, g)
	if numProcForTile[0] < 2 {
		t.Fatalf("test requires a multi-member tile group, got %v", numProcForTile)
	}

	displayNodes := []int{0}
	masks := make([][]bool, g)
	for n := range masks {
		masks[n] = []bool{true}
	}

	assignment := ComputeAssignment(g, numProcForTile, displayNodes, masks)
	if len(assignment.TileProcGroups[0]) < 2 {
		t.Fatalf("expected tile 0's group to have more than one member, got %v", assignment.TileProcGroups[0])
	}

	fabric := transport.NewFabric()
	tilePixelCounts := []int{pixels}

	results := make([][]TileResult, g)
	var wg sync.WaitGroup
	for rank := 0; rank < g; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			reg := registry.New()
			reg.SetInt(registry.MagicK, 8)

			contributions := map[int]*sparseimage.Image{
				0: makeOpaque(pixels, byte(16*(rank+1))),
			}
			results[rank] = Execute(diag.Default, reg, fabric.Participant(rank), arena.New(),
				assignment, rank, g, displayNodes, masks, false, nil, tilePixelCounts,
				sparseimage.ColorRGBAUByte, sparseimage.DepthNone, contributions)
		}(rank)
	}
	wg.Wait()

	var collected []TileResult
	for rank, rs := range results {
		for _, r := range rs {
			if rank != displayNodes[r.Tile] {
				t.Fatalf("rank %d is not tile %d's display node but produced a TileResult", rank, r.Tile)
			}
			collected = append(collected, r)
		}
	}
	if len(collected) != 1 {
		t.Fatalf("expected exactly one TileResult (from the display node), got %d", len(collected))
	}

	out := collected[0].Result
	if len(out.Color) != pixels*4 {
		t.Fatalf("expected collected color plane of %d bytes, got %d", pixels*4, len(out.Color))
	}
	for i := 0; i < pixels; i++ {
		if out.Color[i*4+3] != 255 {
			t.Fatalf("pixel %d: expected fully opaque alpha after compose, got %d", i, out.Color[i*4+3])
		}
	}
}

// TestExecuteSkipsTilesNotAssigned confirms a process not in any tile's
// proc group returns no results and neither sends nor blocks.
func TestExecuteSkipsTilesNotAssigned(t *testing.T) {
	const g = 3
	numProcForTile := []int{1}
	displayNodes := []int{0}
	masks := [][]bool{{true}, {false}, {false}}
	assignment := ComputeAssignment(g, numProcForTile, displayNodes, masks)

	fabric := transport.NewFabric()
	reg := registry.New()
	reg.SetInt(registry.MagicK, 8)

	results := Execute(diag.Default, reg, fabric.Participant(2), arena.New(),
		assignment, 2, g, displayNodes, masks, false, nil, []int{8},
		sparseimage.ColorRGBAUByte, sparseimage.DepthNone, nil)
	if len(results) != 0 {
		t.Fatalf("expected no results for an unassigned rank, got %v", results)
	}
}

// TestExecuteRoutesContributionsOutsideComposeGroup exercises the
// common multi-tile case where a tile's allocated group is smaller than
// its full contributor count: every process contributes to the one
// tile, but only two of the three are assigned to its compose group.
// The process left out must still route its piece into the group
// rather than drop it, or the collected result comes back short.
func TestExecuteRoutesContributionsOutsideComposeGroup(t *testing.T) {
	const g = 3
	const pixels = 8

	numProcForTile := []int{2} // smaller than g=3 contributors
	displayNodes := []int{0}
	masks := [][]bool{{true}, {true}, {true}}

	assignment := ComputeAssignment(g, numProcForTile, displayNodes, masks)
	if len(assignment.TileProcGroups[0]) != 2 {
		t.Fatalf("expected a 2-member compose group, got %v", assignment.TileProcGroups[0])
	}
	outsideRank := -1
	for r := 0; r < g; r++ {
		if indexOf(assignment.TileProcGroups[0], r) < 0 {
			outsideRank = r
		}
	}
	if outsideRank < 0 {
		t.Fatalf("expected exactly one rank left out of the compose group")
	}

	fabric := transport.NewFabric()
	tilePixelCounts := []int{pixels}
	const outsideShade = 77

	results := make([][]TileResult, g)
	var wg sync.WaitGroup
	for rank := 0; rank < g; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			reg := registry.New()
			reg.SetInt(registry.MagicK, 8)
			var contributions map[int]*sparseimage.Image
			if rank == outsideRank {
				// Only the process left out of the compose group holds
				// real data; the in-group members contribute nothing, so
				// a dropped contribution and a routed one are
				// distinguishable in the collected result.
				contributions = map[int]*sparseimage.Image{0: makeOpaque(pixels, outsideShade)}
			}
			results[rank] = Execute(diag.Default, reg, fabric.Participant(rank), arena.New(),
				assignment, rank, g, displayNodes, masks, false, nil, tilePixelCounts,
				sparseimage.ColorRGBAUByte, sparseimage.DepthNone, contributions)
		}(rank)
	}
	wg.Wait()

	var collected *TileResult
	for rank, rs := range results {
		for _, r := range rs {
			if rank != displayNodes[r.Tile] {
				t.Fatalf("rank %d is not tile %d's display node but produced a TileResult", rank, r.Tile)
			}
			rCopy := r
			collected = &rCopy
		}
	}
	if collected == nil {
		t.Fatalf("expected the display node to produce a TileResult")
	}
	for i := 0; i < pixels; i++ {
		if collected.Result.Color[i*4+0] != outsideShade || collected.Result.Color[i*4+3] != 255 {
			t.Fatalf("pixel %d: expected the compose-group-outside contributor's data (shade %d, alpha 255), got %v",
				i, outsideShade, collected.Result.Color[i*4:i*4+4])
		}
	}
}

func TestAllocateProportional(t *testing.T) {
	// spec.md §8 scenario seed: T=2 tiles, P=4 processes, contrib
	// counts [3,1].
	got := Allocate([]int{3, 1}, 4)
	sum := 0
	for _, c := range got {
		sum += c
	}
	if sum != 4 {
		t.Fatalf("expected total allocation 4, got %d (%v)", sum, got)
	}
	if got[0] <= got[1] {
		t.Fatalf("expected tile 0 (higher contrib count) to get more processes than tile 1: %v", got)
	}
	if got[1] < 1 {
		t.Fatalf("expected tile 1 to get at least 1 process since it has contributors: %v", got)
	}
}

func TestAllocateZeroTotal(t *testing.T) {
	got := Allocate([]int{0, 0}, 4)
	for _, c := range got {
		if c != 0 {
			t.Fatalf("expected zero allocation when no tile has contributors, got %v", got)
		}
	}
}

func TestComputeAssignmentSeedsDisplayNodesFirst(t *testing.T) {
	numProcForTile := []int{2, 2}
	displayNodes := []int{0, 2}
	masks := [][]bool{
		{true, false},
		{true, false},
		{false, true},
		{false, true},
	}
	a := ComputeAssignment(4, numProcForTile, displayNodes, masks)

	if a.NodeAssignment[0] != 0 {
		t.Fatalf("expected node 0 (tile 0's display node) assigned to tile 0, got %d", a.NodeAssignment[0])
	}
	if a.NodeAssignment[2] != 1 {
		t.Fatalf("expected node 2 (tile 1's display node) assigned to tile 1, got %d", a.NodeAssignment[2])
	}
	for tile, group := range a.TileProcGroups {
		if len(group) != numProcForTile[tile] {
			t.Fatalf("tile %d: expected group size %d, got %d", tile, numProcForTile[tile], len(group))
		}
	}
	for _, assigned := range a.NodeAssignment {
		if assigned == -1 {
			t.Fatalf("every node should end up assigned: %v", a.NodeAssignment)
		}
	}
}

func TestUnorderedDestinationMapExcludesDisplayFromReceivingTwice(t *testing.T) {
	procGroup := []int{5, 6, 7, 8}
	numProcesses := 9
	contributes := make([]bool, numProcesses)
	for _, node := range procGroup {
		contributes[node] = true
	}
	displayIndex := 1 // procGroup[1] == 6
	dest, group := DestinationMap(numProcesses, contributes, procGroup, displayIndex, false, nil)
	displayNode := procGroup[displayIndex]
	if dest[displayNode] != displayNode {
		t.Fatalf("display node must map to itself, got dest[%d]=%d", displayNode, dest[displayNode])
	}
	for _, node := range group {
		target, ok := dest[node]
		if !ok {
			t.Fatalf("contributing group member %d missing from destination map", node)
		}
		if indexOf(group, target) < 0 {
			t.Fatalf("member %d: destination %d not a member of the compose group", node, target)
		}
	}
}

// TestUnorderedDestinationMapRoutesNonMemberContributors confirms a
// contributor outside procGroup still gets a destination inside the
// group, covering the same processes reduce.c's delegate() keeps alive
// even when node_assignment disagrees with all_contained_tiles_masks.
func TestUnorderedDestinationMapRoutesNonMemberContributors(t *testing.T) {
	procGroup := []int{0, 1}
	numProcesses := 3
	contributes := []bool{true, true, true} // rank 2 contributes but isn't in the group
	dest, group := DestinationMap(numProcesses, contributes, procGroup, 0, false, nil)
	target, ok := dest[2]
	if !ok {
		t.Fatalf("expected a destination for non-member contributor 2")
	}
	if indexOf(group, target) < 0 {
		t.Fatalf("non-member contributor 2 routed to %d, which isn't in the compose group %v", target, group)
	}
}

func TestOrderedDestinationMapPreservesCompositeOrder(t *testing.T) {
	procGroup := []int{3, 1, 2}
	numProcesses := 5
	contributes := []bool{false, true, true, true, true}
	compositeOrder := []int{1, 2, 3, 4}
	dest, group := DestinationMap(numProcesses, contributes, procGroup, 0, true, compositeOrder)
	for _, node := range compositeOrder {
		target, ok := dest[node]
		if !ok {
			t.Fatalf("contributor %d missing from ordered destination map", node)
		}
		if indexOf(group, target) < 0 {
			t.Fatalf("contributor %d routed to %d, which isn't in the reordered group %v", node, target, group)
		}
	}
	if len(group) != len(procGroup) {
		t.Fatalf("reordered group must keep the same membership size")
	}
}
