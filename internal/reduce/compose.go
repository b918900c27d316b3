package reduce

import (
	"github.com/cwbudde/sparsecompose/internal/arena"
	"github.com/cwbudde/sparsecompose/internal/diag"
	"github.com/cwbudde/sparsecompose/internal/registry"
	"github.com/cwbudde/sparsecompose/internal/sparseimage"
	"github.com/cwbudde/sparsecompose/internal/transport"
)

// Compose implements spec.md §6's reduce_compose() entry point: derive
// the tile allocation, process assignment and destination maps from the
// state registry, then drive Execute to produce this process's view of
// every tile it displays. It owns the allocate -> assign -> execute
// pipeline so callers never re-derive it inline.
func Compose(
	sink diag.Sink,
	reg registry.Registry,
	msgr transport.Messenger,
	ar *arena.Arena,
	rank int,
	color sparseimage.ColorFormat,
	depth sparseimage.DepthFormat,
	contributions map[int]*sparseimage.Image,
) []TileResult {
	numTiles := reg.Int(registry.NumTiles)
	numProcesses := reg.Int(registry.NumProcesses)
	contribCounts := reg.IntArray(registry.TileContribCounts)
	displayNodes := reg.IntArray(registry.DisplayNodes)
	masks := reg.BoolMatrix(registry.AllContainedTilesMasks)
	ordered := reg.Enabled(registry.OrderedComposite)
	compositeOrder := reg.IntArray(registry.CompositeOrder)

	maxWidth := reg.Int(registry.TileMaxWidth)
	maxHeight := reg.Int(registry.TileMaxHeight)
	tilePixelCounts := make([]int, numTiles)
	for t := range tilePixelCounts {
		tilePixelCounts[t] = maxWidth * maxHeight
	}

	numProcForTile := Allocate(contribCounts, numProcesses)
	assignment := ComputeAssignment(numProcesses, numProcForTile, displayNodes, masks)

	return Execute(sink, reg, msgr, ar, assignment, rank, numProcesses, displayNodes, masks, ordered, compositeOrder, tilePixelCounts, color, depth, contributions)
}
