package reduce

import (
	"github.com/cwbudde/sparsecompose/internal/arena"
	"github.com/cwbudde/sparsecompose/internal/collect"
	"github.com/cwbudde/sparsecompose/internal/diag"
	"github.com/cwbudde/sparsecompose/internal/radixk"
	"github.com/cwbudde/sparsecompose/internal/registry"
	"github.com/cwbudde/sparsecompose/internal/sparseimage"
	"github.com/cwbudde/sparsecompose/internal/transport"
)

// TagBase is the first message tag the reduce strategy's render-transfer
// step uses for a tile; tile t uses TagBase+t. radixk.Compose and
// collect.Gather use their own tag spaces, so this only has to stay clear
// of those.
const TagBase = 2400

// TileResult is a tile's fully collected result, valid only on the
// tile's display node.
type TileResult struct {
	Tile   int
	Result *collect.ResultBuffer
}

// Execute implements spec.md §4.7 "Execution" in full: for every tile
// this process either belongs to the compose sub-group of, or merely
// holds a rendered contribution for, it runs the render-transfer
// pre-phase (route contributions to this tile's destination-mapped
// members per DestinationMap and fold what arrives into a locally
// rendered image), then the tile's compose sub-group runs a
// single-image composite (radixk.Compose, §4.6) over those rendered
// images, then every member of the sub-group collects the composited
// partitions onto the tile's display node (§4.8), mirroring
// original_source/reduce.c's icetRenderTransferSparseImages ->
// icetSingleImageCompose -> icetSingleImageCollect chain. A process
// that contributes to a tile without being assigned to its sub-group
// still has to route its piece there; reduce.c's delegate() is the
// same "assigned or contributing" replicated computation this mirrors.
// contributions maps tile index to this process's local sparse image
// for that tile (sparseimage.Null() or a missing entry if this process
// renders nothing for that tile).
func Execute(
	sink diag.Sink,
	reg registry.Registry,
	msgr transport.Messenger,
	ar *arena.Arena,
	assignment *Assignment,
	rank int,
	numProcesses int,
	displayNodes []int,
	allContainedTilesMasks [][]bool,
	ordered bool,
	compositeOrder []int,
	tilePixelCounts []int,
	color sparseimage.ColorFormat,
	depth sparseimage.DepthFormat,
	contributions map[int]*sparseimage.Image,
) []TileResult {
	var results []TileResult

	for tile, procGroup := range assignment.TileProcGroups {
		inGroup := indexOf(procGroup, rank) >= 0
		contributesHere := rank < len(allContainedTilesMasks) && tile < len(allContainedTilesMasks[rank]) && allContainedTilesMasks[rank][tile]
		if !inGroup && !contributesHere {
			continue
		}

		displayNode := displayNodes[tile]
		displayIndex := indexOf(procGroup, displayNode)
		if displayIndex < 0 {
			sink.Fatalf("reduce: tile %d display node %d not in its own proc group", tile, displayNode)
		}

		contributes := make([]bool, numProcesses)
		for p := 0; p < numProcesses; p++ {
			if p < len(allContainedTilesMasks) && tile < len(allContainedTilesMasks[p]) {
				contributes[p] = allContainedTilesMasks[p][tile]
			}
		}

		dest, group := DestinationMap(numProcesses, contributes, procGroup, displayIndex, ordered, compositeOrder)

		img, ok := contributions[tile]
		if !ok || img == nil {
			img = sparseimage.Null()
		}

		tag := TagBase + tile

		if !inGroup {
			// Contributes to this tile but isn't in its compose
			// sub-group: route the piece to its destination and move on,
			// no compose or collect step to take part in.
			if target, routed := dest[rank]; routed && target != rank && !img.IsNull() {
				payload := sparseimage.PackageForSend(img)
				if err := msgr.Send(payload, target, tag); err != nil {
					sink.Fatalf("reduce: render-transfer send to %d failed (tag %d): %v", target, tag, err)
				}
			}
			continue
		}

		groupIndex := indexOf(group, rank)
		rendered := renderTransfer(sink, msgr, numProcesses, dest, rank, compositeOrder, img, tag, tilePixelCounts[tile])
		if rendered.IsNull() {
			// radixk.Compose splits uniformly across the sub-group and
			// needs every member to hold an image sized for the tile's
			// full pixel count, even a member contributing nothing.
			rendered = sparseimage.Assign(0, 0, tilePixelCounts[tile], color, depth)
		}

		composed := radixk.Compose(sink, reg, msgr, ar, group, groupIndex, rendered)

		groupImageDest := indexOf(group, displayNode)
		out := collect.NewResultBuffer(tilePixelCounts[tile], color, depth)
		if err := collect.Gather(msgr, group, groupIndex, groupImageDest, composed.Image, out); err != nil {
			sink.Fatalf("reduce: tile %d collect failed: %v", tile, err)
		}

		if rank == displayNode {
			results = append(results, TileResult{Tile: tile, Result: out})
		}
	}

	return results
}

// renderTransfer performs one tile's render-transfer pre-phase: the
// process this rank's piece is destination-mapped to receives every
// piece routed to it (from sub-group members and outside contributors
// alike) and folds them together; a pure sender holds nothing further
// for this tile. Senders are visited in compositeOrder when given (so
// an ordered composite's within-chunk fold stays in composite order),
// else by ascending world rank.
func renderTransfer(
	sink diag.Sink,
	msgr transport.Messenger,
	numProcesses int,
	dest map[int]int,
	rank int,
	compositeOrder []int,
	img *sparseimage.Image,
	tag, tilePixels int,
) *sparseimage.Image {
	myDest, sending := dest[rank]
	if sending && myDest != rank {
		if !img.IsNull() {
			payload := sparseimage.PackageForSend(img)
			if err := msgr.Send(payload, myDest, tag); err != nil {
				sink.Fatalf("reduce: render-transfer send to %d failed (tag %d): %v", myDest, tag, err)
			}
		}
		return sparseimage.Null()
	}

	order := compositeOrder
	if len(order) == 0 {
		order = make([]int, numProcesses)
		for i := range order {
			order[i] = i
		}
	}

	acc := img
	for _, snode := range order {
		if snode == rank {
			continue
		}
		target, routed := dest[snode]
		if !routed || target != rank {
			continue
		}
		buf := make([]byte, sparseimage.BufferSize(tilePixels))
		req := msgr.Irecv(buf, snode, tag)
		if err := msgr.Wait(req); err != nil {
			sink.Fatalf("reduce: render-transfer receive from %d failed (tag %d): %v", snode, tag, err)
		}
		incoming := sparseimage.UnpackageFromReceive(req.Result())
		if acc.IsNull() {
			acc = incoming
		} else if !incoming.IsNull() {
			acc = sparseimage.CompositePair(sink, acc, incoming)
		}
	}
	return acc
}
