// Package radixk implements the radix-k compositing strategy of spec.md
// §4.2-§4.6: factor a compose-group size into rounds, exchange and
// pair-composite partitioned images round by round, and report each
// surviving process's final partition and its offset within the
// original image.
package radixk

import (
	"log/slog"

	"github.com/cwbudde/sparsecompose/internal/arena"
	"github.com/cwbudde/sparsecompose/internal/diag"
	"github.com/cwbudde/sparsecompose/internal/factor"
	"github.com/cwbudde/sparsecompose/internal/partner"
	"github.com/cwbudde/sparsecompose/internal/registry"
	"github.com/cwbudde/sparsecompose/internal/sparseimage"
	"github.com/cwbudde/sparsecompose/internal/transport"
)

// Result is the outcome of one process's participation in a Compose call.
type Result struct {
	Image       *sparseimage.Image
	PieceOffset int
}

// Compose implements spec.md §4.6: the radix-k top-level entry point.
// composeGroup holds the world ranks of the G participants in composite
// order; groupRank is this process's index within composeGroup.
func Compose(
	sink diag.Sink,
	reg registry.Registry,
	msgr transport.Messenger,
	ar *arena.Arena,
	composeGroup []int,
	groupRank int,
	input *sparseimage.Image,
) Result {
	g := len(composeGroup)
	if groupRank < 0 || groupRank >= g {
		sink.Fatalf("radixk: local process (rank %d) not in compose_group of size %d", groupRank, g)
	}
	if g == 1 {
		return Result{Image: input, PieceOffset: 0}
	}

	magicK := reg.Int(registry.MagicK)
	if magicK < 2 {
		magicK = factor.DefaultMagicK
	}
	kArray, err := factor.Factorize(g, magicK)
	if err != nil {
		sink.Fatalf("radixk: %v", err)
	}
	if len(kArray) == 0 {
		sink.Fatalf("radixk: factorization produced zero rounds for group size %d", g)
	}

	working := input
	interlaced := len(kArray) > 1 && reg.Enabled(registry.InterlaceImages)
	if interlaced {
		working = sparseimage.Interlace(input, g)
	}

	pidx := partner.PartitionIndices(kArray, groupRank)

	var myOffset int
	for round, k := range kArray {
		partitionIndex := pidx[round]
		step := partner.Step(kArray, round)
		groupPartners := partner.Round(k, partitionIndex, groupRank, step)

		driver := &roundDriver{
			sink:           sink,
			msgr:           msgr,
			arena:          ar,
			composeGroup:   composeGroup,
			round:          round,
			k:              k,
			partitionIndex: partitionIndex,
			partners:       groupPartners,
		}
		working, myOffset = driver.run(working, myOffset)

		slog.Debug("radixk round complete",
			"round", round, "k", k, "partition_index", partitionIndex, "size", working.NumPixels)
	}

	pieceOffset := myOffset
	if interlaced {
		globalPartition := partner.GlobalPartitionIndex(kArray, pidx)
		pieceOffset = sparseimage.GetInterlaceOffset(globalPartition, g, input.NumPixels)
	}

	return Result{Image: working, PieceOffset: pieceOffset}
}
