// Package collect implements the gather operation of spec.md §4.8: every
// process in a compose group sends its final partition's size, then the
// group's image-destination process concatenates every partition's color
// and depth planes into one dense result buffer at the right offset.
// Grounded on original_source/radixk.c's `radixkGatherFinalImage` and the
// plain sequential-steps-with-wrapped-errors style of internal/store.
package collect

import (
	"encoding/binary"
	"fmt"

	"github.com/cwbudde/sparsecompose/internal/sparseimage"
	"github.com/cwbudde/sparsecompose/internal/transport"
)

const (
	tagSize  = 20 // SWAP_SIZE_DATA
	TagColor = 21 // SWAP_IMAGE_DATA
	TagDepth = 22 // SWAP_DEPTH_DATA
)

// ResultBuffer is the dense, fully-materialized destination a Gather
// writes planes into (spec.md §6's pixel_size*N contiguous plane
// layout).
type ResultBuffer struct {
	Color          []byte
	Depth          []byte
	ColorPixelSize int
	DepthPixelSize int
}

// NewResultBuffer allocates a ResultBuffer sized for n pixels of the
// given formats.
func NewResultBuffer(n int, color sparseimage.ColorFormat, depth sparseimage.DepthFormat) *ResultBuffer {
	cps := color.PixelSize()
	dps := depth.PixelSize()
	return &ResultBuffer{
		Color:          make([]byte, n*cps),
		Depth:          make([]byte, n*dps),
		ColorPixelSize: cps,
		DepthPixelSize: dps,
	}
}

// Gather implements spec.md §4.8: sizes exchange, prefix-sum offsets,
// then color/depth plane concatenation. piece may be sparseimage.Null()
// for a process contributing nothing (spec.md §8 invariant #7: gather is
// idempotent under a second call with the same inputs).
func Gather(
	msgr transport.Messenger,
	composeGroup []int,
	groupRank, imageDest int,
	piece *sparseimage.Image,
	result *ResultBuffer,
) error {
	g := len(composeGroup)
	size := 0
	if !piece.IsNull() {
		size = piece.NumPixels
	}

	sizes := make([]int, g)
	if groupRank == imageDest {
		sizes[groupRank] = size
		reqs := make([]*transport.Request, g)
		bufs := make([][]byte, g)
		for i := 0; i < g; i++ {
			if i == groupRank {
				continue
			}
			bufs[i] = make([]byte, 8)
			reqs[i] = msgr.Irecv(bufs[i], composeGroup[i], tagSize)
		}
		for i := 0; i < g; i++ {
			if i == groupRank {
				continue
			}
			if err := msgr.Wait(reqs[i]); err != nil {
				return fmt.Errorf("collect: size exchange with %d failed: %w", i, err)
			}
			sizes[i] = int(binary.LittleEndian.Uint64(reqs[i].Result()))
		}
	} else {
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(size))
		if err := msgr.Send(buf, composeGroup[imageDest], tagSize); err != nil {
			return fmt.Errorf("collect: send size failed: %w", err)
		}
	}

	offsets := make([]int, g)
	for i := 1; i < g; i++ {
		offsets[i] = offsets[i-1] + sizes[i-1]
	}

	var colorBytes, depthBytes []byte
	if !piece.IsNull() {
		colorBytes, depthBytes = piece.FlattenPlanes()
	}

	if err := gatherPlane(msgr, composeGroup, groupRank, imageDest, sizes, offsets, result.ColorPixelSize, colorBytes, result.Color, TagColor); err != nil {
		return err
	}
	if err := gatherPlane(msgr, composeGroup, groupRank, imageDest, sizes, offsets, result.DepthPixelSize, depthBytes, result.Depth, TagDepth); err != nil {
		return err
	}
	return nil
}

func gatherPlane(
	msgr transport.Messenger,
	composeGroup []int,
	groupRank, imageDest int,
	sizes, offsets []int,
	pixelSize int,
	localBytes []byte,
	resultPlane []byte,
	tag int,
) error {
	if pixelSize == 0 || len(resultPlane) == 0 {
		return nil
	}
	g := len(composeGroup)

	if groupRank == imageDest {
		copy(resultPlane[offsets[groupRank]*pixelSize:], localBytes)
		reqs := make([]*transport.Request, g)
		for i := 0; i < g; i++ {
			if i == groupRank || sizes[i] == 0 {
				continue
			}
			buf := resultPlane[offsets[i]*pixelSize : (offsets[i]+sizes[i])*pixelSize]
			reqs[i] = msgr.Irecv(buf, composeGroup[i], tag)
		}
		for i, req := range reqs {
			if req == nil {
				continue
			}
			if err := msgr.Wait(req); err != nil {
				return fmt.Errorf("collect: plane receive from %d failed: %w", i, err)
			}
		}
		return nil
	}

	if len(localBytes) == 0 {
		return nil
	}
	if err := msgr.Send(localBytes, composeGroup[imageDest], tag); err != nil {
		return fmt.Errorf("collect: plane send failed: %w", err)
	}
	return nil
}
