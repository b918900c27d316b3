package sparseimage

import (
	"encoding/binary"
	"math"

	"github.com/cwbudde/sparsecompose/internal/diag"
)

// Split divides img into k contiguous pieces, distributing the remainder
// of NumPixels/k to the first (NumPixels%k) pieces — the same rule
// original_source/radixk.c uses (`remain = (i < (start_size %
// current_k)) ? 1 : 0`). offsets[i] is startOffset plus the running sum
// of preceding piece sizes, so callers can track an image's position
// within the larger buffer it was split from across rounds.
func (img *Image) Split(startOffset, k int) (pieces []*Image, offsets []int) {
	pixels := img.decode()
	stride := img.stride()
	base := img.NumPixels / k
	rem := img.NumPixels % k
	pieces = make([]*Image, k)
	offsets = make([]int, k)
	cursor := 0
	offset := startOffset
	for i := 0; i < k; i++ {
		size := base
		if i < rem {
			size++
		}
		sub := pixels[cursor : cursor+size]
		runs, payload := encode(sub, stride)
		pieces[i] = &Image{
			Header: Header{Width: img.Width, Height: img.Height, NumPixels: size, Color: img.Color, Depth: img.Depth},
			runs:   runs,
			payload: payload,
		}
		offsets[i] = offset
		offset += size
		cursor += size
	}
	return pieces, offsets
}

// CompositePair combines two same-size partitions, with back painted
// over front when no depth plane is present (spec.md §4.5: front always
// has the smaller partner index, and is composited first / underneath).
// When a depth plane is present the nearer (smaller-depth) pixel wins
// regardless of front/back order, since a depth test is order-independent.
func CompositePair(sink diag.Sink, front, back *Image) *Image {
	if front.NumPixels != back.NumPixels {
		sink.Fatalf("sparseimage: composite_pair dimension mismatch: front=%d back=%d", front.NumPixels, back.NumPixels)
	}
	if front.Color != back.Color || front.Depth != back.Depth {
		sink.Fatalf("sparseimage: composite_pair format mismatch")
	}
	stride := front.stride()
	fp := front.decode()
	bp := back.decode()
	out := make([]pixel, front.NumPixels)
	depthMode := front.Depth != DepthNone
	for i := range out {
		a, b := fp[i], bp[i]
		switch {
		case !a.active && !b.active:
			// stays inactive
		case a.active && !b.active:
			out[i] = a
		case !a.active && b.active:
			out[i] = b
		default:
			if depthMode {
				out[i] = depthTest(a, b, front.Color)
			} else {
				out[i] = alphaOver(a, b, front.Color)
			}
		}
	}
	runs, payload := encode(out, stride)
	return &Image{
		Header: Header{Width: front.Width, Height: front.Height, NumPixels: front.NumPixels, Color: front.Color, Depth: front.Depth},
		runs:   runs,
		payload: payload,
	}
}

func depthTest(a, b pixel, color ColorFormat) pixel {
	cps := color.PixelSize()
	if decodeDepth(a.data[cps:]) <= decodeDepth(b.data[cps:]) {
		return a
	}
	return b
}

func decodeDepth(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func alphaOver(a, b pixel, color ColorFormat) pixel {
	switch color {
	case ColorRGBAUByte:
		out := make([]byte, len(b.data))
		copy(out, b.data)
		alpha := float64(b.data[3]) / 255.0
		for c := 0; c < 3; c++ {
			out[c] = byte(float64(b.data[c])*alpha + float64(a.data[c])*(1-alpha))
		}
		outA := float64(b.data[3]) + float64(a.data[3])*(1-alpha)
		if outA > 255 {
			outA = 255
		}
		out[3] = byte(outA)
		return pixel{active: true, data: out}
	case ColorRGBAFloat:
		out := make([]byte, len(b.data))
		af := decodeFloat4(a.data)
		bf := decodeFloat4(b.data)
		alpha := bf[3]
		var of [4]float32
		for c := 0; c < 3; c++ {
			of[c] = bf[c]*alpha + af[c]*(1-alpha)
		}
		of[3] = bf[3] + af[3]*(1-alpha)
		encodeFloat4(out, of)
		return pixel{active: true, data: out}
	default:
		return b
	}
}

func decodeFloat4(b []byte) [4]float32 {
	var f [4]float32
	for i := 0; i < 4; i++ {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
	return f
}

func encodeFloat4(b []byte, f [4]float32) {
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(b[i*4:i*4+4], math.Float32bits(f[i]))
	}
}
