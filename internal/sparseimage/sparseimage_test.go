package sparseimage

import (
	"testing"

	"github.com/cwbudde/sparsecompose/internal/diag"
)

func rgbaPixel(r, g, b, a byte) []byte { return []byte{r, g, b, a} }

func buildImage(t *testing.T, active []bool, colors [][]byte) *Image {
	t.Helper()
	n := len(active)
	pixels := make([]pixel, n)
	for i, on := range active {
		if on {
			pixels[i] = pixel{active: true, data: colors[i]}
		}
	}
	runs, payload := encode(pixels, 4)
	return &Image{
		Header: Header{Width: n, Height: 1, NumPixels: n, Color: ColorRGBAUByte, Depth: DepthNone},
		runs:   runs,
		payload: payload,
	}
}

func TestAssignZeroActive(t *testing.T) {
	img := Assign(4, 1, 4, ColorRGBAUByte, DepthNone)
	for i, p := range img.decode() {
		if p.active {
			t.Fatalf("pixel %d expected inactive on freshly assigned image", i)
		}
	}
}

func TestPackageRoundTrip(t *testing.T) {
	active := []bool{false, true, true, false, true}
	colors := make([][]byte, len(active))
	colors[1] = rgbaPixel(1, 2, 3, 255)
	colors[2] = rgbaPixel(4, 5, 6, 255)
	colors[4] = rgbaPixel(7, 8, 9, 255)
	img := buildImage(t, active, colors)

	buf := PackageForSend(img)
	got := UnpackageFromReceive(buf)

	if got.NumPixels != img.NumPixels {
		t.Fatalf("expected %d pixels, got %d", img.NumPixels, got.NumPixels)
	}
	gotPixels := got.decode()
	wantPixels := img.decode()
	for i := range wantPixels {
		if gotPixels[i].active != wantPixels[i].active {
			t.Fatalf("pixel %d active mismatch", i)
		}
		if wantPixels[i].active {
			for b := range wantPixels[i].data {
				if gotPixels[i].data[b] != wantPixels[i].data[b] {
					t.Fatalf("pixel %d byte %d mismatch", i, b)
				}
			}
		}
	}
}

func TestSplitRemainderDistribution(t *testing.T) {
	img := Assign(10, 1, 10, ColorRGBAUByte, DepthNone)
	pieces, offsets := img.Split(0, 3)
	sizes := []int{}
	for _, p := range pieces {
		sizes = append(sizes, p.NumPixels)
	}
	want := []int{4, 3, 3}
	for i, w := range want {
		if sizes[i] != w {
			t.Fatalf("piece %d: want size %d, got %d", i, w, sizes[i])
		}
	}
	if offsets[0] != 0 || offsets[1] != 4 || offsets[2] != 7 {
		t.Fatalf("unexpected offsets: %v", offsets)
	}
}

func TestCompositePairOpaqueOverwins(t *testing.T) {
	front := buildImage(t, []bool{true, false}, [][]byte{rgbaPixel(10, 10, 10, 255), nil})
	back := buildImage(t, []bool{false, true}, [][]byte{nil, rgbaPixel(20, 20, 20, 255)})

	out := CompositePair(diag.Default, front, back)
	pixels := out.decode()
	if !pixels[0].active || pixels[0].data[0] != 10 {
		t.Fatalf("expected pixel 0 to retain front's color")
	}
	if !pixels[1].active || pixels[1].data[0] != 20 {
		t.Fatalf("expected pixel 1 to retain back's color")
	}
}

func TestCompositePairAlphaBlendBackOverFront(t *testing.T) {
	front := buildImage(t, []bool{true}, [][]byte{rgbaPixel(0, 0, 0, 255)})
	back := buildImage(t, []bool{true}, [][]byte{rgbaPixel(255, 255, 255, 255)})

	out := CompositePair(diag.Default, front, back)
	pixels := out.decode()
	if pixels[0].data[0] != 255 {
		t.Fatalf("expected opaque back to fully overwrite front, got %d", pixels[0].data[0])
	}
}

func TestCompositePairDimensionMismatchFatal(t *testing.T) {
	a := Assign(2, 1, 2, ColorRGBAUByte, DepthNone)
	b := Assign(2, 1, 3, ColorRGBAUByte, DepthNone)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected sanity-check panic on dimension mismatch")
		}
	}()
	CompositePair(diag.Default, a, b)
}

func TestInterlaceRoundTripOffsets(t *testing.T) {
	n := 12
	groupSize := 4
	img := Assign(n, 1, n, ColorRGBAUByte, DepthNone)
	interlaced := Interlace(img, groupSize)
	if interlaced.NumPixels != n {
		t.Fatalf("interlace must preserve pixel count")
	}
	pieces, _ := interlaced.Split(0, groupSize)
	total := 0
	for p := 0; p < groupSize; p++ {
		offset := GetInterlaceOffset(p, groupSize, n)
		total += pieces[p].NumPixels
		if offset < 0 || offset > n {
			t.Fatalf("partition %d: offset %d out of range", p, offset)
		}
		if pieces[p].NumPixels != n/groupSize {
			t.Fatalf("partition %d: expected uniform size %d, got %d", p, n/groupSize, pieces[p].NumPixels)
		}
	}
	if total != n {
		t.Fatalf("expected partitions to sum to %d pixels, got %d", n, total)
	}
}

func TestBufferSizeGrowsWithPixelCount(t *testing.T) {
	small := BufferSize(1)
	large := BufferSize(1000)
	if large <= small {
		t.Fatalf("expected BufferSize to grow with pixel count")
	}
}
