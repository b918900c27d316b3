package radixk

import (
	"github.com/cwbudde/sparsecompose/internal/diag"
	"github.com/cwbudde/sparsecompose/internal/sparseimage"
)

// treeComposite implements spec.md §4.5: it tracks each of the k round
// partners' composite_level and pair-composites adjacent same-level
// images as they arrive, performing exactly k-1 composites in total and
// writing the last one directly into the result the caller reads back
// (no separate tail copy).
type treeComposite struct {
	sink  diag.Sink
	k     int
	level []int // -1 not arrived, >=0 composite level
	image []*sparseimage.Image
	count int
	final *sparseimage.Image
}

func newTreeComposite(sink diag.Sink, k, self int, own *sparseimage.Image) *treeComposite {
	t := &treeComposite{
		sink:  sink,
		k:     k,
		level: make([]int, k),
		image: make([]*sparseimage.Image, k),
	}
	for i := range t.level {
		t.level[i] = -1
	}
	t.level[self] = 0
	t.image[self] = own
	t.promote(self)
	return t
}

// done reports whether every required composite has been performed.
func (t *treeComposite) done() bool {
	return t.count >= t.k-1
}

// arrive records partner a's received piece at level 0 and drives the
// compositing loop forward from there.
func (t *treeComposite) arrive(a int, img *sparseimage.Image) {
	t.level[a] = 0
	t.image[a] = img
	t.promote(a)
}

// result returns the final composited image. Valid only once done()
// reports true.
func (t *treeComposite) result() *sparseimage.Image {
	if t.final == nil {
		t.sink.Fatalf("radixk: tree_composite result read before completion")
	}
	return t.final
}

// promote repeatedly tries to pair index a's image with its level-mate,
// climbing the tree until either a sibling isn't ready yet or the whole
// group has been reduced to one image (spec.md §4.5 pseudocode, ported
// directly).
func (t *treeComposite) promote(a int) {
	for {
		level := t.level[a]
		if level < 0 {
			return
		}
		siblingDistance := 1 << uint(level)
		subtreeSize := siblingDistance * 2

		var front, back int
		if a%subtreeSize == 0 {
			front, back = a, a+siblingDistance
			if back >= t.k {
				if a == 0 && subtreeSize >= t.k {
					t.final = t.image[0]
					return
				}
				t.level[a]++
				continue
			}
		} else {
			front, back = a-siblingDistance, a
		}

		if t.level[front] != t.level[back] {
			return
		}

		out := sparseimage.CompositePair(t.sink, t.image[front], t.image[back])
		t.count++
		if front == 0 && subtreeSize >= t.k {
			t.final = out
		}
		t.image[front] = out
		t.level[front]++
		a = front
	}
}
