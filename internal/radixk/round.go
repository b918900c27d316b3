package radixk

import (
	"github.com/cwbudde/sparsecompose/internal/arena"
	"github.com/cwbudde/sparsecompose/internal/diag"
	"github.com/cwbudde/sparsecompose/internal/partner"
	"github.com/cwbudde/sparsecompose/internal/sparseimage"
	"github.com/cwbudde/sparsecompose/internal/transport"
)

// TagBase is the first message tag radix-k uses; round r uses TagBase+r
// (spec.md §6 "RADIXK_SWAP_IMAGE_TAG_START").
const TagBase = 2200

// roundDriver executes spec.md §4.4 for one round: post receives, split
// the working image, send pieces in pivot order, composite arrivals with
// a treeComposite as they land, then wait for sends to complete.
type roundDriver struct {
	sink           diag.Sink
	msgr           transport.Messenger
	arena          *arena.Arena
	composeGroup   []int
	round          int
	k              int
	partitionIndex int
	partners       []partner.Partner // group-local; Offset filled in after split
}

func (d *roundDriver) run(working *sparseimage.Image, startOffset int) (*sparseimage.Image, int) {
	k := d.k
	pi := d.partitionIndex
	tag := TagBase + d.round

	bufSize := sparseimage.BufferSize(sparseimage.SplitPartitionNumPixels(working.NumPixels, k, 0))
	pool := d.arena.Get(arena.ReceivePool, bufSize*k)
	recvReqs := make([]*transport.Request, k)
	for i := 0; i < k; i++ {
		if i == pi {
			continue
		}
		buf := pool[i*bufSize : (i+1)*bufSize]
		recvReqs[i] = d.msgr.Irecv(buf, d.composeGroup[d.partners[i].Rank], tag)
	}

	pieces, offsets := working.Split(startOffset, k)
	for i, off := range offsets {
		d.partners[i].Offset = off
	}

	sendReqs := make([]*transport.Request, k)
	for _, i := range partner.SendOrder(k, pi) {
		payload := sparseimage.PackageForSend(pieces[i])
		sendReqs[i] = d.msgr.Isend(payload, d.composeGroup[d.partners[i].Rank], tag)
	}

	tree := newTreeComposite(d.sink, k, pi, pieces[pi])

	pendingIdx := make([]int, 0, k-1)
	pendingReqs := make([]*transport.Request, 0, k-1)
	for i := 0; i < k; i++ {
		if i != pi {
			pendingIdx = append(pendingIdx, i)
			pendingReqs = append(pendingReqs, recvReqs[i])
		}
	}

	mySize := pieces[pi].NumPixels
	for len(pendingReqs) > 0 && !tree.done() {
		sel, err := d.msgr.WaitAny(pendingReqs)
		if err != nil {
			d.sink.Fatalf("radixk: round %d receive failed: %v", d.round, err)
		}
		partnerIdx := pendingIdx[sel]
		req := pendingReqs[sel]
		pendingIdx = append(pendingIdx[:sel], pendingIdx[sel+1:]...)
		pendingReqs = append(pendingReqs[:sel], pendingReqs[sel+1:]...)

		received := sparseimage.UnpackageFromReceive(req.Result())
		if received.NumPixels != mySize {
			d.sink.Fatalf("radixk: round %d received size %d from partner %d, expected %d",
				d.round, received.NumPixels, partnerIdx, mySize)
		}
		tree.arrive(partnerIdx, received)
	}

	for _, req := range sendReqs {
		if req == nil {
			continue
		}
		if err := d.msgr.Wait(req); err != nil {
			d.sink.Fatalf("radixk: round %d send failed: %v", d.round, err)
		}
	}

	return tree.result(), d.partners[pi].Offset
}
