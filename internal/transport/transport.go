// Package transport implements the point-to-point messaging collaborator
// spec.md §6 treats as external: reliable, in-order delivery per
// (src, dest, tag), with non-blocking Isend/Irecv returning a Request
// handle and Wait/WaitAny/WaitAll as the only blocking operations
// (spec.md §5).
package transport

import (
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Messenger is the interface the compositing core consumes.
type Messenger interface {
	Isend(buf []byte, dest, tag int) *Request
	Irecv(buf []byte, src, tag int) *Request
	Send(buf []byte, dest, tag int) error
	Recv(buf []byte, src, tag int) ([]byte, error)
	Wait(req *Request) error
	WaitAny(reqs []*Request) (int, error)
	WaitAll(reqs []*Request) error
}

// Request is a handle to an in-flight send or receive.
type Request struct {
	done   chan struct{}
	once   sync.Once
	err    error
	result []byte
}

func newRequest() *Request {
	return &Request{done: make(chan struct{})}
}

func (r *Request) complete(result []byte, err error) {
	r.once.Do(func() {
		r.result = result
		r.err = err
		close(r.done)
	})
}

// Result returns the bytes a completed receive produced. It is only
// meaningful after Wait/WaitAny has observed this request as done.
func (r *Request) Result() []byte { return r.result }

// Fabric is an in-process Messenger implementation connecting G
// participants with buffered channels keyed by (src, dest, tag), grounded
// on the goroutine-per-process + channel-per-neighbor pattern in
// other_examples' ring_all_reduce.go and on the non-blocking
// buffered-channel discipline of internal/server's EventBroadcaster
// (adapted here to a reliable matched send rather than a lossy
// broadcast).
type Fabric struct {
	mu    sync.Mutex
	links map[linkKey]chan []byte
}

type linkKey struct{ src, dst, tag int }

// NewFabric returns an empty Fabric. Participants are obtained with
// Participant and share the Fabric's link table.
func NewFabric() *Fabric {
	return &Fabric{links: make(map[linkKey]chan []byte)}
}

func (f *Fabric) channel(src, dst, tag int) chan []byte {
	key := linkKey{src, dst, tag}
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.links[key]
	if !ok {
		ch = make(chan []byte, 1)
		f.links[key] = ch
	}
	return ch
}

// Participant returns a Messenger bound to one rank of f.
func (f *Fabric) Participant(rank int) *Participant {
	return &Participant{fabric: f, rank: rank}
}

// Participant is a Messenger handle for one rank of a Fabric.
type Participant struct {
	fabric *Fabric
	rank   int
}

// Isend implements Messenger.
func (p *Participant) Isend(buf []byte, dest, tag int) *Request {
	req := newRequest()
	ch := p.fabric.channel(p.rank, dest, tag)
	payload := make([]byte, len(buf))
	copy(payload, buf)
	go func() {
		ch <- payload
		req.complete(nil, nil)
	}()
	return req
}

// Irecv implements Messenger.
func (p *Participant) Irecv(buf []byte, src, tag int) *Request {
	req := newRequest()
	ch := p.fabric.channel(src, p.rank, tag)
	go func() {
		payload := <-ch
		n := copy(buf, payload)
		req.complete(payload[:n], nil)
	}()
	return req
}

// Send implements Messenger.
func (p *Participant) Send(buf []byte, dest, tag int) error {
	return p.Wait(p.Isend(buf, dest, tag))
}

// Recv implements Messenger.
func (p *Participant) Recv(buf []byte, src, tag int) ([]byte, error) {
	req := p.Irecv(buf, src, tag)
	if err := p.Wait(req); err != nil {
		return nil, err
	}
	return req.Result(), nil
}

// Wait implements Messenger.
func (p *Participant) Wait(req *Request) error {
	<-req.done
	return req.err
}

// WaitAny implements Messenger: it blocks until any one of reqs
// completes and returns its index. Callers drive a loop that removes the
// returned request from subsequent WaitAny calls, matching spec.md §4.4
// step 4's "wait for any one of the outstanding receives".
func (p *Participant) WaitAny(reqs []*Request) (int, error) {
	if len(reqs) == 0 {
		return -1, fmt.Errorf("transport: waitany on empty request list")
	}
	cases := make([]reflect.SelectCase, len(reqs))
	for i, r := range reqs {
		cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(r.done)}
	}
	idx, _, _ := reflect.Select(cases)
	return idx, reqs[idx].err
}

// WaitAll implements Messenger using golang.org/x/sync/errgroup to join
// every outstanding request, returning the first error encountered (if
// any) once all have completed.
func (p *Participant) WaitAll(reqs []*Request) error {
	g := new(errgroup.Group)
	for _, r := range reqs {
		r := r
		if r == nil {
			continue
		}
		g.Go(func() error { return p.Wait(r) })
	}
	return g.Wait()
}
