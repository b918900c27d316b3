package transport

import (
	"testing"
	"time"
)

func TestSendRecvRoundTrip(t *testing.T) {
	f := NewFabric()
	a := f.Participant(0)
	b := f.Participant(1)

	done := make(chan error, 1)
	go func() {
		done <- a.Send([]byte("hello"), 1, 42)
	}()

	buf := make([]byte, 5)
	got, err := b.Recv(buf, 0, 42)
	if err != nil {
		t.Fatalf("recv error: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("send error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for send to complete")
	}
}

func TestWaitAnyReturnsFirstReady(t *testing.T) {
	f := NewFabric()
	recv := f.Participant(0)
	sender := f.Participant(1)

	bufs := [][]byte{make([]byte, 4), make([]byte, 4)}
	reqs := []*Request{
		recv.Irecv(bufs[0], 1, 1),
		recv.Irecv(bufs[1], 1, 2),
	}

	if err := sender.Send([]byte("ping"), 0, 2); err != nil {
		t.Fatalf("send: %v", err)
	}

	idx, err := recv.WaitAny(reqs)
	if err != nil {
		t.Fatalf("waitany: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected index 1 (tag 2 delivered), got %d", idx)
	}
}

func TestWaitAllJoinsEverySend(t *testing.T) {
	f := NewFabric()
	p0 := f.Participant(0)
	p1 := f.Participant(1)

	var reqs []*Request
	for tag := 0; tag < 3; tag++ {
		reqs = append(reqs, p0.Isend([]byte{byte(tag)}, 1, tag))
	}

	for tag := 0; tag < 3; tag++ {
		buf := make([]byte, 1)
		if _, err := p1.Recv(buf, 0, tag); err != nil {
			t.Fatalf("recv tag %d: %v", tag, err)
		}
	}

	if err := p0.WaitAll(reqs); err != nil {
		t.Fatalf("waitall: %v", err)
	}
}
