package diag

import "testing"

func TestDefaultSinkPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic")
		}
		se, ok := r.(*SanityError)
		if !ok {
			t.Fatalf("expected *SanityError, got %T", r)
		}
		if se.Error() != "bad offset 7" {
			t.Fatalf("unexpected message: %s", se.Error())
		}
	}()
	DefaultSink{}.Fatalf("bad offset %d", 7)
}
