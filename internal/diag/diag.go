// Package diag provides the process-wide diagnostic sink for fatal
// sanity-check violations (spec.md §7). There is no local recovery from a
// violation: a Sink is expected to abort the collective, not return an
// error the caller can paper over.
package diag

import (
	"fmt"
	"log/slog"
)

// Sink receives a fatal sanity-check violation detected anywhere in the
// compositing core. Implementations never return.
type Sink interface {
	Fatalf(format string, args ...any)
}

// SanityError identifies the failure class raised by DefaultSink, so a
// recovered panic can still be told apart from a plain runtime panic.
type SanityError struct {
	Msg string
}

func (e *SanityError) Error() string { return e.Msg }

// DefaultSink logs the violation through slog and panics with a
// *SanityError, matching spec.md §7: violations are "reported through a
// process-wide diagnostic sink and intended to abort the collective."
type DefaultSink struct {
	Logger *slog.Logger
}

// Fatalf implements Sink.
func (s DefaultSink) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("sanity check failed", "detail", msg)
	panic(&SanityError{Msg: msg})
}

// Default is the package-level sink used where callers don't supply their
// own (e.g. in tests that don't care about logger wiring).
var Default Sink = DefaultSink{}
