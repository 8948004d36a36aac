// Package trace provides lightweight phase-timing events for the build
// driver's -time output: a pending event records its duration
// when Done is called. Output goes through a caller-supplied io.Writer
// under the caller's own lock, not a package-global sink, so it composes
// with the driver's shared logging mutex instead of needing one of its
// own.
package trace

import (
	"fmt"
	"io"
	"time"
)

// Event is a named phase (e.g. "preprocess", "parse", "sema", "codegen",
// "link") for one compile or link step, started at construction.
type Event struct {
	name  string
	start time.Time
}

// Start begins timing name. Call Done when the phase completes.
func Start(name string) *Event {
	return &Event{name: name, start: time.Now()}
}

// Done reports the elapsed time since Start to w, formatted as a single
// line. Safe to call at most once per Event.
func (e *Event) Done(w io.Writer, subject string) {
	fmt.Fprintf(w, "  %-10s %-30s %s\n", e.name, subject, time.Since(e.start).Round(time.Microsecond))
}
