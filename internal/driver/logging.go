package driver

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// loggingMu is the shared logging mutex from the concurrency model: held
// around any multi-line stdout/stderr write (the verbose banner,
// diagnostic flushes, token dumps) so concurrent CC/LD steps never
// interleave output mid-line. It is created fresh by Run and does not
// outlive a single invocation. Unlike a per-writer
// lock, one loggingMu instance guards both stdout and stderr, since the
// invariant being protected is "no two steps write multi-line output at
// the same time", not "no two writers touch the same stream".
type loggingMu struct {
	mu  sync.Mutex
	err io.Writer // default target, e.g. diagnostic flushes
}

func newLoggingMu(stderr io.Writer) *loggingMu {
	return &loggingMu{err: stderr}
}

// writeLocked runs fn with the mutex held, writing to the default (stderr)
// target.
func (l *loggingMu) writeLocked(fn func(w io.Writer)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.err)
}

// writeLockedTo is writeLocked for callers that need a different target
// (e.g. stdout for token dumps and -S/-emit-ir output), while still serializing
// against every other guarded write.
func (l *loggingMu) writeLockedTo(w io.Writer, fn func(w io.Writer)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(w)
}

// banner prints the verbose start-of-build line, gated on args.Verbose.
// On a terminal the line is bolded; redirected output stays plain.
func (l *loggingMu) banner(args *DriverArgs) {
	if !args.Verbose {
		return
	}
	l.writeLocked(func(w io.Writer) {
		line := fmt.Sprintf("=== build: %d source(s), opt=%d, threads=%d ===",
			len(args.Sources), args.OptLevel, args.ThreadCount)
		if stderrIsTerminal {
			fmt.Fprintf(w, "\033[1m%s\033[0m\n", line)
		} else {
			fmt.Fprintln(w, line)
		}
	})
}

// isTerminalFd reports whether fd is connected to a terminal.
func isTerminalFd(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	return err == nil
}

var stderrIsTerminal = isTerminalFd(int(os.Stderr.Fd()))
