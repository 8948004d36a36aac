// Package ccdriver holds the small set of types and helpers shared between
// the CLI front end and anyone embedding the build driver as a library: a
// thin, dependency-light surface that both cmd/ccdriver and
// internal/driver's callers can import without pulling in the whole CLI.
package ccdriver

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// InterruptibleContext returns a context canceled on SIGINT/SIGTERM. The
// first signal also restores default handling, so a second signal kills a
// hung build outright.
func InterruptibleContext() (context.Context, context.CancelFunc) {
	ctx, canc := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		signal.Stop(sig)
		canc()
	}()
	return ctx, canc
}
