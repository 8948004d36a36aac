package driver

import (
	"golang.org/x/sync/errgroup"
)

// Pool is the external worker-pool collaborator the executor and the IR
// fan-out dispatch work onto. It is described only by the narrow contract
// the driver needs: submit an opaque task, let the pool decide which
// goroutine runs it. A fixed-size-payload submit becomes, in Go, a plain
// closure — there is no payload-copying concern once tasks are
// first-class values.
type Pool interface {
	// Submit schedules fn to run on a pool worker. Submit does not block
	// waiting for fn to complete.
	Submit(fn func())
}

// goroutinePool is the default Pool: one goroutine per submitted task,
// tracked by an errgroup so Close can wait for stragglers. A fixed
// worker count would deadlock the driver's nested barriers: a
// step body occupies a worker while it blocks on a latch that only other
// pool tasks can drain. Goroutines are cheap enough that the pool bounds
// nothing itself. GOMAXPROCS bounds CPU parallelism, and the fan-out's
// batch sizing (which does use the configured thread count) bounds how
// many tasks exist at all.
type goroutinePool struct {
	eg *errgroup.Group
}

// NewPool returns the default Pool. n is the build's configured thread
// count; it shapes batch sizing elsewhere, not the goroutine count here.
func NewPool(n int) Pool {
	return &goroutinePool{eg: new(errgroup.Group)}
}

func (p *goroutinePool) Submit(fn func()) {
	p.eg.Go(func() error {
		fn()
		return nil
	})
}

// Close waits for every submitted task to finish. Not part of the Pool
// interface: callers that own a goroutinePool (as opposed to receiving a
// Pool from elsewhere) may call it directly after Run returns.
func (p *goroutinePool) Close() {
	p.eg.Wait()
}
