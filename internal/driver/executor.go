package driver

import (
	"context"
	"log"
	"os"
	"sync/atomic"
)

// runCtx carries the runtime collaborators every step body needs but that
// are not part of the DAG shape itself: the worker pool, the per-worker
// arena registry, the shared logging mutex, and a logger. It is built once
// per Run call and threaded through the recursive submission.
type runCtx struct {
	ctx    context.Context
	pool   Pool
	arenas *arenaRegistry
	logMu  *loggingMu
	log    *log.Logger
	fe     *Frontend
}

// Run executes the DAG rooted at root with an optional worker pool. It
// returns true iff, once every descendant has completed, no child
// reported an error into root and root's own body did not produce one.
// pool may be nil, in which case every step executes inline regardless of
// sibling count.
func Run(ctx context.Context, root *BuildStep, pool Pool, fe *Frontend, logger *log.Logger) bool {
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	var arenas *arenaRegistry
	if fe != nil && fe.NewIRArena != nil {
		arenas = newArenaRegistry(fe.NewIRArena)
	}
	rc := &runCtx{
		ctx:    ctx,
		pool:   pool,
		arenas: arenas,
		logMu:  newLoggingMu(os.Stderr),
		log:    logger,
		fe:     fe,
	}
	if root.args != nil {
		rc.logMu.banner(root.args)
	}
	submit(root, rc, false)
	// The root has no anti-dep for stepError to report into, so an error
	// produced by the root's own body (a failed Sys command, a link
	// failure) is visible only through errorRoot.
	return !root.hasErrors() && !root.errorRoot
}

// submit is the depth-first submission algorithm: mark visited, assign
// ordinals and recurse into dependencies, block on this step's own barrier,
// then either skip (propagating an error) or invoke this step's body,
// dispatching to the pool only when a pool is present and this step has
// siblings in its parent's dep list. An only-child has no parallelism to
// exploit, so inline execution avoids a pointless hop.
func submit(s *BuildStep, rc *runCtx, hasSiblings bool) {
	if s.visited {
		panic("driver: build step submitted twice (step reused across DAGs or shared between parents)")
	}
	s.visited = true
	s.remaining = newLatch(len(s.deps))

	for i, dep := range s.deps {
		dep.ordinal = i
		dep.antiDep = s
		submit(dep, rc, len(s.deps) > 1)
	}

	if len(s.deps) > 0 {
		s.remaining.wait()
	}

	if s.hasErrors() {
		// Propagate to the anti-dep without marking s as an error root: the
		// error was produced by a child, not by s's own body.
		if s.antiDep != nil {
			atomic.AddInt32(&s.antiDep.errors, 1)
		}
		stepDone(s)
		return
	}

	invoke := func() { runBody(s, rc) }
	if rc.pool != nil && hasSiblings {
		rc.pool.Submit(invoke)
	} else {
		invoke()
	}
}

// runBody dispatches to the kind-specific step body. Every terminal path
// of every body calls exactly one of stepDone (success) or
// stepError-then-stepDone (failure).
func runBody(s *BuildStep, rc *runCtx) {
	switch s.kind {
	case Sys:
		runSys(s, rc)
	case CC:
		runCC(s, rc)
	case LD:
		runLD(s, rc)
	}
}
