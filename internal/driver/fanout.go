package driver

import (
	"fmt"
	"io"
	"os"

	"github.com/distr1/ccdriver/internal/frontend"
)

// goodBatchSize picks a partition size for top-level declarations that
// keeps per-task work roughly balanced and bounded below the pool's
// scheduling overhead. This is deliberately implementation-defined (the
// spec leaves it unspecified): aim for a handful of batches per worker so
// that a slow batch doesn't stall the whole fan-out, but never so small
// that task dispatch overhead dominates.
func goodBatchSize(threadCount, totalDecls int) int {
	if threadCount < 1 {
		threadCount = 1
	}
	const tasksPerWorker = 4
	const minBatch = 8
	batch := (totalDecls + threadCount*tasksPerWorker - 1) / (threadCount * tasksPerWorker)
	if batch < minBatch {
		batch = minBatch
	}
	return batch
}

// fanoutBatch is the per-batch worker body: iterate the slice, skip
// typedefs and unused declarations, lower everything else to IR, and for
// unoptimized immediate codegen enter the per-function path right away.
func fanoutBatch(rc *runCtx, module frontend.IRModule, args *DriverArgs, tu *frontend.TranslationUnit, batch []frontend.TopLevelDecl) {
	immediate := args.OptLevel == 0 && !args.EmitIR && !args.Assembly

	var arena frontend.IRArena
	if rc.arenas != nil {
		arena = rc.arenas.acquire()
		defer rc.arenas.release(arena)
	}

	for _, decl := range batch {
		if decl.Kind == frontend.TopLevelTypedef || decl.Kind == frontend.TopLevelUnused {
			continue
		}
		sym, err := module.TopLevelCodegen(rc.ctx, tu, arena, decl)
		if err != nil {
			rc.log.Printf("ccdriver: irgen %s: %v", decl.Name, err)
			continue
		}
		if immediate && sym.IsFunction {
			applyFunc(rc, frontend.IRFunction{Symbol: sym}, args)
			if arena != nil {
				arena.Clear()
			}
		}
	}
}

// applyFunc runs the per-function codegen path: optimize (if opt_level >=
// 1), print IR (if emit_ir), else codegen and optionally print assembly.
func applyFunc(rc *runCtx, fn frontend.IRFunction, args *DriverArgs) {
	if args.OptLevel >= 1 && rc.fe.Optimizer != nil {
		if err := rc.fe.Optimizer.Run(rc.ctx, fn); err != nil {
			rc.log.Printf("ccdriver: optimize %s: %v", fn.Symbol.Name, err)
			return
		}
	}
	if args.EmitIR {
		// Printing the IR text itself is a front-end concern (the IR
		// builder owns its own textual form); the driver only owns the
		// mutex that keeps concurrent batches' output from interleaving.
		rc.logMu.writeLockedTo(os.Stdout, func(w io.Writer) {
			fmt.Fprintf(w, "; function %s\n", fn.Symbol.Name)
		})
		return
	}
	if rc.fe.Codegen == nil {
		return
	}
	out, err := rc.fe.Codegen.Generate(rc.ctx, fn, args.Assembly)
	if err != nil {
		rc.log.Printf("ccdriver: codegen %s: %v", fn.Symbol.Name, err)
		return
	}
	if args.Assembly {
		rc.logMu.writeLockedTo(os.Stdout, func(w io.Writer) {
			io.WriteString(w, out.Assembly)
		})
	}
}

// perFunctionPass runs applyFunc over every function registered in module,
// batched across the pool with the same latch discipline as the fan-out.
// This is the deferred path: optimized builds and the -emit-ir/-S print
// modes need the whole module's IR in place before per-function passes run.
func perFunctionPass(rc *runCtx, module frontend.IRModule, args *DriverArgs) {
	fns := module.Functions()
	if len(fns) == 0 {
		return
	}

	if rc.pool == nil {
		for _, fn := range fns {
			applyFunc(rc, fn, args)
		}
		return
	}

	batchSize := goodBatchSize(args.ThreadCount, len(fns))
	var batches [][]frontend.IRFunction
	for i := 0; i < len(fns); i += batchSize {
		end := i + batchSize
		if end > len(fns) {
			end = len(fns)
		}
		batches = append(batches, fns[i:end])
	}

	l := newLatch(len(batches))
	for _, batch := range batches {
		batch := batch
		rc.pool.Submit(func() {
			for _, fn := range batch {
				applyFunc(rc, fn, args)
			}
			l.dec()
		})
	}
	l.wait()
}

// fanoutTask is one worker batch carrying everything fanoutBatch needs.
type fanoutTask struct {
	tu    *frontend.TranslationUnit
	batch []frontend.TopLevelDecl
}

// runFanout partitions every translation unit registered in cu that no
// other step's fan-out has claimed yet into worker batches across rc.pool
// (or runs them serially, one TU at a time, if no pool is present).
// Claiming keeps concurrent CC steps' slices disjoint over the shared
// module. A TU whose declared entrypoint is Windows WinMain sets
// args.Subsystem to Windows if unset, as a side effect of the initial
// tally walk.
func runFanout(rc *runCtx, cu *CompilationUnit, args *DriverArgs) {
	module := cu.Module()
	if module == nil {
		return
	}
	tus := cu.claimUnlowered()

	totalDecls := 0
	for _, tu := range tus {
		cu.InferSubsystem(args, tu)
		totalDecls += len(tu.TopLevel)
	}
	if totalDecls == 0 {
		return
	}

	if rc.pool == nil {
		for _, tu := range tus {
			fanoutBatch(rc, module, args, tu, tu.TopLevel)
		}
		return
	}

	batchSize := goodBatchSize(args.ThreadCount, totalDecls)
	var tasks []fanoutTask
	for _, tu := range tus {
		decls := tu.TopLevel
		for i := 0; i < len(decls); i += batchSize {
			end := i + batchSize
			if end > len(decls) {
				end = len(decls)
			}
			tasks = append(tasks, fanoutTask{tu: tu, batch: decls[i:end]})
		}
	}
	if len(tasks) == 0 {
		return
	}

	l := newLatch(len(tasks))
	for _, t := range tasks {
		t := t
		rc.pool.Submit(func() {
			fanoutBatch(rc, module, args, t.tu, t.batch)
			l.dec()
		})
	}
	l.wait()
}
