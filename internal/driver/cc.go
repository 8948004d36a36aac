package driver

import (
	"fmt"
	"io"

	"github.com/distr1/ccdriver/internal/frontend"
	"github.com/distr1/ccdriver/internal/trace"
)

// NewCC creates a CC step compiling sourcePath as one translation unit.
func NewCC(args *DriverArgs, sourcePath string) *BuildStep {
	return &BuildStep{
		kind: CC,
		args: args,
		cc:   &ccPayload{sourcePath: sourcePath},
	}
}

// runCC drives one translation unit through preprocess, parse, semantic
// analysis, registration with its LD parent, and (unless an early-exit
// flag short-circuits it) IR allocation and backend fan-out.
func runCC(s *BuildStep, rc *runCtx) {
	args := s.args
	if args.Verbose {
		rc.logMu.writeLocked(func(w io.Writer) {
			fmt.Fprintf(w, "CC %s\n", s.cc.sourcePath)
		})
	}

	diags := rc.fe.NewDiagnosticSink()
	flushDiags := func() {
		rc.logMu.writeLocked(func(w io.Writer) { diags.Flush(w) })
	}

	// 1. Preprocess.
	var ppEv *trace.Event
	if args.Timings {
		ppEv = trace.Start("preprocess")
	}
	pp, tokens, err := runPreprocess(rc.ctx, rc.fe, args, frontend.Source{Path: s.cc.sourcePath}, diags)
	s.cc.preprocessor = pp
	if ppEv != nil {
		rc.logMu.writeLocked(func(w io.Writer) { ppEv.Done(w, s.cc.sourcePath) })
	}
	if err != nil {
		flushDiags()
		pp.Finalize()
		stepError(s)
		stepDone(s)
		return
	}

	// 2. Early-exit modes. Diagnostics are still flushed so warning/error
	// counts survive a preprocess-only run.
	if args.Preprocess {
		dumpTokens(rc, tokens)
		flushDiags()
		pp.Finalize()
		stepDone(s)
		return
	}
	if args.TestPreproc {
		flushDiags()
		pp.Finalize()
		stepDone(s)
		return
	}

	// 3. Parse.
	var parseEv *trace.Event
	if args.Timings {
		parseEv = trace.Start("parse")
	}
	arena := rc.fe.NewParseArena()
	s.cc.arena = arena
	tu, err := rc.fe.Parser.Parse(rc.ctx, arena, tokens, args.Version)
	if parseEv != nil {
		rc.logMu.writeLocked(func(w io.Writer) { parseEv.Done(w, s.cc.sourcePath) })
	}
	if err != nil || (tu != nil && tu.ParseErrors > 0) {
		flushDiags()
		pp.Finalize()
		stepError(s)
		stepDone(s)
		return
	}
	tu.SourcePath = s.cc.sourcePath
	s.cc.tu = tu

	// 4. Register with LD parent, under the compilation-unit lock.
	var cu *CompilationUnit
	if s.antiDep != nil && s.antiDep.kind == LD {
		cu = s.antiDep.ld.cu
		cu.AppendLibraries(args, tu.PragmaLibs)
		cu.InsertTU(s.ordinal, tu)
	}

	// 5. Semantic analysis.
	var semaEv *trace.Event
	if args.Timings {
		semaEv = trace.Start("sema")
	}
	semaErr := rc.fe.Sema.Check(rc.ctx, tu)
	if semaEv != nil {
		rc.logMu.writeLocked(func(w io.Writer) { semaEv.Done(w, s.cc.sourcePath) })
	}
	if err := semaErr; err != nil || tu.SemaErrors > 0 {
		flushDiags()
		pp.Finalize()
		stepError(s)
		stepDone(s)
		return
	}

	// 6. Further early-exit modes.
	if args.SyntaxOnly {
		flushDiags()
		pp.Finalize()
		stepDone(s)
		return
	}
	if args.AST {
		dumpAST(rc, cu, tu)
		flushDiags()
		pp.Finalize()
		stepDone(s)
		return
	}

	// 7. Flush diagnostics collected to this point, before backend work.
	flushDiags()

	// 8. IR allocation for this TU against the shared module, sharded for
	// parallel lowering when a pool is present.
	if cu != nil && cu.Module() != nil {
		module := cu.Module()
		if err := module.AllocateIR(rc.ctx, tu, rc.pool != nil, args.DebugInfo); err != nil {
			rc.log.Printf("ccdriver: allocate IR %s: %v", s.cc.sourcePath, err)
			pp.Finalize()
			stepError(s)
			stepDone(s)
			return
		}

		// 9. Backend fan-out. Unoptimized builds compile each function the
		// moment its IR exists; optimized builds (and the -emit-ir/-S print
		// modes) need the whole module lowered first, so they defer to a
		// per-function pass over everything registered so far.
		var cgEv *trace.Event
		if args.Timings {
			cgEv = trace.Start("codegen")
		}
		runFanout(rc, cu, args)
		if args.OptLevel > 0 || args.Assembly || args.EmitIR {
			perFunctionPass(rc, module, args)
		}
		if cgEv != nil {
			rc.logMu.writeLocked(func(w io.Writer) { cgEv.Done(w, s.cc.sourcePath) })
		}
	}

	pp.Finalize()

	// 10. Release, unless -preserve-ast.
	if !args.PreserveAST {
		if arena != nil {
			arena.Release()
		}
		s.cc.tu = nil
	}

	stepDone(s)
}
