// Command ccdriver is the CLI front end over the build driver core in
// internal/driver: it parses flags into a driver.DriverArgs, builds the
// sys/cc/ld step DAG for the given sources, and runs it. Package-level
// flag vars feed a single funcmain returning an error; there is no verb
// dispatch, since this binary only ever builds.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"

	"github.com/distr1/ccdriver"
	"github.com/distr1/ccdriver/internal/driver"
	"github.com/distr1/ccdriver/internal/frontend"
	"github.com/distr1/ccdriver/internal/frontend/testfrontend"
	"github.com/distr1/ccdriver/internal/toolchainprobe"
)

// stringList accumulates repeated occurrences of a flag (-I, -L, -l, -D)
// into an ordered slice. Command-line order is preserved so link lines
// come out deterministic.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

var (
	debug      = flag.Bool("debug", false, "format error messages with additional detail")
	outputName = flag.String("o", "", "output path (default a.out / a.exe)")
	optLevel   = flag.Int("O", 0, "optimization level")
	threads    = flag.Int("j", runtime.NumCPU(), "number of worker threads")
	target     = flag.String("target", "", "target triple override, e.g. x86_64-linux or x86_64-windows")

	preprocessOnly = flag.Bool("E", false, "preprocess only, dump tokens")
	testPreproc    = flag.Bool("test-preproc", false, "run the preprocessor only, without dumping")
	syntaxOnly     = flag.Bool("fsyntax-only", false, "parse and check, emit nothing")
	astDump        = flag.Bool("ast", false, "dump the parsed AST of every translation unit")
	emitIR         = flag.Bool("emit-ir", false, "print IR instead of codegen output")
	assembly       = flag.Bool("S", false, "print each function's assembly to stdout (the object/executable is still produced)")
	flavorObject   = flag.Bool("c", false, "compile and assemble, but do not link")

	debugInfo   = flag.Bool("g", false, "emit debug info (CodeView)")
	preserveAST = flag.Bool("preserve-ast", false, "keep translation units alive after codegen")
	run         = flag.Bool("run", false, "JIT and run the result (not implemented)")
	nocrt       = flag.Bool("nocrt", false, "omit default C runtime libraries")
	based       = flag.Bool("based", false, "use the internal linker instead of the system linker")
	entrypoint  = flag.String("entry", "", "override the entrypoint symbol name")
	subsystem   = flag.String("subsystem", "", "Windows subsystem: console or windows")
	verbose     = flag.Bool("verbose", false, "print a banner and per-step progress")
	timings     = flag.Bool("time", false, "print coarse per-phase timings")
	dumpGraph   = flag.Bool("dump-graph", false, "print the build step DAG and exit without building")

	includes  stringList
	libPaths  stringList
	libraries stringList
	defines   stringList
)

func init() {
	flag.Var(&includes, "I", "add a header search directory (repeatable)")
	flag.Var(&libPaths, "L", "add a library search directory (repeatable)")
	flag.Var(&libraries, "l", "link against a library (repeatable)")
	flag.Var(&defines, "D", "define a preprocessor macro (repeatable)")
}

func parseTarget(spec string) frontend.Target {
	if spec == "" {
		return hostTarget()
	}
	parts := strings.SplitN(spec, "-", 2)
	arch := frontend.ArchX86_64
	if len(parts) > 0 && strings.Contains(parts[0], "aarch64") {
		arch = frontend.ArchAArch64
	}
	osName := spec
	if len(parts) == 2 {
		osName = parts[1]
	}
	t := frontend.Target{Arch: arch}
	switch {
	case strings.Contains(osName, "windows"):
		t.OS = frontend.OSWindows
	case strings.Contains(osName, "darwin"):
		t.OS = frontend.OSDarwin
	default:
		t.OS = frontend.OSLinux
	}
	return t
}

func hostTarget() frontend.Target {
	t := frontend.Target{Arch: frontend.ArchX86_64}
	switch runtime.GOOS {
	case "windows":
		t.OS = frontend.OSWindows
	case "darwin":
		t.OS = frontend.OSDarwin
	default:
		t.OS = frontend.OSLinux
	}
	if runtime.GOARCH == "arm64" {
		t.Arch = frontend.ArchAArch64
	}
	return t
}

func parseSubsystem(s string) frontend.Subsystem {
	switch strings.ToLower(s) {
	case "console":
		return frontend.SubsystemConsole
	case "windows":
		return frontend.SubsystemWindows
	default:
		return frontend.SubsystemUnset
	}
}

func buildArgs(sources []string) *driver.DriverArgs {
	t := parseTarget(*target)
	return &driver.DriverArgs{
		Sources:     sources,
		Includes:    includes,
		LibPaths:    libPaths,
		Libraries:   libraries,
		Defines:     defines,
		Target:      t,
		Toolchain:   toolchainprobe.For(t.OS),
		OptLevel:    *optLevel,
		ThreadCount: *threads,
		Version:     frontend.C17,

		Verbose:     *verbose,
		Preprocess:  *preprocessOnly,
		TestPreproc: *testPreproc,
		SyntaxOnly:  *syntaxOnly,
		AST:         *astDump,
		EmitIR:      *emitIR,
		Assembly:    *assembly,

		DebugInfo:   *debugInfo,
		PreserveAST: *preserveAST,
		Run:         *run,
		NoCRT:       *nocrt,
		Based:       *based,
		Flavor:      flavorFromFlags(),
		Entrypoint:  *entrypoint,
		Subsystem:   parseSubsystem(*subsystem),
		OutputName:  *outputName,
		Timings:     *timings,
	}
}

func flavorFromFlags() driver.Flavor {
	if *flavorObject {
		return driver.FlavorObject
	}
	return driver.FlavorExecutable
}

// buildDAG constructs one LD step with one CC child per source file, the
// depth-2 shape (one LD, N CCs) the recursive-submission executor is
// built around.
func buildDAG(args *driver.DriverArgs, fe *driver.Frontend) *driver.BuildStep {
	deps := make([]*driver.BuildStep, len(args.Sources))
	for i, src := range args.Sources {
		deps[i] = driver.NewCC(args, src)
	}
	return driver.NewLD(args, fe, deps)
}

func verboseBanner(args *driver.DriverArgs) {
	if !args.Verbose {
		return
	}
	// isatty decides only the cosmetic shape of the banner (plain vs.
	// TTY-aware); it never affects build semantics.
	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("\033[1m=== ccdriver: %d source(s) -> %s ===\033[0m\n", len(args.Sources), outputTarget(args))
	} else {
		fmt.Printf("=== ccdriver: %d source(s) -> %s ===\n", len(args.Sources), outputTarget(args))
	}
}

func outputTarget(args *driver.DriverArgs) string {
	if args.OutputName != "" {
		return args.OutputName
	}
	if args.Target.OS == frontend.OSWindows {
		return "a.exe"
	}
	return "a.out"
}

func funcmain() error {
	flag.Parse()
	sources := flag.Args()
	if len(sources) == 0 {
		return fmt.Errorf("usage: ccdriver [flags] source.c...")
	}

	args := buildArgs(sources)
	verboseBanner(args)

	// No real preprocessor/parser/codegen is linked into this build (those
	// are out-of-scope collaborators per the driver's contract); wire the
	// deterministic test front end so the CLI is runnable end to end against
	// its line-oriented fake source format until a real front end is linked
	// in.
	fe := wireFrontend()

	root := buildDAG(args, fe)
	if *dumpGraph {
		return driver.DumpGraph(os.Stdout, root)
	}
	pool := driver.NewPool(args.ThreadCount)
	logger := log.New(os.Stderr, "", 0)

	ctx, canc := ccdriver.InterruptibleContext()
	defer canc()

	ok := driver.Run(ctx, root, pool, fe, logger)
	driver.Free(root)
	if !ok {
		return xerrors.New("build failed")
	}
	return nil
}

func wireFrontend() *driver.Frontend {
	b := testfrontend.New()
	return &driver.Frontend{
		NewPreprocessor:   func(*driver.DriverArgs) frontend.Preprocessor { return b.Preprocessor() },
		NewDiagnosticSink: b.NewDiagnosticSink,
		Locator:           b.Locator,
		FS:                b.FS,
		Parser:            b.Parser,
		NewParseArena:     b.NewParseArena,
		Sema:              b.Sema,
		NewIRModule:       b.NewIRModule,
		NewIRArena:        b.NewIRArena,
		Optimizer:         b.Optimizer,
		Codegen:           b.Codegen,
		InternalLinker:    b.InternalLinker,
		Linker:            b.Linker,
	}
}

func main() {
	if err := funcmain(); err != nil {
		if *debug {
			fmt.Fprintf(os.Stderr, "ccdriver: %+v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "ccdriver: %v\n", err)
		}
		os.Exit(1)
	}
}
