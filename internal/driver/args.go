package driver

import "github.com/distr1/ccdriver/internal/frontend"

// DriverArgs is the immutable-after-parsing configuration bag every step
// reads from. It is built once by the CLI front end (or by an embedder)
// and never mutated once a build starts, with two exceptions, both made
// under the compilation-unit lock: Libraries gains every
// `#pragma comment(lib, ...)` import a CC step finds (see
// CompilationUnit.AppendLibraries), and Subsystem may be inferred from a
// translation unit's detected entrypoint during IR fan-out (see runFanout).
type DriverArgs struct {
	Sources     []string
	Includes    []string
	LibPaths    []string
	Libraries   []string
	Defines     []string
	Target      frontend.Target
	Toolchain   frontend.Toolchain
	OptLevel    int
	ThreadCount int
	Version     frontend.LangVersion

	// Early-exit / mode flags. does_codegen is the logical NOR of Preprocess,
	// TestPreproc, SyntaxOnly, AST and EmitIR; Verbose and Assembly do not
	// affect it.
	Verbose     bool
	Preprocess  bool
	TestPreproc bool
	SyntaxOnly  bool
	AST         bool
	EmitIR      bool
	Assembly    bool

	DebugInfo   bool
	PreserveAST bool
	Run         bool
	// NoCRT omits the default C runtime libraries on the external-linker
	// path. Covers both "omit the CRT startup object" and "omit the
	// standard library names" in one flag, narrower than the two distinct
	// flags the original driver exposed for this.
	NoCRT      bool
	Based      bool // use the internal linker
	Flavor     Flavor
	Entrypoint string
	Subsystem  frontend.Subsystem
	OutputName string

	// Timings gates the coarse per-phase timing report (-time); it has no
	// effect on error semantics.
	Timings bool
}

// Flavor selects the kind of artifact the LD step produces.
type Flavor int

const (
	FlavorExecutable Flavor = iota
	FlavorObject
	FlavorSharedLibrary
)

// DoesCodegen reports whether a build configured with args reaches
// codegen/link at all. It is the logical NOR of the five early-exit flags:
// emit_ir, test_preproc, preprocess, syntax_only, ast.
func DoesCodegen(args *DriverArgs) bool {
	return !(args.EmitIR || args.TestPreproc || args.Preprocess || args.SyntaxOnly || args.AST)
}
