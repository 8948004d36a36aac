package driver

import (
	"sync/atomic"

	"github.com/distr1/ccdriver/internal/frontend"
)

// Kind tags which of the three disjoint payload shapes a BuildStep carries.
type Kind int

const (
	Sys Kind = iota
	CC
	LD
)

func (k Kind) String() string {
	switch k {
	case Sys:
		return "sys"
	case CC:
		return "cc"
	case LD:
		return "ld"
	default:
		return "unknown"
	}
}

// sysPayload is the Sys step's owned payload: a single shell command.
type sysPayload struct {
	command string
}

// ccPayload is the CC step's payload. The parse arena, preprocessor, and
// translation unit are created during execution; only args and
// sourcePath are set at construction time.
type ccPayload struct {
	sourcePath string

	arena        frontend.ParseArena
	preprocessor frontend.Preprocessor
	tu           *frontend.TranslationUnit
}

// ldPayload is the LD step's payload: the compilation unit owning the
// shared IR module and its contributing TUs.
type ldPayload struct {
	cu *CompilationUnit
}

// BuildStep is one node of the driver's DAG.
type BuildStep struct {
	kind Kind
	args *DriverArgs

	deps    []*BuildStep
	antiDep *BuildStep // weak back-reference; does not own

	remaining *latch
	errors    int32 // atomic
	errorRoot bool
	visited   bool
	ordinal   int

	sys *sysPayload
	cc  *ccPayload
	ld  *ldPayload
}

// Frontend bundles every out-of-scope collaborator the CC and LD step
// bodies invoke: preprocessor, parser, semantic checker, IR module/arena
// factories, optimizer, codegen, and the system/internal linkers. An
// embedder supplies one real implementation; tests supply a deterministic
// fake (see internal/frontend/testfrontend).
type Frontend struct {
	NewPreprocessor   func(args *DriverArgs) frontend.Preprocessor
	NewDiagnosticSink func() frontend.DiagnosticSink
	Locator           frontend.FileLocator
	FS                frontend.FileSystem
	Parser            frontend.Parser
	NewParseArena     frontend.ParseArenaFactory
	Sema              frontend.SemaChecker
	NewIRModule       func(t frontend.Target, jit bool) frontend.IRModule
	NewIRArena        func() frontend.IRArena
	Optimizer         frontend.Optimizer
	Codegen           frontend.Codegen
	InternalLinker    frontend.InternalLinker
	Linker            frontend.Linker
}

// Kind returns the step's tagged kind.
func (s *BuildStep) Kind() Kind { return s.kind }

// Ordinal returns the step's stable index within its parent's dep list.
func (s *BuildStep) Ordinal() int { return s.ordinal }

// GetTU returns the CC step's translation unit. It requires s.Kind() ==
// CC, panicking otherwise (accessors fail loudly on a mismatched kind, per
// the sum-typed payload design).
func GetTU(s *BuildStep) *frontend.TranslationUnit {
	if s.kind != CC {
		panic("driver: GetTU called on non-CC step")
	}
	return s.cc.tu
}

// GetCU returns the LD step's compilation unit. It requires s.Kind() ==
// LD, panicking otherwise.
func GetCU(s *BuildStep) *CompilationUnit {
	if s.kind != LD {
		panic("driver: GetCU called on non-LD step")
	}
	return s.ld.cu
}

// stepError increments the anti-dep's error counter, if any, and marks s as
// having produced (not merely propagated) an error.
func stepError(s *BuildStep) {
	s.errorRoot = true
	if s.antiDep != nil {
		atomic.AddInt32(&s.antiDep.errors, 1)
	}
}

// stepDone decrements the anti-dep's remaining latch, if any. Every
// terminal path of every step body calls exactly one of: stepDone alone
// (success), or stepError followed by stepDone (failure).
func stepDone(s *BuildStep) {
	if s.antiDep != nil {
		s.antiDep.remaining.dec()
	}
}

// Free walks the DAG rooted at s post-order, releasing each step's
// kind-specific payload: a CC step's parse arena and translation unit (if
// they survived, e.g. under PreserveAST), an LD step's compilation unit and
// module. Call it once, after Run returns; the steps must not be reused
// afterward.
func Free(s *BuildStep) {
	for _, dep := range s.deps {
		Free(dep)
	}
	switch s.kind {
	case Sys:
		s.sys.command = ""
	case CC:
		if s.cc.arena != nil {
			s.cc.arena.Release()
			s.cc.arena = nil
		}
		s.cc.tu = nil
	case LD:
		if s.ld.cu != nil {
			s.ld.cu.DestroyTUs()
			s.ld.cu.DestroyModule()
			s.ld.cu = nil
		}
	}
	s.deps = nil
	s.antiDep = nil
}

// hasErrors reports whether any of s's children reported an error.
func (s *BuildStep) hasErrors() bool {
	return atomic.LoadInt32(&s.errors) != 0
}
